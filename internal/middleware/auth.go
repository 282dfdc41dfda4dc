package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	u "github.com/riteshkumar/funds-transfer/internal/utils"
)

type businessKey struct{}

// WithBusinessID stores the authenticated business id on ctx.
func WithBusinessID(ctx context.Context, businessID int64) context.Context {
	return context.WithValue(ctx, businessKey{}, businessID)
}

func BusinessID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(businessKey{}).(int64)
	return v, ok
}

// Claims is the token payload issued at login. UserID is the business id.
type Claims struct {
	UserName string `json:"userName"`
	UserID   int64  `json:"userId"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	now    func() time.Time
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), now: time.Now}
}

// Issue signs an HS256 token for the business.
func (tm *TokenManager) Issue(userName string, businessID int64, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := Claims{
		UserName: userName,
		UserID:   businessID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

func (tm *TokenManager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Authenticate requires a bearer token and puts its business id on the
// request context.
func Authenticate(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				u.WriteError(w, http.StatusUnauthorized, "unauthorized", "Token not provided")
				return
			}
			token := strings.TrimSpace(header[len("Bearer "):])

			claims, err := tm.Parse(token)
			if err != nil {
				msg := "Invalid token provided"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Token expired"
				}
				u.WriteError(w, http.StatusUnauthorized, "unauthorized", msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithBusinessID(r.Context(), claims.UserID)))
		})
	}
}
