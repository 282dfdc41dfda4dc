package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/middleware"
	"github.com/riteshkumar/funds-transfer/internal/service"
	u "github.com/riteshkumar/funds-transfer/internal/utils"
)

type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

func NewAccountHandler(accountService service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/accounts/{account_id}/balance", h.GetBalance).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{account_id}/entries", h.ListEntries).Methods(http.MethodGet)
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	businessID, accountID, ok := h.scope(w, r)
	if !ok {
		return
	}

	balance, err := h.accountService.GetBalance(r.Context(), accountID, businessID)
	if err != nil {
		h.handleServiceError(w, err, "get balance")
		return
	}

	u.WriteJSON(w, http.StatusOK, balance)
}

func (h *AccountHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	businessID, accountID, ok := h.scope(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			u.WriteError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.accountService.ListEntries(r.Context(), accountID, businessID, limit)
	if err != nil {
		h.handleServiceError(w, err, "list entries")
		return
	}

	u.WriteJSON(w, http.StatusOK, entries)
}

// scope extracts the caller and the account id path variable.
func (h *AccountHandler) scope(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	businessID, ok := middleware.BusinessID(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "unauthorized", "Token not provided")
		return 0, 0, false
	}

	accountID, err := strconv.ParseInt(mux.Vars(r)["account_id"], 10, 64)
	if err != nil || accountID <= 0 {
		u.WriteError(w, http.StatusBadRequest, "invalid account ID", "")
		return 0, 0, false
	}
	return businessID, accountID, true
}

func (h *AccountHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.IsNotFound(err):
		u.WriteError(w, http.StatusNotFound, "account not found", "Account not found")
	default:
		h.logger.Error("internal server error during "+operation, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "unexpected server error")
	}
}
