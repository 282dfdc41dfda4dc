package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/funds-transfer/internal/config"
	"github.com/riteshkumar/funds-transfer/internal/db"
	"github.com/riteshkumar/funds-transfer/internal/handler"
	"github.com/riteshkumar/funds-transfer/internal/metrics"
	"github.com/riteshkumar/funds-transfer/internal/middleware"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/repository"
	"github.com/riteshkumar/funds-transfer/internal/repository/memory"
	"github.com/riteshkumar/funds-transfer/internal/service"
)

// stores is what the services need from a storage backend.
type stores struct {
	accounts repository.AccountReader
	ledger   repository.LedgerReader
	uow      repository.UnitOfWork
	close    func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Database.Driver, "error", err.Error())
		os.Exit(1)
	}
	defer st.close()

	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTSecret == "" {
		tokens = devTokens(logger)
	}

	// Initialise services
	engine := service.NewTransferEngine(st.uow, service.EngineConfig{
		MaxConcurrent: int64(cfg.Transfer.MaxConcurrent),
		UnitTimeout:   cfg.Transfer.UnitTimeout,
	}, logger)
	accountService := service.NewAccountService(st.accounts, st.ledger, logger)

	// Initialise handlers
	accountHandler := handler.NewAccountHandler(accountService, logger)
	transactionHandler := handler.NewTransactionHandler(engine, logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(middleware.Authenticate(tokens))
	accountHandler.RegisterRoutes(api)
	transactionHandler.RegisterRoutes(api)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server on port " + cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
	}

	logger.Info("server exited gracefully")
}

func openStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		store := memory.New()
		if err := seedDemoAccounts(store); err != nil {
			return nil, err
		}
		logger.Warn("using in-memory store, data is lost on exit")
		return &stores{
			accounts: store,
			ledger:   store,
			uow:      store,
			close:    func() error { return nil },
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrate {
		if err := db.Migrate(database.DB, logger); err != nil {
			database.Close()
			return nil, err
		}
	}

	return &stores{
		accounts: repository.NewAccountRepository(database.DB),
		ledger:   repository.NewLedgerRepository(database.DB),
		uow:      repository.NewUnitOfWork(database.DB, cfg.Transfer.LockTimeout),
		close:    database.Close,
	}, nil
}

func seedDemoAccounts(store *memory.Store) error {
	demo := []models.Account{
		{ID: 1, BusinessID: 1, AccountNumber: "100000000001", Balance: decimal.NewFromInt(10000)},
		{ID: 2, BusinessID: 1, AccountNumber: "100000000002", Balance: decimal.NewFromInt(5000)},
		{ID: 3, BusinessID: 2, AccountNumber: "200000000001", Balance: decimal.NewFromInt(2500)},
	}
	for _, account := range demo {
		account.IFSCCode = "FUND0000001"
		account.ActivationStatus = models.ActivationActive
		account.TransactionAllowed = models.AllowBoth
		account.DailyWithdrawalLimit = models.DefaultDailyWithdrawalLimit
		if err := store.PutAccount(account); err != nil {
			return err
		}
	}
	return nil
}

// devTokens signs with a throwaway secret and logs a token for business 1.
func devTokens(logger *slog.Logger) *middleware.TokenManager {
	tokens := middleware.NewTokenManager(uuid.NewString())
	token, err := tokens.Issue("demo", 1, 24*time.Hour)
	if err != nil {
		logger.Error("failed to issue development token", "error", err.Error())
		return tokens
	}
	logger.Warn("JWT_SECRET not set, issued development token", "business_id", 1, "token", token)
	return tokens
}
