package handler

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/funds-transfer/internal/errors"
	"github.com/riteshkumar/funds-transfer/internal/middleware"
	"github.com/riteshkumar/funds-transfer/internal/models"
	"github.com/riteshkumar/funds-transfer/internal/service"
	u "github.com/riteshkumar/funds-transfer/internal/utils"
)

type TransactionHandler struct {
	transfers service.TransferExecutor
	logger    *slog.Logger
}

func NewTransactionHandler(transfers service.TransferExecutor, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transfers: transfers,
		logger:    logger,
	}
}

const maxTransferBodyBytes = 4 << 10

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/transactions/fundTransfer", h.FundTransfer).Methods(http.MethodPost)
}

func (h *TransactionHandler) FundTransfer(w http.ResponseWriter, r *http.Request) {
	businessID, ok := middleware.BusinessID(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, "unauthorized", "Token not provided")
		return
	}

	var req models.TransferRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxTransferBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid fund transfer request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
		return
	}

	result, err := h.transfers.Execute(r.Context(), &req, businessID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	u.WriteJSON(w, http.StatusCreated, result)
}

func (h *TransactionHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if rejection, ok := errors.AsRejection(err); ok {
		u.WriteErrorCode(w, rejectionStatus(rejection.Kind), "transfer rejected", rejection.Message, string(rejection.Kind))
		return
	}

	if stderrors.Is(err, service.ErrNotStarted) {
		h.logger.Warn("fund transfer abandoned before start",
			"request_id", middleware.RequestIDFrom(r.Context()),
			"error", err.Error(),
		)
		u.WriteError(w, http.StatusServiceUnavailable, "request cancelled", "")
		return
	}

	h.logger.Error("internal server error during fund transfer",
		"request_id", middleware.RequestIDFrom(r.Context()),
		"error", err.Error(),
	)
	u.WriteError(w, http.StatusInternalServerError, "internal server error", "unexpected server error")
}

func rejectionStatus(kind errors.RejectionKind) int {
	switch kind {
	case errors.KindUnauthorized, errors.KindDailyLimitExceeded:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
