package utils

import (
	"encoding/json"
	"net/http"

	"github.com/riteshkumar/funds-transfer/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func WriteError(w http.ResponseWriter, status int, errorMsg, details string) {
	WriteErrorCode(w, status, errorMsg, details, "")
}

// WriteErrorCode adds a machine-readable code to the error body.
func WriteErrorCode(w http.ResponseWriter, status int, errorMsg, details, code string) {
	WriteJSON(w, status, models.ErrorResponse{
		Error:   errorMsg,
		Message: details,
		Code:    code,
	})
}
