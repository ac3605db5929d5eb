package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GauravKarakoti/OddsSync/internal/model"
)

// errorResponse is the JSON body for every rejected operation: a taxonomy
// code plus a human-readable message, never an empty success value.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorCode(w, model.CodeOf(err), err.Error(), statusOf(err))
}

func writeErrorCode(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrBettingNotAllowed):
		return http.StatusConflict
	case errors.Is(err, model.ErrAmountOverflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func statusOfCode(code string) int {
	switch code {
	case model.CodeInvalidParameters:
		return http.StatusBadRequest
	case model.CodeUnauthenticated:
		return http.StatusUnauthorized
	case model.CodeUnauthorized:
		return http.StatusForbidden
	case model.CodeMarketNotFound:
		return http.StatusNotFound
	case model.CodeBettingNotAllowed:
		return http.StatusConflict
	case model.CodeAmountOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
