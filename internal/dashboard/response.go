package dashboard

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in error bodies.
const (
	errCodeNotFound    = "NOT_FOUND"
	errCodeInternal    = "INTERNAL_ERROR"
	errCodeRateLimited = "RATE_LIMITED"
	errCodeUnavailable = "UNAVAILABLE"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response{Data: data})
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Error: &apiError{Code: code, Message: message}})
}
