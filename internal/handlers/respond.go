package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"paidqa/internal/errorz"
	"paidqa/internal/logger"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch errorz.Kind(err) {
	case errorz.ErrValidation:
		return http.StatusBadRequest
	case errorz.ErrNotFound:
		return http.StatusNotFound
	case errorz.ErrForbidden:
		return http.StatusForbidden
	case errorz.ErrConflict:
		return http.StatusConflict
	case errorz.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes err with its mapped status. Internal errors
// are logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, userID int64, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(userID, action+"_error", "error="+err.Error())
		respondWithError(w, "Internal server error", status)
		return
	}
	logger.Debug(userID, action+"_rejected", "error="+err.Error())
	respondWithError(w, err.Error(), status)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// decodeJSON reads a small JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("Invalid request body: " + strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}
