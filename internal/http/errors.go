package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the ledger error taxonomy to a status code. Storage failures
// that are neither not-found nor input errors are reported as 400 as well.
func statusFor(err error) int {
	if errors.Is(err, core.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func isClientError(err error) bool {
	return errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrInvalidInput) ||
		errors.Is(err, core.ErrConstraint)
}

// writeError is the single exit for failed requests.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)

	fields := log.NewFields()
	fields[log.FieldStatusCode] = status
	logger := log.FromContext(r.Context())
	if isClientError(err) {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithOperation(op).WithError(err).ToSlice()...)
	} else {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Storage failure", err, op, fields)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func statusMessage(code int) string {
	return strings.ToLower(http.StatusText(code))
}
