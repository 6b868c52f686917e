package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ledger/internal/core"
)

// maxBodyBytes bounds a transaction payload.
const maxBodyBytes = 1 << 20

// parseID reads the {id} path segment. An id that is not an integer names no
// row, so it is reported as not found.
func parseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", core.ErrNotFound, raw)
	}
	return id, nil
}

// decodeTransactionInput reads a single JSON object into a TransactionInput.
// Unknown fields are ignored; absent fields stay nil.
func decodeTransactionInput(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	var in core.TransactionInput

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return in, fmt.Errorf("%w: request body is empty", core.ErrInvalidInput)
		case errors.As(err, &maxErr):
			return in, fmt.Errorf("%w: request body exceeds %d bytes", core.ErrInvalidInput, maxErr.Limit)
		default:
			return in, fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return in, fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidInput)
	}

	return in, nil
}
