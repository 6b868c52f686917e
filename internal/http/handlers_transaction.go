package http

import (
	"net/http"

	"ledger/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTransactionInput(w, r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransaction(r.Context(), log.OpCreate, tx)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	tx, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleUpdateTransaction replaces every field and echoes the input under the id.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	in, err := decodeTransactionInput(w, r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransaction(r.Context(), log.OpUpdate, tx)
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)
	w.WriteHeader(http.StatusNoContent)
}
