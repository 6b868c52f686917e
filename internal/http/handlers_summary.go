package http

import (
	"net/http"

	"ledger/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ledger.Summary(r.Context())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
