package web

import (
	"net/http"
)

const historyLimit = 50

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}

	entries, err := s.history.Recent(r.Context(), historyLimit)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		s.logger.Error("list history failed", "error", err)
		return
	}
	identified, failed, err := s.history.Counts(r.Context())
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		s.logger.Error("count history failed", "error", err)
		return
	}

	if err := s.renderPage(w,
		map[string]any{
			"Entries":        entries,
			"Identified":     identified,
			"Failed":         failed,
			"ActiveNav":      "history",
			"HistoryEnabled": true,
		},
		"base.html", "pages/history.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}
