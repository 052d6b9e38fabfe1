package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/plantid/internal/session"
)

const maxMessageLen = 2000

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controllerFor(w, r)

	message := r.FormValue("message")
	if len(message) > maxMessageLen {
		http.Error(w, "message too long", http.StatusBadRequest)
		return
	}

	// The reply lands in the background; the returned transcript shows the
	// question and polls /transcript until the answer is in.
	err := ctrl.Ask(message)
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		http.Error(w, "message required", http.StatusBadRequest)
		return
	case errors.Is(err, session.ErrNoResults):
		http.Error(w, "no identified plant", http.StatusConflict)
		return
	case errors.Is(err, session.ErrReplyPending):
		http.Error(w, "a reply is already pending", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		s.logger.Error("chat failed", "session_id", ctrl.ID(), "error", err)
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderTranscript(w, ctrl)
}

// handleTranscript renders the chat fragment; it is polled while a reply
// is pending.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	s.renderTranscript(w, s.controllerFor(w, r))
}

func (s *Server) renderTranscript(w http.ResponseWriter, ctrl *session.Controller) {
	view := ctrl.Snapshot()
	if _, ok := view.(session.Results); !ok {
		// reset or expired while the page was open
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.renderFragment(w, "transcript", newViewData(view), viewFiles...); err != nil {
		s.logger.Error("render transcript failed", "session_id", ctrl.ID(), "error", err)
	}
}
