package web

import (
	"net/http"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/session"
)

// viewFiles is every template a view render may reference.
var viewFiles = []string{"partials/view.html", "partials/transcript.html"}

// viewData flattens a session.View for the templates.
type viewData struct {
	State        session.State
	HasPreview   bool
	Record       domain.PlantRecord
	Transcript   []domain.ConversationTurn
	ReplyPending bool
	Message      string
}

func newViewData(v session.View) viewData {
	data := viewData{State: v.State()}
	_, data.HasPreview = session.Preview(v)
	switch v := v.(type) {
	case session.Results:
		data.Record = v.Record
		data.Transcript = v.Transcript
		data.ReplyPending = v.ReplyPending
	case session.Failed:
		data.Message = v.Message
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controllerFor(w, r)
	files := append([]string{"base.html", "pages/index.html"}, viewFiles...)
	if err := s.renderPage(w,
		map[string]any{
			"View":           newViewData(ctrl.Snapshot()),
			"ActiveNav":      "identify",
			"HistoryEnabled": s.history != nil,
		},
		files...,
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// handleView renders the current view fragment; the analyzing view polls it.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controllerFor(w, r)
	s.renderView(w, ctrl)
}

func (s *Server) renderView(w http.ResponseWriter, ctrl *session.Controller) {
	if err := s.renderFragment(w, "view", newViewData(ctrl.Snapshot()), viewFiles...); err != nil {
		s.logger.Error("render view failed", "session_id", ctrl.ID(), "error", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controllerFor(w, r)
	ctrl.Reset()
	s.logger.Info("session reset", "session_id", ctrl.ID())

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controllerFor(w, r)
	img, ok := session.Preview(ctrl.Snapshot())
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(img.Data); err != nil {
		s.logger.Error("write preview failed", "session_id", ctrl.ID(), "error", err)
	}
}
