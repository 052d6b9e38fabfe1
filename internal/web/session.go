package web

import (
	"net/http"

	"github.com/vbonduro/plantid/internal/session"
)

const sessionCookie = "plantid_session"

// controllerFor returns the caller's session, starting a new one (and
// setting the cookie) when the cookie is missing or the session expired.
// It must be called before anything is written to w.
func (s *Server) controllerFor(w http.ResponseWriter, r *http.Request) *session.Controller {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if ctrl, ok := s.sessions.Get(c.Value); ok {
			return ctrl
		}
	}

	ctrl := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    ctrl.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ctrl
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
