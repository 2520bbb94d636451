package http

import (
	"net/http"

	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/session"
)

// basePage carries what the layout and sidebar need on every render.
type basePage struct {
	Title    string
	Active   string
	LoggedIn bool
	User     core.User
	Error    string
	Flash    string
}

func (s *Server) page(r *http.Request, title, active string) basePage {
	sess := session.FromContext(r.Context())
	return basePage{
		Title:    title,
		Active:   active,
		LoggedIn: sess.State == session.Authenticated,
		User:     sess.User,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.render(w, page, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			log.FieldOperation, log.OpRender,
			"template", page,
			log.FieldError, err)
	}
}

type errorPage struct {
	basePage
	Message string
}

// renderError shows the shared error page for backend failures the
// user cannot fix by correcting input.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := errorPage{
		basePage: s.page(r, "Something went wrong", ""),
		Message:  message,
	}
	s.render(w, r, status, "error.html", data)
}
