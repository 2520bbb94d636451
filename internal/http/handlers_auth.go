package http

import (
	"net/http"
	"strings"

	"spendview/internal/api"
	"spendview/internal/log"
	"spendview/internal/session"
)

type authPage struct {
	basePage
	Email    string
	Username string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", authPage{
		basePage: s.page(r, "Log in", ""),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	data := authPage{
		basePage: s.page(r, "Log in", ""),
		Email:    email,
	}
	if email == "" || password == "" {
		data.Error = "Email and password are required"
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", data)
		return
	}

	sess, err := s.sessions.Login(r.Context(), email, password)
	if err != nil {
		data.Error = api.Message(err, "Login failed. Please try again.")
		s.render(w, r, http.StatusUnauthorized, "login.html", data)
		return
	}

	session.SetCookie(w, sess, s.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup.html", authPage{
		basePage: s.page(r, "Sign up", ""),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.Form.Get("username"))
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	data := authPage{
		basePage: s.page(r, "Sign up", ""),
		Email:    email,
		Username: username,
	}
	switch {
	case username == "" || email == "" || password == "":
		data.Error = "Username, email and password are required"
	case len(password) < 8:
		data.Error = "Password must be at least 8 characters"
	}
	if data.Error != "" {
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", data)
		return
	}

	sess, err := s.sessions.Signup(r.Context(), username, email, password)
	if err != nil {
		data.Error = api.Message(err, "Signup failed. Please try again.")
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", data)
		return
	}

	session.SetCookie(w, sess, s.secureCookies)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// handleLogout always lands on the login page, even when no session
// cookie was sent.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := session.IDFromRequest(r); id != "" {
		s.sessions.Logout(r.Context(), id)
	}
	session.ClearCookie(w)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out",
		log.FieldOperation, log.OpLogout)
	http.Redirect(w, r, "/login", http.StatusFound)
}
