package http

import (
	"net/http"
	"strings"

	"spendview/internal/api"
	"spendview/internal/log"
	"spendview/internal/session"
)

type settingsPage struct {
	basePage
	Username string
	Email    string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	s.render(w, r, http.StatusOK, "settings.html", settingsPage{
		basePage: s.page(r, "Settings", "settings"),
		Username: sess.User.Username,
		Email:    sess.User.Email,
	})
}

// handleSettingsUpdate changes username and/or password. Email is
// immutable, so the form never submits it. Submitting the form
// unchanged is not an update; the user gets told instead of the
// backend getting a no-op PATCH.
func (s *Server) handleSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := session.FromContext(r.Context())
	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")

	data := settingsPage{
		basePage: s.page(r, "Settings", "settings"),
		Username: username,
		Email:    sess.User.Email,
	}

	if username == "" && password == "" {
		data.Error = "Nothing to update"
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}
	if username == sess.User.Username && password == "" {
		data.Flash = "No changes to update"
		s.render(w, r, http.StatusOK, "settings.html", data)
		return
	}
	if password != "" && len(password) < 8 {
		data.Error = "Password must be at least 8 characters"
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}

	// Only send what actually changed
	sendUsername := username
	if sendUsername == sess.User.Username {
		sendUsername = ""
	}

	user, err := s.backend.UpdateProfile(r.Context(), sendUsername, password)
	if err != nil {
		data.Error = api.Message(err, "Could not update your profile. Please try again.")
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}

	// Drop the cached profile so the sidebar shows the new identity
	s.sessions.Refresh(r.Context(), sess.ID)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Profile updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldUsername, user.Username)

	data.Username = user.Username
	data.Email = user.Email
	data.User = user
	data.Flash = "Profile updated"
	s.render(w, r, http.StatusOK, "settings.html", data)
}

// handleAccountDelete removes the account remotely, then tears the
// local session down and lands on the login page.
func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	if err := s.backend.DeleteAccount(r.Context()); err != nil {
		data := settingsPage{
			basePage: s.page(r, "Settings", "settings"),
			Username: sess.User.Username,
			Email:    sess.User.Email,
		}
		data.Error = api.Message(err, "Could not delete your account. Please try again.")
		s.render(w, r, http.StatusUnprocessableEntity, "settings.html", data)
		return
	}

	s.sessions.Logout(r.Context(), sess.ID)
	session.ClearCookie(w)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Account deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUsername, sess.User.Username)
	http.Redirect(w, r, "/login", http.StatusFound)
}
