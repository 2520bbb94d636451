package session

import (
	"context"
	"net/http"
)

type contextKey string

const (
	tokenContextKey   contextKey = "token"
	sessionContextKey contextKey = "session"
)

// WithToken stores the bearer token for outgoing API calls. The api
// client's TokenFunc reads it back with TokenFromContext.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the bearer token for this request, or ""
// when the request is unauthenticated.
func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}

func withSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// FromContext returns the resolved session. The zero value means the
// request never passed RequireAuth.
func FromContext(ctx context.Context) Session {
	if sess, ok := ctx.Value(sessionContextKey).(Session); ok {
		return sess
	}
	return Session{State: Unauthenticated}
}

// RequireAuth guards a route: requests without a resolvable session
// are redirected to the login page, everything else proceeds with the
// session and its token on the context.
func RequireAuth(store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Resolve(r.Context(), sessionID(r))
			if err != nil {
				clearCookie(w, r)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			store.Touch(r.Context(), sess.ID)

			ctx := withSession(r.Context(), sess)
			ctx = WithToken(ctx, sess.Token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RedirectAuthenticated sends users who already have a session away
// from the login and signup pages.
func RedirectAuthenticated(store *Store, target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := store.Resolve(r.Context(), sessionID(r)); err == nil {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetCookie installs the session cookie after login or signup.
func SetCookie(w http.ResponseWriter, sess Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie. Safe to call when no cookie
// is present.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(CookieName); err == nil {
		ClearCookie(w)
	}
}

func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IDFromRequest is the exported form of the cookie lookup for
// handlers that act on the session outside the guard, like logout.
func IDFromRequest(r *http.Request) string {
	return sessionID(r)
}
