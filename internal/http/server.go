// Package http serves the web frontend: server-rendered pages over
// the expense backend's REST API.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"spendview/internal/api"
	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/middleware/ratelimit"
	"spendview/internal/middleware/security"
	"spendview/internal/middleware/trace"
	"spendview/internal/session"
	"spendview/web"
)

// Backend is the slice of the API client the handlers use. Auth calls
// go through the session store instead.
type Backend interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	Expense(ctx context.Context, id string) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	Expenses(ctx context.Context, page, limit int) (api.Page, error)
	ExpensesByCategory(ctx context.Context) ([]api.CategoryBucket, error)
	Timeline(ctx context.Context) ([]api.TimelinePoint, error)
	UpdateProfile(ctx context.Context, username, password string) (core.User, error)
	DeleteAccount(ctx context.Context) error
}

type Server struct {
	http.Server
	backend  Backend
	sessions *session.Store
	tmpl     *templates
	limiter  *ratelimit.Limiter
	logger   *log.Logger

	secureCookies bool
	shutdownOnce  sync.Once
}

type Config struct {
	Addr          string
	Backend       Backend
	Sessions      *session.Store
	Logger        *log.Logger
	SecureCookies bool
	RateLimit     int
}

// NewServer wires routes, middleware and templates into a
// ready-to-run server.
func NewServer(cfg Config) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend:       cfg.Backend,
		sessions:      cfg.Sessions,
		tmpl:          tmpl,
		logger:        cfg.Logger.WithComponent(log.ComponentHTTP),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimit}),
		secureCookies: cfg.SecureCookies,
	}

	r := chi.NewRouter()
	r.Use(log.Middleware(cfg.Logger))
	r.Use(trace.NewMiddleware(clientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(clientIP, nil))

	if sub, err := fs.Sub(web.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Static assets not mounted", log.FieldError, err)
	}

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/dashboard", http.StatusFound)
	})

	// Login and signup pages bounce users who are already in.
	r.Group(func(r chi.Router) {
		r.Use(session.RedirectAuthenticated(cfg.Sessions, "/dashboard"))
		r.Get("/login", s.handleLoginPage)
		r.Get("/signup", s.handleSignupPage)
	})
	r.Post("/login", s.handleLogin)
	r.Post("/signup", s.handleSignup)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(session.RequireAuth(cfg.Sessions))

		r.Get("/dashboard", s.handleDashboard)

		r.Get("/expenses", s.handleExpenses)
		r.Get("/expenses/new", s.handleExpenseNew)
		r.Post("/expenses", s.handleExpenseCreate)
		r.Get("/expenses/{id}/edit", s.handleExpenseEdit)
		r.Post("/expenses/{id}", s.handleExpenseUpdate)
		r.Post("/expenses/{id}/delete", s.handleExpenseDelete)

		r.Get("/analytics", s.handleAnalytics)

		r.Get("/settings", s.handleSettings)
		r.Post("/settings", s.handleSettingsUpdate)
		r.Post("/settings/delete", s.handleAccountDelete)
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP resolves the caller's address, trusting proxy headers
// when present.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
