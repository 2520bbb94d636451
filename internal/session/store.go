// Package session owns the browser-session lifecycle: exchanging
// credentials for a bearer token, persisting the token behind a
// cookie, resolving the cookie back to an identity on each request,
// and tearing everything down on logout.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendview/internal/api"
	"spendview/internal/cache"
	"spendview/internal/core"
	"spendview/internal/log"
	"spendview/internal/storage"
)

// CookieName is the fixed session cookie. Its value is an opaque
// session id; the bearer token itself never leaves the server.
const CookieName = "spendview_session"

// State describes where a request stands in the auth lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is the resolved identity for one request.
type Session struct {
	ID    string
	Token string
	User  core.User
	State State
}

// ErrNoSession is returned by Resolve when the id does not map to a
// live session, for whatever reason. Callers treat it as "send the
// user to the login page"; the cause is only worth a log line.
var ErrNoSession = errors.New("no active session")

// API is the slice of the backend client the store needs.
type API interface {
	Login(ctx context.Context, email, password string) (api.AuthResult, error)
	Signup(ctx context.Context, username, email, password string) error
	Me(ctx context.Context) (core.User, error)
}

// Repository persists sessions across restarts.
type Repository interface {
	Save(ctx context.Context, s storage.Session) error
	Get(ctx context.Context, id string) (storage.Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type Store struct {
	repo     Repository
	client   API
	profiles *cache.Cache[core.User]
	logger   *log.Logger

	janitorStop chan struct{}
	closeOnce   sync.Once
}

// NewStore builds a session store. profileTTL bounds how stale a
// rendered identity can get before /user/me is consulted again; the
// cache janitor sweeps expired profiles on the same cadence.
func NewStore(repo Repository, client API, profileTTL time.Duration, logger *log.Logger) *Store {
	s := &Store{
		repo:        repo,
		client:      client,
		profiles:    cache.New[core.User](1024, profileTTL),
		logger:      logger.WithComponent(log.ComponentSession),
		janitorStop: make(chan struct{}),
	}
	interval := profileTTL
	if interval <= 0 {
		interval = time.Minute
	}
	s.profiles.StartJanitor(interval, s.janitorStop)
	return s
}

// Close stops the profile cache janitor. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.janitorStop) })
}

// Login exchanges credentials for a token and opens a new session.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err)
		return Session{}, err
	}
	return s.open(ctx, res)
}

// Signup registers an account, then logs in with the same credentials
// to open its first session. The signup endpoint itself returns no
// token.
func (s *Store) Signup(ctx context.Context, username, email, password string) (Session, error) {
	if err := s.client.Signup(ctx, username, email, password); err != nil {
		s.logger.WarnContext(ctx, "Signup rejected",
			log.FieldOperation, log.OpSignup,
			log.FieldError, err)
		return Session{}, err
	}
	return s.Login(ctx, email, password)
}

func (s *Store) open(ctx context.Context, res api.AuthResult) (Session, error) {
	sess := Session{
		ID:    uuid.NewString(),
		Token: res.Token,
		User:  res.User,
		State: Authenticated,
	}
	err := s.repo.Save(ctx, storage.Session{
		ID:       sess.ID,
		Token:    sess.Token,
		Username: sess.User.Username,
		Email:    sess.User.Email,
	})
	if err != nil {
		return Session{}, err
	}
	s.profiles.Set(sess.Token, sess.User)

	s.logger.InfoContext(ctx, "Session opened",
		log.FieldSessionID, sess.ID,
		log.FieldUsername, sess.User.Username)
	return sess, nil
}

// Resolve maps a session id back to an authenticated identity. The
// profile comes from cache when fresh, otherwise from /user/me. A
// token the backend no longer accepts clears the persisted session so
// the next request starts clean.
func (s *Store) Resolve(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{State: Unauthenticated}, ErrNoSession
	}

	row, err := s.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return Session{State: Unauthenticated}, ErrNoSession
	}
	if err != nil {
		return Session{State: Unauthenticated}, err
	}

	if user, ok := s.profiles.Get(row.Token); ok {
		return Session{ID: row.ID, Token: row.Token, User: user, State: Authenticated}, nil
	}

	user, err := s.client.Me(WithToken(ctx, row.Token))
	if err != nil {
		// Whatever went wrong, the stored token cannot be trusted
		// anymore. Drop it; keeping it would loop the failure forever.
		s.logger.WarnContext(ctx, "Profile fetch failed, clearing session",
			log.FieldSessionID, row.ID,
			log.FieldOperation, log.OpResolve,
			log.FieldError, err)
		s.discard(ctx, row.ID, row.Token)
		return Session{State: Unauthenticated}, ErrNoSession
	}

	s.profiles.Set(row.Token, user)
	if user.Username != row.Username || user.Email != row.Email {
		row.Username = user.Username
		row.Email = user.Email
		if err := s.repo.Save(ctx, row); err != nil {
			s.logger.WarnContext(ctx, "Session profile copy not updated",
				log.FieldSessionID, row.ID,
				log.FieldError, err)
		}
	}

	return Session{ID: row.ID, Token: row.Token, User: user, State: Authenticated}, nil
}

// Refresh drops the cached profile behind a session so the next
// Resolve refetches it. Called after a settings update.
func (s *Store) Refresh(ctx context.Context, id string) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return
	}
	s.profiles.Delete(row.Token)
}

// Logout closes a session. It never fails: local state is cleared
// regardless of what the storage layer reports.
func (s *Store) Logout(ctx context.Context, id string) {
	row, err := s.repo.Get(ctx, id)
	if err == nil {
		s.discard(ctx, id, row.Token)
	} else {
		s.discard(ctx, id, "")
	}
	s.logger.InfoContext(ctx, "Session closed",
		log.FieldSessionID, id,
		log.FieldOperation, log.OpLogout)
}

// Touch bumps the session's last-seen time.
func (s *Store) Touch(ctx context.Context, id string) {
	if err := s.repo.Touch(ctx, id); err != nil {
		s.logger.DebugContext(ctx, "Session touch failed",
			log.FieldSessionID, id,
			log.FieldError, err)
	}
}

func (s *Store) discard(ctx context.Context, id, token string) {
	if token != "" {
		s.profiles.Delete(token)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Session row not deleted",
			log.FieldSessionID, id,
			log.FieldError, err)
	}
}
