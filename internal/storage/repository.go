// Package storage persists browser sessions in a local SQLite file.
// The backend owns all expense and account data; the only thing worth
// keeping on this side is the mapping from session cookie to bearer
// token, so a restart does not log everyone out.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"spendview/internal/log"
)

// ErrSessionNotFound is returned when a session id has no row, either
// because it never existed or because it was already cleared.
var ErrSessionNotFound = errors.New("session not found")

// Session is one persisted browser session. Username and Email are a
// convenience copy of the last profile fetch; the token is the source
// of truth.
type Session struct {
	ID        string
	Token     string
	Username  string
	Email     string
	CreatedAt time.Time
}

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(dbPath string) (*SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SessionRepository{db: db}, nil
}

func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save upserts a session row. Called on login, signup and whenever
// the cached profile copy changes.
func (r *SessionRepository) Save(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, username, email, last_seen_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			username = excluded.username,
			email = excluded.email,
			last_seen_at = CURRENT_TIMESTAMP`,
		s.ID, s.Token, s.Username, s.Email)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get loads a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, username, email, created_at
		FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Token, &s.Username, &s.Email, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Touch bumps last_seen_at so idle cleanup spares active sessions.
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting a missing id is not an error;
// logout must always succeed.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteIdle removes sessions not seen within maxIdle and returns how
// many rows went away.
func (r *SessionRepository) DeleteIdle(ctx context.Context, maxIdle time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxIdle).UTC()
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE last_seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// StartSweeper removes idle sessions every interval, in its own
// goroutine, until ctx is cancelled.
func (r *SessionRepository) StartSweeper(ctx context.Context, interval, maxIdle time.Duration, logger *log.Logger) {
	sweepLogger := logger.WithComponent(log.ComponentStorage)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := r.DeleteIdle(ctx, maxIdle)
				if err != nil {
					sweepLogger.ErrorContext(ctx, "Idle session sweep failed",
						log.FieldError, err)
					continue
				}
				if n > 0 {
					sweepLogger.InfoContext(ctx, "Idle sessions removed", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
