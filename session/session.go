// Package session keeps login state in SQLite-backed cookie sessions.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/store"
)

const (
	CookieName = "storia_session"

	keyUserID = "user_id"
)

const cleanupInterval = 5 * time.Minute

// Manager wraps scs.SessionManager with login helpers.
type Manager struct {
	*scs.SessionManager
	store *sqlite3store.SQLite3Store
}

// New creates the sessions table when missing and returns a manager whose
// store runs an expiry cleanup until Stop is called.
func New(db *sql.DB, cfg config.Config) (*Manager, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, fmt.Errorf("session: creating table: %w", err)
	}

	st := sqlite3store.NewWithCleanupInterval(db, cleanupInterval)

	sm := scs.New()
	sm.Store = st
	sm.Lifetime = cfg.SessionLifetime
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.CookieSecure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"

	return &Manager{SessionManager: sm, store: st}, nil
}

// Login renews the session token and records the user id in the session.
// The user itself is reloaded from the store on every request.
func (m *Manager) Login(ctx context.Context, u *store.User) error {
	if err := m.RenewToken(ctx); err != nil {
		return fmt.Errorf("session: renewing token: %w", err)
	}
	m.Put(ctx, keyUserID, int(u.ID))
	return nil
}

// Logout destroys the session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.Destroy(ctx); err != nil {
		return fmt.Errorf("session: destroying: %w", err)
	}
	return nil
}

// UserID returns the logged in user's id, or 0.
func (m *Manager) UserID(ctx context.Context) uint {
	return uint(m.GetInt(ctx, keyUserID))
}

// Stop ends the expired-session cleanup loop.
func (m *Manager) Stop() {
	m.store.StopCleanup()
}
