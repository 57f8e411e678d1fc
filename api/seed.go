package api

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/storia/api/handler"
	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/store"
)

// SeedInitialUser creates one account when the database has no users yet.
// It is a no-op when users exist, so it runs on every startup. Seeding is
// skipped with a warning unless both INITIAL_USER_EMAIL and
// INITIAL_USER_PASSWORD are set.
func SeedInitialUser(ctx context.Context, users *store.Users, cfg config.Config) {
	count, err := users.Count(ctx)
	if err != nil {
		slog.Error("seed: failed to count users", "error", err)
		return
	}
	if count > 0 {
		return
	}

	if cfg.InitialUserPassword == "" || cfg.InitialUserEmail == "" {
		slog.Warn("seed: no users found but INITIAL_USER_EMAIL or INITIAL_USER_PASSWORD is not set, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialUserPassword), handler.BcryptCost)
	if err != nil {
		slog.Error("seed: failed to hash initial user password", "error", err)
		return
	}

	u, err := users.Create(ctx, cfg.InitialUserName, cfg.InitialUserEmail, string(hash))
	if err != nil {
		slog.Error("seed: failed to create initial user", "error", err)
		return
	}
	slog.Info("seed: created initial user", "email", u.Email)
}
