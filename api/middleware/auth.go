package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/session"
	"github.com/ddevcap/storia/store"
)

const ContextKeyUser = "user"

// LoadUser resolves the session's user and stores it in the gin context.
// Anonymous requests pass through. A session whose user no longer exists is
// destroyed.
func LoadUser(sm *session.Manager, users *store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := sm.UserID(ctx)
		if id == 0 {
			c.Next()
			return
		}

		user, err := users.ByID(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			_ = sm.Logout(ctx)
		case err != nil:
			slog.Warn("auth: loading session user failed", "user_id", id, "error", err)
		default:
			c.Set(ContextKeyUser, user)
		}
		c.Next()
	}
}

// User returns the user stored by LoadUser, or nil.
func User(c *gin.Context) *store.User {
	u, _ := c.Get(ContextKeyUser)
	user, _ := u.(*store.User)
	return user
}

// RequireAuth rejects anonymous requests. It must run after LoadUser.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if User(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// NonProduction hides debug and test endpoints in production.
func NonProduction(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.IsProduction() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Debug endpoints are disabled in production mode",
			})
			return
		}
		c.Next()
	}
}
