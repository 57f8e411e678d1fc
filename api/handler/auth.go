package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/storia/api/middleware"
	"github.com/ddevcap/storia/session"
	"github.com/ddevcap/storia/store"
)

// BcryptCost is the bcrypt work factor used for all password hashing.
const BcryptCost = 12

type AuthHandler struct {
	users          *store.Users
	sessions       *session.Manager
	onLoginFail    func(string)
	onLoginSuccess func(string)
}

func NewAuthHandler(users *store.Users, sessions *session.Manager, onFail, onSuccess func(string)) *AuthHandler {
	return &AuthHandler{
		users:          users,
		sessions:       sessions,
		onLoginFail:    onFail,
		onLoginSuccess: onSuccess,
	}
}

type signupRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Signup handles POST /auth/signup. The new user is logged in immediately.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), BcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating account. Please try again."})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Name, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		slog.Error("auth: signup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating account. Please try again."})
		return
	}

	if err := h.sessions.Login(c.Request.Context(), user); err != nil {
		slog.Error("auth: starting session failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating account. Please try again."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

// Login handles POST /auth/login. Failures are reported to the login rate
// limiter.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	ip := middleware.ClientIP(c)

	user, err := h.users.ByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("auth: looking up user failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error logging in. Please try again."})
			return
		}
		h.onLoginFail(ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.onLoginFail(ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	h.onLoginSuccess(ip)

	if err := h.sessions.Login(c.Request.Context(), user); err != nil {
		slog.Error("auth: starting session failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error logging in. Please try again."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Logout handles GET and POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		slog.Warn("auth: logout failed", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
