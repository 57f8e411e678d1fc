package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/store"
)

type FavoritesHandler struct {
	favorites *store.Favorites
}

func NewFavoritesHandler(favs *store.Favorites) *FavoritesHandler {
	return &FavoritesHandler{favorites: favs}
}

type addFavoriteRequest struct {
	BookID     flexInt `json:"bookId"`
	BookTitle  string  `json:"bookTitle"`
	BookAuthor string  `json:"bookAuthor"`
	BookCover  string  `json:"bookCover"`
}

type removeFavoriteRequest struct {
	BookID flexInt `json:"bookId"`
}

// Profile handles GET /profile.
func (h *FavoritesHandler) Profile(c *gin.Context) {
	user := userFromCtx(c)
	favs, err := h.favorites.List(c.Request.Context(), user.ID)
	if err != nil {
		slog.Error("favorites: listing failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load favorites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"title":     "Profile | Storia",
		"favorites": favs,
	})
}

// List handles GET /api/favorites.
func (h *FavoritesHandler) List(c *gin.Context) {
	user := userFromCtx(c)
	favs, err := h.favorites.List(c.Request.Context(), user.ID)
	if err != nil {
		slog.Error("favorites: listing failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load favorites"})
		return
	}
	c.JSON(http.StatusOK, favs)
}

// Add handles POST /api/favorites/add. Adding an existing favorite refreshes
// its details.
func (h *FavoritesHandler) Add(c *gin.Context) {
	var req addFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId is required"})
		return
	}
	user := userFromCtx(c)
	err := h.favorites.Add(c.Request.Context(), store.Favorite{
		UserID: user.ID,
		BookID: int(req.BookID),
		Title:  req.BookTitle,
		Author: req.BookAuthor,
		Cover:  req.BookCover,
	})
	if err != nil {
		slog.Error("favorites: add failed", "user_id", user.ID, "book_id", int(req.BookID), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add favorite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Remove handles POST /api/favorites/remove. Removing a book that is not a
// favorite succeeds.
func (h *FavoritesHandler) Remove(c *gin.Context) {
	var req removeFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId is required"})
		return
	}
	user := userFromCtx(c)
	if err := h.favorites.Remove(c.Request.Context(), user.ID, int(req.BookID)); err != nil {
		slog.Error("favorites: remove failed", "user_id", user.ID, "book_id", int(req.BookID), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove favorite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
