package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/api/middleware"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/store"
)

// userFromCtx returns the logged in user, or nil for anonymous requests.
func userFromCtx(c *gin.Context) *store.User {
	return middleware.User(c)
}

// favoriteIDs returns the user's favorite book ids. Lookup failures are
// logged and treated as no favorites.
func favoriteIDs(ctx context.Context, favs *store.Favorites, user *store.User) map[int]bool {
	if user == nil {
		return nil
	}
	ids, err := favs.BookIDs(ctx, user.ID)
	if err != nil {
		slog.Warn("handler: loading favorites failed", "user_id", user.ID, "error", err)
		return nil
	}
	return ids
}

// withFavorites copies books and marks the favorites. Cached slices are never
// modified.
func withFavorites(books []gutendex.Book, ids map[int]bool) []gutendex.Book {
	out := make([]gutendex.Book, len(books))
	for i, b := range books {
		b.IsFavorite = ids[b.ID]
		out[i] = b
	}
	return out
}

// flexInt accepts a JSON number or a numeric string, as sent by HTML forms.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		var num json.Number
		if jerr := json.Unmarshal(b, &num); jerr != nil {
			return err
		}
		i, ierr := num.Int64()
		if ierr != nil {
			return err
		}
		n = int(i)
	}
	*f = flexInt(n)
	return nil
}

// queryInt parses a query parameter, returning def when absent or invalid.
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}
