package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/cache"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/paginator"
	"github.com/ddevcap/storia/store"
)

const (
	booksPerPage  = 32
	searchPerPage = 24

	noTextFormatMessage = "No plain text format available for this book. Please try another book."
)

type BookHandler struct {
	client    *gutendex.Client
	cache     *cache.Store
	paginator *paginator.Paginator
	favorites *store.Favorites
}

func NewBookHandler(client *gutendex.Client, c *cache.Store, p *paginator.Paginator, favs *store.Favorites) *BookHandler {
	return &BookHandler{client: client, cache: c, paginator: p, favorites: favs}
}

// listingFilters are the query parameters shared by /books and /search.
type listingFilters struct {
	language string
	sort     string
	topic    string
}

func filtersFrom(c *gin.Context) listingFilters {
	f := listingFilters{
		language: c.Query("language"),
		sort:     c.Query("sort"),
		topic:    c.Query("topic"),
	}
	if f.sort == "" {
		f.sort = gutendex.SortPopular
	}
	return f
}

// Books handles GET /books. Only the unfiltered popular listing is cached.
// A Gutendex failure still answers 200 with an empty listing and an error.
func (h *BookHandler) Books(c *gin.Context) {
	ctx := c.Request.Context()
	user := userFromCtx(c)
	f := filtersFrom(c)
	q := gutendex.Query{
		Search:    c.Query("search"),
		Languages: f.language,
		Sort:      f.sort,
		Topic:     f.topic,
		Page:      1,
		PerPage:   booksPerPage,
	}

	resp := gin.H{
		"user":        user,
		"searchQuery": q.Search,
		"language":    f.language,
		"sort":        f.sort,
		"topic":       f.topic,
	}

	useCache := q.IsDefault()
	books, ok := []gutendex.Book(nil), false
	if useCache {
		books, ok = cache.Lookup[[]gutendex.Book](h.cache, cache.PrefixBooksList)
	}
	if !ok {
		list, err := h.client.ListBooks(ctx, q)
		if err != nil {
			slog.Error("books: listing failed", "error", err)
			resp["books"] = []gutendex.Book{}
			resp["error"] = "Failed to fetch books. Please try again later."
			c.JSON(http.StatusOK, resp)
			return
		}
		books = list.Results
		if useCache {
			h.cache.Set(cache.PrefixBooksList, books, h.cache.TTL())
		}
	}

	resp["books"] = withFavorites(books, favoriteIDs(ctx, h.favorites, user))
	c.JSON(http.StatusOK, resp)
}

// book returns the cached or freshly fetched book.
func (h *BookHandler) book(ctx context.Context, id int) (*gutendex.Book, error) {
	key := cache.PrefixBook + strconv.Itoa(id)
	if b, ok := cache.Lookup[gutendex.Book](h.cache, key); ok {
		return &b, nil
	}
	b, err := h.client.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	h.cache.Set(key, *b, h.cache.TTL())
	return b, nil
}

// bookParam loads the book named by the :id path parameter, writing the
// error response itself when that fails.
func (h *BookHandler) bookParam(c *gin.Context, upstreamMsg string) (*gutendex.Book, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return nil, false
	}
	b, err := h.book(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gutendex.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
			return nil, false
		}
		slog.Error("books: fetching book failed", "book_id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamMsg})
		return nil, false
	}
	return b, true
}

// Book handles GET /book/:id.
func (h *BookHandler) Book(c *gin.Context) {
	b, ok := h.bookParam(c, "Failed to fetch book details. Please try again later.")
	if !ok {
		return
	}
	user := userFromCtx(c)
	b.IsFavorite = favoriteIDs(c.Request.Context(), h.favorites, user)[b.ID]
	c.JSON(http.StatusOK, gin.H{
		"book":   b,
		"author": b.AuthorNames(),
		"cover":  b.Cover(),
		"user":   user,
	})
}

// Read handles GET /read/:id?page=N.
func (h *BookHandler) Read(c *gin.Context) {
	b, ok := h.bookParam(c, "Failed to fetch book details. Please try again later.")
	if !ok {
		return
	}

	textURL, ok := paginator.ResolveFormat(b.Formats)
	if !ok {
		slog.Info("books: no readable format", "book_id", b.ID)
		c.JSON(http.StatusOK, gin.H{
			"book":               b,
			"author":             b.AuthorNames(),
			"error":              noTextFormatMessage,
			"currentPageContent": "",
			"page":               0,
			"totalPages":         1,
			"hasNext":            false,
			"hasPrev":            false,
		})
		return
	}

	p := h.paginator.Page(c.Request.Context(), b.ID, textURL, queryInt(c, "page", 0))
	c.JSON(http.StatusOK, gin.H{
		"book":               b,
		"author":             b.AuthorNames(),
		"currentPageContent": p.Content,
		"page":               p.Index,
		"totalPages":         p.TotalPages,
		"hasNext":            p.HasNext,
		"hasPrev":            p.HasPrev,
	})
}

// Search handles GET /search. An empty query on the first page returns an
// empty result without calling Gutendex. Failures answer like Books.
func (h *BookHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	user := userFromCtx(c)
	f := filtersFrom(c)
	q := c.Query("q")
	page := max(queryInt(c, "page", 1), 1)

	resp := gin.H{
		"books":       []gutendex.Book{},
		"user":        user,
		"searchQuery": q,
		"language":    f.language,
		"sort":        f.sort,
		"topic":       f.topic,
		"page":        page,
		"totalPages":  0,
		"hasNextPage": false,
		"hasPrevPage": false,
		"noResults":   false,
	}

	if q == "" && page == 1 {
		c.JSON(http.StatusOK, resp)
		return
	}

	list, err := h.client.ListBooks(ctx, gutendex.Query{
		Search:    q,
		Languages: f.language,
		Sort:      f.sort,
		Topic:     f.topic,
		Page:      page,
		PerPage:   searchPerPage,
	})
	if err != nil {
		slog.Error("books: search failed", "query", q, "error", err)
		resp["error"] = "Failed to search books. Please try again later."
		c.JSON(http.StatusOK, resp)
		return
	}

	resp["books"] = withFavorites(list.Results, favoriteIDs(ctx, h.favorites, user))
	resp["totalPages"] = int(math.Ceil(float64(list.Count) / searchPerPage))
	resp["hasNextPage"] = list.Next != nil
	resp["hasPrevPage"] = list.Previous != nil
	resp["noResults"] = len(list.Results) == 0 && q != ""
	c.JSON(http.StatusOK, resp)
}
