package gutendex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Person is a book author or translator.
type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}

// Book is a Gutendex book record. IsFavorite is computed per response and
// never sent by Gutendex.
type Book struct {
	ID            int               `json:"id"`
	Title         string            `json:"title"`
	Authors       []Person          `json:"authors"`
	Translators   []Person          `json:"translators,omitempty"`
	Subjects      []string          `json:"subjects"`
	Bookshelves   []string          `json:"bookshelves"`
	Languages     []string          `json:"languages"`
	Copyright     *bool             `json:"copyright"`
	MediaType     string            `json:"media_type"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
	IsFavorite    bool              `json:"isFavorite"`
}

// AuthorNames returns the authors joined for display, or "Unknown".
func (b Book) AuthorNames() string {
	if len(b.Authors) == 0 {
		return "Unknown"
	}
	names := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, "; ")
}

// Cover returns the cover image URL, if Gutendex lists one.
func (b Book) Cover() string {
	return b.Formats["image/jpeg"]
}

func (b *Book) validate() error {
	if b.ID <= 0 {
		return fmt.Errorf("%w: book without id", ErrMalformedResponse)
	}
	if b.Formats == nil {
		b.Formats = map[string]string{}
	}
	return nil
}

// BookList is one page of a Gutendex listing.
type BookList struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Book  `json:"results"`
}

// Sort orders accepted by Query. SortPopular is the Gutendex default and is
// never sent upstream.
const (
	SortPopular = "popular"
	SortTitle   = "title"
	SortAuthor  = "author"
	SortRecent  = "recent"
)

// Query holds listing and search parameters.
type Query struct {
	Search    string
	Languages string
	Sort      string
	Topic     string
	Page      int
	PerPage   int
}

// IsDefault reports whether the query is the unfiltered popular listing.
func (q Query) IsDefault() bool {
	return q.Search == "" && q.Languages == "" && q.Topic == "" &&
		(q.Sort == "" || q.Sort == SortPopular)
}

func (q Query) values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Languages != "" {
		v.Set("languages", q.Languages)
	}
	if q.Topic != "" {
		v.Set("topic", q.Topic)
	}
	switch q.Sort {
	case SortTitle, SortAuthor, SortRecent:
		v.Set("sort", q.Sort)
	}
	return v
}

// ListBooks calls GET /books/ with the given query.
func (c *Client) ListBooks(ctx context.Context, q Query) (*BookList, error) {
	var list BookList
	if err := c.getJSON(ctx, "list", "/books/", q.values(), &list); err != nil {
		return nil, err
	}
	if list.Results == nil {
		return nil, fmt.Errorf("%w: listing without results", ErrMalformedResponse)
	}
	for i := range list.Results {
		if err := list.Results[i].validate(); err != nil {
			return nil, err
		}
	}
	return &list, nil
}

// GetBook calls GET /books/{id}.
func (c *Client) GetBook(ctx context.Context, id int) (*Book, error) {
	var book Book
	if err := c.getJSON(ctx, "get", "/books/"+strconv.Itoa(id), nil, &book); err != nil {
		return nil, err
	}
	if err := book.validate(); err != nil {
		return nil, err
	}
	return &book, nil
}
