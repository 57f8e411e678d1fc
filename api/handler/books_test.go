package handler_test

import (
	"net/http"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/storia/cache"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/paginator"
)

func book(id int, title string, formats map[string]string) gutendex.Book {
	return gutendex.Book{
		ID:        id,
		Title:     title,
		Authors:   []gutendex.Person{{Name: "Austen, Jane"}},
		Languages: []string{"en"},
		Formats:   formats,
	}
}

func bookIDs(resp map[string]any) []float64 {
	var ids []float64
	for _, b := range resp["books"].([]any) {
		ids = append(ids, b.(map[string]any)["id"].(float64))
	}
	return ids
}

var _ = Describe("BookHandler", func() {
	var a *app

	BeforeEach(func() {
		a = newApp()
		a.up.addBook(book(1, "Pride and Prejudice", map[string]string{"image/jpeg": "http://covers/1.jpg"}))
		a.up.addBook(book(2, "Emma", nil))
	})

	Describe("GET /books", func() {
		It("lists 32 books per page and caches the default listing", func() {
			w := doGet(a.router, "/books")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(bookIDs(resp)).To(Equal([]float64{1, 2}))
			Expect(resp["sort"]).To(Equal("popular"))
			Expect(resp["user"]).To(BeNil())

			q := a.up.lastQuery.Load().(url.Values)
			Expect(q.Get("per_page")).To(Equal("32"))
			Expect(q.Get("page")).To(Equal("1"))

			Expect(doGet(a.router, "/books").Code).To(Equal(http.StatusOK))
			Expect(a.up.listCalls.Load()).To(BeEquivalentTo(1))
			_, ok := a.cache.Get(cache.PrefixBooksList)
			Expect(ok).To(BeTrue())
		})

		It("does not cache filtered listings", func() {
			doGet(a.router, "/books?language=fr&sort=title&topic=poetry&search=rose")
			doGet(a.router, "/books?language=fr&sort=title&topic=poetry&search=rose")
			Expect(a.up.listCalls.Load()).To(BeEquivalentTo(2))

			q := a.up.lastQuery.Load().(url.Values)
			Expect(q.Get("languages")).To(Equal("fr"))
			Expect(q.Get("sort")).To(Equal("title"))
			Expect(q.Get("topic")).To(Equal("poetry"))
			Expect(q.Get("search")).To(Equal("rose"))
			_, ok := a.cache.Get(cache.PrefixBooksList)
			Expect(ok).To(BeFalse())
		})

		It("renders an empty listing with an error when Gutendex fails", func() {
			a.up.setFailing(true)
			w := doGet(a.router, "/books?language=fr")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["error"]).To(Equal("Failed to fetch books. Please try again later."))
			Expect(resp["books"]).To(BeEmpty())
			Expect(resp["language"]).To(Equal("fr"))
			Expect(resp["sort"]).To(Equal("popular"))
		})

		It("marks the user's favorites without touching the cached listing", func() {
			cookie := a.signup("Ada", "ada@example.com", "secret")
			Expect(doPost(a.router, "/api/favorites/add", map[string]any{"bookId": "2", "bookTitle": "Emma"}, cookie).Code).
				To(Equal(http.StatusOK))

			resp := decode(doGet(a.router, "/books", cookie))
			favs := map[float64]bool{}
			for _, b := range resp["books"].([]any) {
				m := b.(map[string]any)
				favs[m["id"].(float64)] = m["isFavorite"].(bool)
			}
			Expect(favs).To(Equal(map[float64]bool{1: false, 2: true}))

			anon := decode(doGet(a.router, "/books"))
			for _, b := range anon["books"].([]any) {
				Expect(b.(map[string]any)["isFavorite"]).To(BeFalse())
			}
		})
	})

	Describe("GET /book/:id", func() {
		It("returns the book and caches it", func() {
			w := doGet(a.router, "/book/1")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["book"].(map[string]any)["title"]).To(Equal("Pride and Prejudice"))

			doGet(a.router, "/book/1")
			Expect(a.up.bookCalls.Load()).To(BeEquivalentTo(1))
		})

		It("adds the display author and cover", func() {
			resp := decode(doGet(a.router, "/book/1"))
			Expect(resp["author"]).To(Equal("Austen, Jane"))
			Expect(resp["cover"]).To(Equal("http://covers/1.jpg"))

			a.up.addBook(gutendex.Book{ID: 3, Title: "Anonymous", Formats: map[string]string{}})
			resp = decode(doGet(a.router, "/book/3"))
			Expect(resp["author"]).To(Equal("Unknown"))
			Expect(resp["cover"]).To(BeEmpty())
		})

		It("returns 404 for unknown or malformed ids", func() {
			Expect(doGet(a.router, "/book/999").Code).To(Equal(http.StatusNotFound))
			Expect(doGet(a.router, "/book/abc").Code).To(Equal(http.StatusNotFound))
		})

		It("returns 502 when Gutendex fails", func() {
			a.up.setFailing(true)
			w := doGet(a.router, "/book/1")
			Expect(w.Code).To(Equal(http.StatusBadGateway))
			Expect(decode(w)["error"]).To(Equal("Failed to fetch book details. Please try again later."))
		})

		It("sets isFavorite for the logged in user", func() {
			cookie := a.signup("Ada", "ada@example.com", "secret")
			doPost(a.router, "/api/favorites/add", map[string]any{"bookId": 1}, cookie)

			Expect(decode(doGet(a.router, "/book/1", cookie))["book"].(map[string]any)["isFavorite"]).To(BeTrue())
			Expect(decode(doGet(a.router, "/book/1"))["book"].(map[string]any)["isFavorite"]).To(BeFalse())
		})
	})

	Describe("GET /read/:id", func() {
		var textURL string

		BeforeEach(func() {
			textURL = a.up.addText("7.txt", sampleText(40))
			a.up.addBook(book(7, "Sample", map[string]string{
				"text/html":  a.up.srv.URL + "/texts/7.html",
				"text/plain": textURL,
			}))
		})

		It("serves a page with navigation flags", func() {
			w := doGet(a.router, "/read/7?page=3")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["page"]).To(BeEquivalentTo(3))
			Expect(resp["totalPages"]).To(BeNumerically(">=", 40))
			Expect(resp["hasNext"]).To(BeTrue())
			Expect(resp["hasPrev"]).To(BeTrue())
			Expect(resp["currentPageContent"]).To(ContainSubstring("of the sample text"))
			Expect(resp["author"]).To(Equal("Austen, Jane"))
			Expect(resp).NotTo(HaveKey("error"))
		})

		It("does not fetch the text again for a repeated page", func() {
			first := decode(doGet(a.router, "/read/7?page=3"))
			Expect(a.up.textGets.Load()).To(BeEquivalentTo(1))

			second := decode(doGet(a.router, "/read/7?page=3"))
			Expect(a.up.textGets.Load()).To(BeEquivalentTo(1))
			Expect(second["currentPageContent"]).To(Equal(first["currentPageContent"]))
		})

		It("strips the Gutenberg header from the first page", func() {
			resp := decode(doGet(a.router, "/read/7"))
			Expect(resp["page"]).To(BeEquivalentTo(0))
			Expect(resp["hasPrev"]).To(BeFalse())
			Expect(resp["currentPageContent"]).NotTo(ContainSubstring("START OF THE PROJECT"))
			Expect(resp["currentPageContent"]).To(HavePrefix("Line 00000"))
		})

		It("treats an invalid page as page 0", func() {
			Expect(decode(doGet(a.router, "/read/7?page=abc"))["page"]).To(BeEquivalentTo(0))
			Expect(decode(doGet(a.router, "/read/7?page=-4"))["page"]).To(BeEquivalentTo(0))
		})

		It("reports a book without a readable text format", func() {
			a.up.addBook(book(42, "Pictures", map[string]string{
				"text/html; charset=iso-8859-1": "http://x/42.htm",
				"application/epub+zip":          "http://x/42.epub",
			}))

			w := doGet(a.router, "/read/42?page=0")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["error"]).To(ContainSubstring("No plain text format available"))
			Expect(resp["totalPages"]).To(BeEquivalentTo(1))
			Expect(resp["hasNext"]).To(BeFalse())
			Expect(resp["hasPrev"]).To(BeFalse())
			Expect(resp["currentPageContent"]).To(BeEmpty())
			Expect(a.up.textGets.Load()).To(BeZero())
		})

		It("reads a book whose only text format is html", func() {
			htmlURL := a.up.addText("43.html", sampleText(3))
			a.up.addBook(book(43, "Html Only", map[string]string{
				"text/html":            htmlURL,
				"application/epub+zip": "http://x/43.epub",
			}))

			resp := decode(doGet(a.router, "/read/43?page=0"))
			Expect(resp).NotTo(HaveKey("error"))
			Expect(resp["currentPageContent"]).To(ContainSubstring("of the sample text"))
			Expect(a.up.textGets.Load()).To(BeEquivalentTo(1))
		})

		It("shows placeholder content when the text host fails", func() {
			a.up.addBook(book(8, "Missing", map[string]string{"text/plain": a.up.srv.URL + "/texts/missing.txt"}))

			w := doGet(a.router, "/read/8?page=0")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["totalPages"]).To(BeEquivalentTo(paginator.DefaultTotalPages))
			Expect(resp["currentPageContent"]).To(HavePrefix("Error loading page content: "))
		})

		It("returns 404 for an unknown book", func() {
			w := doGet(a.router, "/read/999")
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)["error"]).To(Equal("Book not found"))
		})
	})

	Describe("GET /search", func() {
		It("returns an empty result without calling Gutendex for an empty query", func() {
			w := doGet(a.router, "/search")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["books"]).To(BeEmpty())
			Expect(resp["totalPages"]).To(BeEquivalentTo(0))
			Expect(resp["noResults"]).To(BeFalse())
			Expect(a.up.listCalls.Load()).To(BeZero())
		})

		It("searches 24 per page and computes the page count", func() {
			w := doGet(a.router, "/search?q=austen&language=en")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(bookIDs(resp)).To(Equal([]float64{1, 2}))
			// 2 results, count 20: ceil(20/24) = 1
			Expect(resp["totalPages"]).To(BeEquivalentTo(1))
			Expect(resp["hasNextPage"]).To(BeTrue())
			Expect(resp["hasPrevPage"]).To(BeFalse())
			Expect(resp["searchQuery"]).To(Equal("austen"))

			q := a.up.lastQuery.Load().(url.Values)
			Expect(q.Get("per_page")).To(Equal("24"))
			Expect(q.Get("search")).To(Equal("austen"))
			Expect(q.Get("languages")).To(Equal("en"))
			Expect(q.Has("sort")).To(BeFalse())
		})

		It("queries later pages even without a search term", func() {
			resp := decode(doGet(a.router, "/search?page=2"))
			Expect(resp["page"]).To(BeEquivalentTo(2))
			Expect(resp["hasPrevPage"]).To(BeTrue())
			Expect(a.up.listCalls.Load()).To(BeEquivalentTo(1))
		})

		It("clamps the page to 1", func() {
			resp := decode(doGet(a.router, "/search?q=x&page=0"))
			Expect(resp["page"]).To(BeEquivalentTo(1))
		})

		It("flags a search without results", func() {
			a = newApp()
			resp := decode(doGet(a.router, "/search?q=nothing"))
			Expect(resp["noResults"]).To(BeTrue())
			Expect(resp["totalPages"]).To(BeEquivalentTo(0))
		})

		It("renders an empty result with an error when Gutendex fails", func() {
			a.up.setFailing(true)
			w := doGet(a.router, "/search?q=austen")
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["error"]).To(Equal("Failed to search books. Please try again later."))
			Expect(resp["books"]).To(BeEmpty())
			Expect(resp["searchQuery"]).To(Equal("austen"))
			Expect(resp["noResults"]).To(BeFalse())
		})
	})
})
