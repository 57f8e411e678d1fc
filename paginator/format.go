package paginator

// formatPriorities lists the Gutendex format keys the reader accepts, most
// preferred first.
var formatPriorities = []string{
	"text/plain",
	"text/plain; charset=utf-8",
	"text/plain; charset=us-ascii",
	"text/plain; charset=iso-8859-1",
	"text/plain; charset=windows-1252",
	"text/html",
	"text/html; charset=utf-8",
}

// ResolveFormat picks the text URL to read a book from. It returns false when
// none of the accepted formats is present with a non-empty URL.
func ResolveFormat(formats map[string]string) (string, bool) {
	for _, key := range formatPriorities {
		if u := formats[key]; u != "" {
			return u, true
		}
	}
	return "", false
}
