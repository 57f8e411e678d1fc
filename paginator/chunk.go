package paginator

import (
	"strings"
	"unicode/utf8"
)

var headerMarkers = []string{
	"*** START OF THE PROJECT GUTENBERG EBOOK",
	"*** START OF THIS PROJECT GUTENBERG EBOOK",
	"***START OF THE PROJECT GUTENBERG EBOOK",
	"*** START OF THE PROJECT GUTENBERG",
	"*** START OF THIS PROJECT GUTENBERG",
	"*** START OF THE PROJECT",
	"*END*THE SMALL PRINT",
}

var footerMarkers = []string{
	"*** END OF THE PROJECT GUTENBERG EBOOK",
	"*** END OF THIS PROJECT GUTENBERG EBOOK",
	"***END OF THE PROJECT GUTENBERG EBOOK",
	"*** END OF THE PROJECT GUTENBERG",
	"*** END OF THIS PROJECT GUTENBERG",
	"End of the Project Gutenberg",
	"End of Project Gutenberg",
}

// StripHeader removes the Project Gutenberg boilerplate up to and including
// the line holding the first start marker found. A marker on the last,
// unterminated line does not count and the next marker is tried.
func StripHeader(text string) string {
	for _, marker := range headerMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		nl := strings.IndexByte(text[idx:], '\n')
		if nl < 0 {
			continue
		}
		return text[idx+nl+1:]
	}
	return text
}

// StripFooter cuts the text at the first end marker found.
func StripFooter(text string) string {
	for _, marker := range footerMarkers {
		if idx := strings.Index(text, marker); idx >= 0 {
			return text[:idx]
		}
	}
	return text
}

// Chunk splits text into pages of about PageSize characters. Lines are never
// split, so a single long line makes an oversized page. Newlines are not
// counted. Only a line with text can open a page, so blank lines stay on
// the page before them. strings.Join(Chunk(t), "\n") == t.
func Chunk(text string) []string {
	var (
		pages []string
		cur   strings.Builder
		chars int
		lines int
	)

	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if n > 0 && chars > 0 && chars+n > PageSize {
			pages = append(pages, cur.String())
			cur.Reset()
			chars, lines = 0, 0
		}
		if lines > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		chars += n
		lines++
	}

	if cur.Len() > 0 {
		pages = append(pages, cur.String())
	}
	return pages
}
