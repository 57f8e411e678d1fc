// Package static embeds static content served by the app.
package static

import _ "embed"

// About is the markdown served by GET /about.
//
//go:embed about.md
var About string
