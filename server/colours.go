package server

import "net/http"

// ANSI colours for the DEV route listing.
const (
	ansiGreen   = "\033[32m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
	ansiGray    = "\033[90m"
	ansiReset   = "\033[0m"
)

// methodColour picks the colour a route's method is printed in. Only the
// methods this router serves get their own colour.
func methodColour(method string) string {
	switch method {
	case http.MethodGet:
		return ansiGreen
	case http.MethodPost:
		return ansiBlue
	case http.MethodPatch:
		return ansiMagenta
	default:
		return ansiGray
	}
}
