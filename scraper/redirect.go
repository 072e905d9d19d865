package scraper

import "net/http"

// Resolution tells whether a response came from the resource itself.
type Resolution int

const (
	Resolved Resolution = iota
	RedirectedAway
)

func (r Resolution) String() string {
	if r == RedirectedAway {
		return "redirected_away"
	}
	return "resolved"
}

// ClassifyRedirect treats any 3xx status as a redirect away from the
// requested book. It is only meaningful for responses fetched with redirect
// following disabled.
func ClassifyRedirect(statusCode int) Resolution {
	if statusCode >= http.StatusMultipleChoices && statusCode < http.StatusBadRequest {
		return RedirectedAway
	}
	return Resolved
}
