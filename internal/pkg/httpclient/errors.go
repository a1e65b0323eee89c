package httpclient

import (
	"fmt"
)

// Error is a non-2xx HTTP response surfaced as an error. The body is kept so
// callers can classify backend refusals without re-fetching.
type Error struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Body       []byte `json:"body"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s - %s with status %s", e.Method, e.URL, e.Status)
}
