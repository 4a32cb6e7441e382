package requestkey

import (
	"errors"
	"net/http"
)

// ErrMethodNotSupported is returned for requests that may not be stored.
// Only read-only fetches have a request identity.
var ErrMethodNotSupported = errors.New("method not supported")

const methodSeparator = ":"

// Key returns the request identity used to store the response to r.
// The identity is the method and the request URI (path and query), e.g. `GET:/dashboard?tab=2`.
func Key(r *http.Request) (string, error) {
	if r.Method != http.MethodGet && r.Method != "" {
		return "", ErrMethodNotSupported
	}
	return ForPath(r.URL.RequestURI()), nil
}

// ForPath returns the identity of a GET request for the given request URI.
// It is used to address well-known entries such as the offline page.
func ForPath(uri string) string {
	if uri == "" {
		uri = "/"
	}
	return http.MethodGet + methodSeparator + uri
}
