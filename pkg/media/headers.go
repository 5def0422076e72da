package media

import (
	"net/http"
	"strings"
)

// ForwardHeaders returns a copy of h without any header whose name
// contains "content", in any casing. Content headers describe this
// server's envelope, not the presenter's, so they must not leak into
// the authorization call. All other headers pass through unchanged.
func ForwardHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for key, values := range h {
		if strings.Contains(strings.ToLower(key), "content") {
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}
