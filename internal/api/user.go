package api

import (
	"net/http"
	"strings"
)

// DefaultUserID is used when a request carries no X-User-ID header.
const DefaultUserID = "anonymous"

// userID identifies the caller for per-user job limits and listings.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return DefaultUserID
}
