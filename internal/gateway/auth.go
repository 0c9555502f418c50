package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// extractAPIKey pulls the caller's key from whichever of the three
// accepted locations carries it, in the order the front-end checks them.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if k, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return k
		}
	}
	if k := r.Header.Get("x-api-key"); k != "" {
		return k
	}
	if k := r.Header.Get("x-goog-api-key"); k != "" {
		return k
	}
	return ""
}

// authenticate reports whether key matches any configured API key, using
// a constant-time comparison so response latency leaks nothing about how
// many characters matched.
func (g *Gateway) authenticate(key string) bool {
	if key == "" {
		return false
	}
	supplied := []byte(key)
	ok := false
	for _, configured := range g.apiKeys {
		if len(configured) != len(supplied) {
			continue
		}
		if subtle.ConstantTimeCompare(configured, supplied) == 1 {
			ok = true
		}
	}
	return ok
}
