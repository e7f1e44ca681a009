package auth

import (
	"net/http"
	"strings"
)

// TokenSource is one place a request may carry a member token.
type TokenSource struct {
	Name    string
	Extract func(r *http.Request) string
}

// TokenSources is the precedence order for finding a member token. The first
// source yielding a non-empty value wins; sources are never merged.
var TokenSources = []TokenSource{
	{Name: "bearer", Extract: bearerToken},
	{Name: "x-token", Extract: headerToken},
	{Name: "query", Extract: queryToken},
}

// ExtractToken returns the token presented by r and the name of the source it
// came from. ok is false when no source carries a token.
func ExtractToken(r *http.Request) (token, source string, ok bool) {
	for _, src := range TokenSources {
		if t := src.Extract(r); t != "" {
			return t, src.Name, true
		}
	}
	return "", "", false
}

// bearerToken reads "Authorization: Bearer <token>". The scheme is matched
// case-insensitively and anything after a comma is ignored.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	t := h[len(prefix):]
	if i := strings.IndexByte(t, ','); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func headerToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Token"))
}

func queryToken(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
