package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/libgen-go/internal/logging"
)

// authMiddleware requires "Authorization: Bearer <LIBGEN_API_KEY>" on the
// generation and context routes. An empty apiKey disables the check; New
// logs that once at startup.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := sha256.Sum256([]byte(apiKey))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			deny(w, r, "authorization required", "")
		case !keyMatches(want, token):
			deny(w, r, "invalid token", "invalid_token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// keyMatches compares digests so the comparison time does not depend on
// where token first differs or on its length.
func keyMatches(want [sha256.Size]byte, token string) bool {
	got := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

// deny writes a 401 with a Bearer challenge. The presented token is never
// logged.
func deny(w http.ResponseWriter, r *http.Request, msg, code string) {
	logging.FromContext(r.Context()).Warn("server: unauthorized",
		slog.String("reason", msg),
		slog.String("route", r.Pattern),
	)
	challenge := `Bearer realm="libgen"`
	if code != "" {
		challenge += ` error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeJSONError(w, msg, http.StatusUnauthorized)
}

// bearerToken returns the credential from a Bearer Authorization header, or
// "" when the header is missing or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
