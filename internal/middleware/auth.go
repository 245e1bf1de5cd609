package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// AuthCookie carries the key after a successful login.
	AuthCookie = "api_key"
	// AuthHeader carries the key for programmatic clients.
	AuthHeader = "X-API-Key"
)

// AuthMiddleware requires apiKey in the X-API-Key header or the auth cookie.
// An empty apiKey disables the check. Login and health endpoints stay open.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" ||
				r.URL.Path == "/auth/login" ||
				r.URL.Path == "/healthz" ||
				strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(AuthHeader)
			if key == "" {
				if cookie, err := r.Cookie(AuthCookie); err == nil {
					key = cookie.Value
				}
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"code": "unauthorized", "message": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
