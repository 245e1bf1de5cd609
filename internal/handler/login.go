package handler

import (
	"crypto/subtle"
	"net/http"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/middleware"
)

// LoginHandler handles POST /auth/login by checking the submitted key and
// issuing the auth cookie accepted by middleware.AuthMiddleware.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.FormValue("key")
		if config.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(config.APIKey)) != 1 {
			logger.Warning("Rejected login from %s", r.RemoteAddr)
			WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid key", "")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.AuthCookie,
			Value:    key,
			Path:     "/",
			MaxAge:   2592000, // 30 days
			HttpOnly: true,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutHandler clears the auth cookie.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.AuthCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
