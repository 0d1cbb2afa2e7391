package middleware

import (
	"net/http"
	"net/url"

	"github.com/go-chi/cors"
)

// CORS allows browser clients on the allowed hosts to call the API with a
// bearer credential. With no allowed hosts every origin is accepted.
func CORS(allowedHosts []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "apikey", "Prefer", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}

	if len(allowedHosts) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return isOriginAllowed(origin, allowedHosts)
		}
	}

	return cors.Handler(opts)
}

func isOriginAllowed(origin string, allowedHosts []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return IsHostAllowed(u.Host, allowedHosts)
}
