package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"todoapp/internal/shared/auth"
)

type subjectKey struct{}

// TokenValidator checks a data-access credential.
type TokenValidator interface {
	Validate(token string) (*auth.AccessClaims, error)
}

// BearerAuth requires a valid data-access credential and stores its subject
// in the request context.
func BearerAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, "PGRST302", "Anonymous access is disabled")
				return
			}

			claims, err := v.Validate(token)
			if err != nil {
				log.Printf("Rejected credential on %s %s: %v", r.Method, r.URL.Path, err)
				writeAuthError(w, "PGRST301", "JWT invalid")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKey requires the project's public key in the apikey header. An empty
// anonKey disables the check.
func APIKey(anonKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if anonKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("apikey")
			if subtle.ConstantTimeCompare([]byte(got), []byte(anonKey)) != 1 {
				writeAuthError(w, "PGRST301", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext returns the subject placed by BearerAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok && sub != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"details": nil,
		"hint":    nil,
	})
}
