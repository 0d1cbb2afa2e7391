package main

import (
	"log"
	"net/http"

	httphandlers "todoapp/internal/interfaces/http"
	"todoapp/internal/shared/config"
	"todoapp/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Token minting. Every verb reaches the handler so it can answer 405 itself.
	mintLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Mint.RatePerSecond,
		Burst:             cfg.Mint.RateLimitBurst,
	})
	mux.Handle("/api/create-jwt", mintLimit(middleware.NoStore(http.HandlerFunc(deps.TokenHandler.HandleCreateJWT))))

	// Local datastore gateway
	if deps.RestHandler != nil {
		gateway := middleware.APIKey(cfg.Datastore.AnonKey)(
			middleware.BearerAuth(deps.JWT)(
				middleware.Tracing(http.HandlerFunc(deps.RestHandler.HandleTodos)),
			),
		)
		mux.Handle("/rest/v1/todos", gateway)
		log.Println("Datastore gateway mounted at /rest/v1/todos")
	}

	// Apply global middleware
	handler := middleware.CORS(cfg.Server.AllowedHosts)(mux)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}
	handler = middleware.RequestID(middleware.Logging(handler))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}
