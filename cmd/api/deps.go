package main

import (
	"log"

	"todoapp/internal/infrastructure/postgres"
	httphandlers "todoapp/internal/interfaces/http"
	"todoapp/internal/shared/auth"
	"todoapp/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	TokenHandler *httphandlers.TokenHandler
	RestHandler  *httphandlers.RestHandler // nil unless the gateway is enabled

	// Auth
	JWT *auth.JWT
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	jwt := auth.NewJWT(cfg.Mint.Secret)
	if cfg.Mint.Secret == "" {
		log.Println("Warning: SUPABASE_JWT_SECRET is not set; create-jwt will answer 500 until it is configured")
	}

	deps := &Dependencies{
		JWT:          jwt,
		TokenHandler: httphandlers.NewTokenHandler(jwt),
	}

	if !cfg.Gateway.Enabled {
		log.Println("Datastore gateway is disabled")
		return deps, nil
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	todoRepo := postgres.NewTodoRepository(db)
	deps.DB = db
	deps.RestHandler = httphandlers.NewRestHandler(todoRepo.ForSubject)

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
