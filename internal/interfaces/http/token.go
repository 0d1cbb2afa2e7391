package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"todoapp/internal/shared/auth"
)

const maxMintRequestBytes = 4 << 10

var (
	mintMeter      = otel.Meter("todoapp/mint")
	mintCounter, _ = mintMeter.Int64Counter("mint.requests.total",
		metric.WithDescription("Credential mint requests by outcome"),
	)
)

// Minter issues a data-access credential for a subject.
type Minter interface {
	Mint(subject string) (string, error)
}

type TokenHandler struct {
	minter Minter
}

func NewTokenHandler(minter Minter) *TokenHandler {
	return &TokenHandler{minter: minter}
}

type CreateJWTRequest struct {
	UserID string `json:"userId"`
}

type CreateJWTResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCreateJWT exchanges {"userId"} for {"token"}. The caller is trusted
// to assert its own identity; the endpoint authenticates nothing.
func (h *TokenHandler) HandleCreateJWT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintf(w, "Method %s Not Allowed", r.Method)
		return
	}

	var req CreateJWTRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMintRequestBytes)).Decode(&req); err != nil {
		log.Printf("Error decoding create-jwt request: %v", err)
		h.recordOutcome(r, "invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request"})
		return
	}

	token, err := h.minter.Mint(req.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRequest) {
			h.recordOutcome(r, "invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request"})
			return
		}
		log.Printf("Error generating JWT: %v", err)
		h.recordOutcome(r, "error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error generating JWT"})
		return
	}

	h.recordOutcome(r, "issued")
	writeJSON(w, http.StatusOK, CreateJWTResponse{Token: token})
}

func (h *TokenHandler) recordOutcome(r *http.Request, outcome string) {
	mintCounter.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
