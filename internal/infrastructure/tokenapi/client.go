package tokenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 10 * time.Second
	createJWTPath  = "/api/create-jwt"
)

// ErrMalformedResponse is returned when a 200 response has no token.
var ErrMalformedResponse = errors.New("mint response has no token")

// Client calls the token minting endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type createJWTRequest struct {
	UserID string `json:"userId"`
}

type createJWTResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// CreateJWT exchanges userID for a data-access credential.
func (c *Client) CreateJWT(ctx context.Context, userID string) (string, error) {
	body, err := json.Marshal(createJWTRequest{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createJWTPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out createJWTResponse
	jsonErr := json.Unmarshal(respBody, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if jsonErr != nil || msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", fmt.Errorf("mint endpoint returned %d: %s", resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, jsonErr)
	}
	if out.Token == "" {
		return "", ErrMalformedResponse
	}
	return out.Token, nil
}
