package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"todoapp/internal/domain/todo"
)

const (
	defaultTimeout = 10 * time.Second
	todosPath      = "/rest/v1/todos"
)

// ErrConfiguration is returned when no datastore endpoint is configured.
var ErrConfiguration = errors.New("datastore endpoint is not configured")

// DatastoreError carries the error body returned by the datastore.
type DatastoreError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *DatastoreError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("datastore returned status %d", e.Status)
}

type Config struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
}

// Factory builds data-access clients bound to one datastore endpoint.
type Factory struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewFactory validates the endpoint once. A missing URL is an error rather
// than a client pointed at nothing.
func NewFactory(cfg Config) (*Factory, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if raw == "" {
		return nil, ErrConfiguration
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrConfiguration, cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Factory{
		baseURL:    raw,
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
	}, nil
}

// New returns a client presenting accessToken as a bearer credential.
func (f *Factory) New(accessToken string) *Client {
	return &Client{factory: f, accessToken: accessToken}
}

// Client talks to the todos relation of the datastore's REST surface.
// The credential is not inspected here; the datastore validates it.
type Client struct {
	factory     *Factory
	accessToken string
}

// Ensure Client implements todo.Repository
var _ todo.Repository = (*Client)(nil)

func (c *Client) List(ctx context.Context) ([]todo.Todo, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "id.asc")

	var rows []todo.Todo
	if err := c.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return rows, nil
}

func (c *Client) Create(ctx context.Context, params todo.CreateParams) (*todo.Todo, error) {
	body := map[string]any{
		"task":    params.Task,
		"user_id": params.UserID,
	}

	var rows []todo.Todo
	if err := c.do(ctx, http.MethodPost, nil, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert returned %d rows, want 1", len(rows))
	}
	return &rows[0], nil
}

func (c *Client) SetComplete(ctx context.Context, id int64, complete bool) (*todo.Todo, error) {
	body := map[string]any{"is_complete": complete}

	var rows []todo.Todo
	if err := c.do(ctx, http.MethodPatch, idFilter(id), body, &rows); err != nil {
		return nil, fmt.Errorf("failed to update todo %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update todo %d: %w", id, todo.ErrNotFound)
	}
	return &rows[0], nil
}

// Delete removes id and fails with todo.ErrNotFound when no row visible to
// this credential matched.
func (c *Client) Delete(ctx context.Context, id int64) (*todo.Todo, error) {
	var rows []todo.Todo
	if err := c.do(ctx, http.MethodDelete, idFilter(id), nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to delete todo %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("delete todo %d: %w", id, todo.ErrNotFound)
	}
	return &rows[0], nil
}

func idFilter(id int64) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	return q
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body any, out any) error {
	endpoint := c.factory.baseURL + todosPath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if c.factory.anonKey != "" {
		req.Header.Set("apikey", c.factory.anonKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.factory.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		dsErr := &DatastoreError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, dsErr); jsonErr != nil || dsErr.Message == "" {
			dsErr.Message = strings.TrimSpace(string(respBody))
		}
		return dsErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
