package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

const (
	credFileName = "credentials.json"

	// SessionTokenEnv overrides the stored session token.
	SessionTokenEnv = "TODO_SESSION_TOKEN"
)

// Session is an identity-provider session token held by the terminal client.
type Session struct {
	Token     string    `json:"token"`
	Source    string    `json:"source"` // "env" | "file"
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists the session token under a per-user directory.
type SessionStore struct {
	dir string
}

func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

func (s *SessionStore) path() string {
	return filepath.Join(s.dir, credFileName)
}

// Load returns the current session, or nil when the user is not logged in.
func (s *SessionStore) Load() (*Session, error) {
	if env := strings.TrimSpace(os.Getenv(SessionTokenEnv)); env != "" {
		return &Session{Token: stripBearer(env), Source: "env"}, nil
	}

	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	sess.Token = stripBearer(sess.Token)
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(token string) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(Session{
		Token:     token,
		Source:    "file",
		CreatedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}

// SubjectVerifier extracts the subject identifier from a session token.
type SubjectVerifier interface {
	Subject(ctx context.Context, token string) (string, error)
}

// OIDCVerifier checks session tokens against the identity provider's
// published keys. The issuer is <baseURL>/<projectID> and the audience is
// the project ID.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, baseURL, projectID string) (*OIDCVerifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: identity project ID is empty", ErrConfiguration)
	}
	issuer := strings.TrimRight(baseURL, "/") + "/" + projectID
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: projectID}),
	}, nil
}

func (v *OIDCVerifier) Subject(ctx context.Context, token string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("session verification failed: %w", err)
	}
	if idToken.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return idToken.Subject, nil
}

// UnverifiedDecoder reads the subject without checking the signature.
// Only meant for development setups without an identity provider.
type UnverifiedDecoder struct{}

func (UnverifiedDecoder) Subject(_ context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return sub, nil
}

// ResolveIdentity loads the session and returns its subject. An empty
// identity with a nil error means nobody is logged in.
func ResolveIdentity(ctx context.Context, store *SessionStore, verifier SubjectVerifier) (string, error) {
	sess, err := store.Load()
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	return verifier.Subject(ctx, sess.Token)
}
