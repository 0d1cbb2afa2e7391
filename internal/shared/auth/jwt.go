package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidRequest = errors.New("invalid request: subject is required")
	ErrConfiguration  = errors.New("signing secret is not configured")
	ErrSigning        = errors.New("failed to sign token")
	ErrInvalidToken   = errors.New("invalid token")
)

// AccessClaims is the claim set of a data-access credential. The datastore's
// row-level policies read the subject; nothing else is asserted.
type AccessClaims struct {
	Subject string `json:"sub"`
}

// GetExpirationTime and the other getters satisfy jwt.Claims. Credentials
// carry no time claims, so all of them report absent.
func (c AccessClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c AccessClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c AccessClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c AccessClaims) GetIssuer() (string, error)                   { return "", nil }
func (c AccessClaims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c AccessClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// JWT signs and verifies HS256 data-access credentials with a shared secret.
type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

// Mint issues a credential asserting subject. The secret is checked per call
// so a service started without one still answers requests.
func (j *JWT) Mint(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrInvalidRequest
	}
	if len(j.secret) == 0 {
		return "", ErrConfiguration
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{Subject: subject})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Validate checks the signature and returns the claims. Only HS256 is accepted.
func (j *JWT) Validate(tokenString string) (*AccessClaims, error) {
	if len(j.secret) == 0 {
		return nil, ErrConfiguration
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return &claims, nil
}
