package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWT_MintAndValidate(t *testing.T) {
	j := NewJWT("my-secret-key")

	// 1. Mint
	token, err := j.Mint("user_42")
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}
	if token == "" {
		t.Fatal("Mint() returned empty token")
	}

	// 2. Validate success
	claims, err := j.Validate(token)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if claims.Subject != "user_42" {
		t.Errorf("Validate() got Subject %q, want %q", claims.Subject, "user_42")
	}

	// 3. Tampered signature
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".invalid-signature"
	if _, err := j.Validate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() tampered token error = %v, want ErrInvalidToken", err)
	}

	// 4. Invalid format
	if _, err := j.Validate("invalid.token"); err == nil {
		t.Error("Validate() accepted invalid format")
	}
}

func TestJWT_MintClaimSet(t *testing.T) {
	j := NewJWT("my-secret-key")

	token, err := j.Mint("user_42")
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts, want 3", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if header["alg"] != "HS256" {
		t.Errorf("alg = %v, want HS256", header["alg"])
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if len(claims) != 1 || claims["sub"] != "user_42" {
		t.Errorf("claims = %v, want only sub=user_42", claims)
	}
}

func TestJWT_MintErrors(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		subject string
		wantErr error
	}{
		{"empty subject", "secret", "", ErrInvalidRequest},
		{"whitespace subject", "secret", "   ", ErrInvalidRequest},
		{"missing secret", "", "user_42", ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWT(tt.secret).Mint(tt.subject)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Mint() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWT_ValidateRejectsOtherSecret(t *testing.T) {
	token, err := NewJWT("secret-a").Mint("user_42")
	if err != nil {
		t.Fatalf("Mint() failed: %v", err)
	}

	if _, err := NewJWT("secret-b").Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWT_ValidateRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_42"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}

	if _, err := NewJWT("secret").Validate(signed); err == nil {
		t.Error("Validate() accepted unsigned token")
	}
}

func TestJWT_ValidateRequiresSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "authenticated"})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}

	if _, err := NewJWT("secret").Validate(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate() error = %v, want ErrInvalidToken", err)
	}
}
