package identity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Error is returned for every rejected token. The pipeline treats all identity
// rejections as terminal: a token does not become valid by retrying.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "identity verification failed: " + e.Reason
}

// Identity is the verified subject derived from a bearer token. Only SubjectID
// is ever persisted; claims are kept for in-process use (display name refresh).
type Identity struct {
	SubjectID string
	Claims    jwt.MapClaims
}

// DisplayName returns the name claim when the issuer provided one.
func (i Identity) DisplayName() string {
	if name, ok := i.Claims["name"].(string); ok {
		return name
	}
	return ""
}

// Verifier turns an opaque bearer token into a verified subject.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier validates issuer-signed HMAC tokens with a shared key. It fails
// closed: empty, malformed, expired, or foreign-method tokens are all rejected
// with *Error and no internal retry.
type JWTVerifier struct {
	key []byte
}

// NewJWTVerifier builds a verifier from raw key material.
func NewJWTVerifier(key []byte) (*JWTVerifier, error) {
	if len(key) == 0 {
		return nil, errors.New("identity: signing key is required")
	}
	return &JWTVerifier{key: key}, nil
}

// NewJWTVerifierFromFile loads the issuer key from the credentials file named
// by IDENTITY_KEY_FILE.
func NewJWTVerifierFromFile(path string) (*JWTVerifier, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity key file: %w", err)
	}
	return NewJWTVerifier(key)
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &Error{Reason: "no token provided"}
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, &Error{Reason: "token has expired"}
		}
		return Identity{}, &Error{Reason: "invalid token"}
	}
	if !parsed.Valid {
		return Identity{}, &Error{Reason: "invalid token"}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, &Error{Reason: "token has no subject"}
	}

	return Identity{SubjectID: sub, Claims: claims}, nil
}
