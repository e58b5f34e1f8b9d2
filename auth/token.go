package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAudience = "authenticated"
	defaultLeeway   = 30 * time.Second
)

var (
	ErrTokenExpired = errors.New("auth: token has expired")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims is the subset of the access token payload the API relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal identifies the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

type VerifierOption func(*Verifier)

func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) {
		if trimmed := strings.TrimSpace(audience); trimmed != "" {
			v.audience = trimmed
		}
	}
}

func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *Verifier) {
		if leeway >= 0 {
			v.leeway = leeway
		}
	}
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Verifier validates HS256 bearer tokens signed with a shared secret.
type Verifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	verifier := &Verifier{
		secret:   []byte(secret),
		audience: DefaultAudience,
		leeway:   defaultLeeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// Verify checks signature, audience and expiry, and requires a subject.
// Expired tokens return ErrTokenExpired; every other failure ErrInvalidToken.
func (v *Verifier) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Principal{}, ErrTokenExpired
	case err != nil:
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Principal{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	return Principal{UserID: subject, Email: claims.Email, Role: claims.Role}, nil
}

// Issue signs a token for subject. It backs the token CLI command and tests.
func Issue(secret string, subject string, audience string, ttl time.Duration, now time.Time) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("auth: jwt signing secret is required")
	}
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("auth: subject is required")
	}
	if strings.TrimSpace(audience) == "" {
		audience = DefaultAudience
	}
	claims := Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
