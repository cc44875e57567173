package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, and missing claims.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrTokenExpired is returned for structurally valid but expired tokens.
	ErrTokenExpired = errors.New("access token expired")
)

// Config for a Manager. Secret is the HS256 signing secret shared with the
// gateway; Leeway tolerates small clock skew between core and gateway.
type Config struct {
	Secret []byte
	Leeway time.Duration
}

// Identity is the verified subject of an access token.
type Identity struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Manager verifies gateway access tokens. Safe for concurrent use.
type Manager struct {
	config Config
	parser *jwt.Parser
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and builds a verifier.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 secret required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{
		config: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Identity parses and verifies raw, returning its subject and email claims.
// Expired tokens map to ErrTokenExpired; everything else wrong maps to
// ErrTokenInvalid.
func (m *Manager) Identity(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &accessClaims{}
	_, err := m.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	ident := &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}
	return ident, nil
}
