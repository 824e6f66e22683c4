package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tube-curator/internal/models"
)

// ErrInvalidToken is returned for any credential that fails verification.
// Callers must not surface the underlying cause to clients; the distinction
// between malformed, expired, and tampered tokens stays server-side.
var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated identity derived from a verified credential.
type Principal struct {
	SubjectID string
	Email     string
	Role      string
}

// HasAnyRole reports whether the principal's role is in the provided set.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(p.Role, role) {
			return true
		}
	}
	return false
}

type accessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig controls token issuance and verification.
type TokenConfig struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	Leeway    time.Duration
}

// TokenManager issues and verifies HS256 access tokens. It satisfies the
// gateway's TokenVerifier contract; any conforming verifier (remote
// introspection included) is substitutable at that boundary.
type TokenManager struct {
	cfg TokenConfig
}

// NewTokenManager validates the configuration and returns a manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &TokenManager{cfg: cfg}, nil
}

// Issue creates a signed access token for the provided user. The role claim
// carries the user's most privileged role.
func (m *TokenManager) Issue(user models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.cfg.AccessTTL)
	claims := accessClaims{
		Email: user.Email,
		Role:  primaryRole(user),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a credential and returns the principal encoded
// in it. Every verification failure collapses into ErrInvalidToken.
func (m *TokenManager) Verify(tokenStr string) (Principal, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Principal{}, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.cfg.Issuer))
	}
	if m.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(m.cfg.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      models.NormalizeRole(claims.Role),
	}, nil
}

func primaryRole(user models.User) string {
	if user.HasRole(models.RoleAdmin) {
		return models.RoleAdmin
	}
	if user.HasRole(models.RoleModerator) {
		return models.RoleModerator
	}
	return models.RoleUser
}
