// Package auth issues and verifies the credentials accepted by the API:
// HS256 JWTs for configured users and static bearer tokens for
// integrations.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/walla-walla-travel/tourops/internal/config"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

// Roles accepted in user configuration and carried in tokens.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	defaultTTL = 24 * time.Hour
	issuer     = "tourops"
)

// Claims is the JWT payload for a logged-in user.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is an authenticated caller.
type Identity struct {
	Username string
	Role     string
}

// Admin reports whether the identity carries the admin role.
func (i Identity) Admin() bool {
	return i.Role == RoleAdmin
}

// Manager verifies passwords and mints and validates tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  map[string]config.AuthUser
	tokens []string
}

// NewManager builds a manager from the auth configuration. Configured
// users require a JWT secret; roles must be admin or staff.
func NewManager(cfg config.AuthConfig) (*Manager, error) {
	users, err := cfg.ParseUsers()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]config.AuthUser, len(users))
	for _, u := range users {
		if u.Role != RoleAdmin && u.Role != RoleStaff {
			return nil, fmt.Errorf("user %s: unknown role %q (want admin or staff)", u.Username, u.Role)
		}
		if _, dup := byName[u.Username]; dup {
			return nil, fmt.Errorf("user %s configured twice", u.Username)
		}
		byName[u.Username] = u
	}
	if len(byName) > 0 && strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required when users are configured")
	}

	ttl := time.Duration(cfg.TokenTTLSec) * time.Second
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		users:  byName,
		tokens: cfg.ParseAPITokens(),
	}, nil
}

// Enabled reports whether any credentials are configured. With none,
// the API runs open and the middleware only guards role-gated routes.
func (m *Manager) Enabled() bool {
	return len(m.users) > 0 || len(m.tokens) > 0
}

// Login verifies the password and issues a signed JWT for the user.
func (m *Manager) Login(username, password string) (string, Identity, error) {
	user, ok := m.users[username]
	if !ok || !checkPassword(user.Password, password) {
		return "", Identity{}, apperrors.Unauthorized("invalid credentials")
	}

	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return token, Identity{Username: user.Username, Role: user.Role}, nil
}

// VerifyJWT validates a signed token and returns the caller it names.
func (m *Manager) VerifyJWT(tokenString string) (Identity, error) {
	if len(m.secret) == 0 {
		return Identity{}, apperrors.InvalidToken(nil)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, apperrors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, apperrors.InvalidToken(nil)
	}
	return Identity{Username: claims.Username, Role: claims.Role}, nil
}

// VerifyStatic reports whether the bearer token is a configured static
// API token. Static tokens act as staff.
func (m *Manager) VerifyStatic(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	for _, configured := range m.tokens {
		if subtle.ConstantTimeCompare([]byte(configured), []byte(token)) == 1 {
			return Identity{Username: "api-token", Role: RoleStaff}, true
		}
	}
	return Identity{}, false
}

// Authenticate resolves a bearer token, static tokens first, then JWT.
func (m *Manager) Authenticate(token string) (Identity, error) {
	if ident, ok := m.VerifyStatic(token); ok {
		return ident, nil
	}
	return m.VerifyJWT(token)
}

// checkPassword compares against a bcrypt hash when the stored value
// looks like one, and constant-time plaintext otherwise (dev configs).
func checkPassword(stored, candidate string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
