package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"library-catalog/internal/models"
)

// Claims is the content of the signed session cookie.
type Claims struct {
	UserID      int64    `json:"uid"`
	Username    string   `json:"username"`
	Staff       bool     `json:"staff"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFor builds claims describing u.
func ClaimsFor(u *models.User) *Claims {
	return &Claims{
		UserID:      u.ID,
		Username:    u.Username,
		Staff:       u.IsStaff,
		Permissions: u.Permissions,
	}
}

// HasProjectPermissions reports whether the claims grant every project permission.
func (c *Claims) HasProjectPermissions() bool {
	return models.HasAllPermissions(c.Permissions, models.ProjectPermissions)
}

// SessionManager signs and verifies session tokens.
type SessionManager struct {
	secret string
	issuer string
	expiry time.Duration
}

func NewSessionManager(secret, issuer string, expiry time.Duration) *SessionManager {
	return &SessionManager{secret: secret, issuer: issuer, expiry: expiry}
}

// ValidateConfig rejects settings that would produce weak or unusable tokens.
func (m *SessionManager) ValidateConfig() error {
	if len(m.secret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if m.issuer == "" {
		return errors.New("session issuer must not be empty")
	}
	if m.expiry <= 0 {
		return errors.New("session expiry must be positive")
	}
	return nil
}

// Expiry is the lifetime of issued sessions.
func (m *SessionManager) Expiry() time.Duration {
	return m.expiry
}

// Session is a freshly signed session token.
type Session struct {
	ID      string
	Token   string
	Expires time.Time
}

// Issue signs a session for u. Each session carries a unique id so that a
// SessionStore can end it before it expires.
func (m *SessionManager) Issue(u *models.User) (Session, error) {
	now := time.Now()
	sess := Session{ID: uuid.NewString(), Expires: now.Add(m.expiry)}
	claims := ClaimsFor(u)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        sess.ID,
		ExpiresAt: jwt.NewNumericDate(sess.Expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    m.issuer,
		Subject:   strconv.FormatInt(u.ID, 10),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secret))
	if err != nil {
		return Session{}, err
	}
	sess.Token = token
	return sess, nil
}

// Validate parses a session token and checks its signature, issuer and lifetime.
func (m *SessionManager) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secret), nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID <= 0 || claims.ID == "" {
		return nil, errors.New("invalid session")
	}
	return claims, nil
}
