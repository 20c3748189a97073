// Package auth issues and verifies the short-lived access tokens shared by the core API and the ML service.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const TokenTypeAccess = "access"

var ErrInvalidToken = errors.New("invalid or expired jwt")

type (
	Identity struct {
		UserID   uuid.UUID
		Username string
		FullName string
	}

	Claims struct {
		UserID    string `json:"user_id"`
		Username  string `json:"username,omitempty"`
		FullName  string `json:"full_name,omitempty"`
		TokenType string `json:"token_type"`
		jwt.RegisteredClaims
	}

	Manager struct {
		secret  []byte
		ttl     time.Duration
		issuer  string
		NowFunc func() time.Time
	}
)

// Identity returns who the claims were issued for. The user id falls back to the subject.
func (c Claims) Identity() (Identity, error) {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: uid, Username: c.Username, FullName: c.FullName}, nil
}

func NewManager(secret string, ttl time.Duration, issuer string) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, issuer: issuer, NowFunc: time.Now}
}

// Issue signs an HS256 access token for id.
func (m *Manager) Issue(id Identity) (string, error) {
	now := m.NowFunc()
	claims := Claims{
		UserID:    id.UserID.String(),
		Username:  id.Username,
		FullName:  id.FullName,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the signature, signing method, expiry and type of an access token.
func (m *Manager) Parse(token string) (*Claims, error) {
	parsed, err := m.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return parsed.Claims.(*Claims), nil
}

// ParseToken is Parse returning the whole token. Its Claims are a *Claims.
func (m *Manager) ParseToken(token string) (*jwt.Token, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.NowFunc),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "" && claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidToken
	}
	return parsed, nil
}
