// Package refresh manages the opaque, single-use refresh tokens handed out at login.
package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const tokenBytes = 64

var ErrInvalidToken = errors.New("invalid or expired refresh token")

type (
	Token struct {
		ID        uuid.UUID   `db:"id"`
		StudentID uuid.UUID   `db:"student_id"`
		TokenHash string      `db:"token_hash"`
		CreatedAt time.Time   `db:"created_at"`
		ExpiresAt time.Time   `db:"expires_at"`
		UsedAt    null.Time   `db:"used_at"`
		UserAgent null.String `db:"user_agent"`
		IPAddress null.String `db:"ip_address"`
	}

	Repository interface {
		CreateToken(ctx context.Context, t Token) (Token, error)
		GetTokenByHash(ctx context.Context, hash string) (Token, error)
		// MarkUsed sets used_at on the token if it is still unused. Returns ErrInvalidToken otherwise.
		MarkUsed(ctx context.Context, hash string, now time.Time) error
		// RotateToken consumes the unused, unexpired token with oldHash and stores replacement for the same student,
		// atomically.
		// Returns ErrInvalidToken when the old token cannot be consumed.
		RotateToken(ctx context.Context, oldHash string, now time.Time, replacement Token) (Token, error)
	}

	Service struct {
		repo    Repository
		ttl     time.Duration
		NowFunc func() time.Time
	}
)

func NewService(repo Repository, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl, NowFunc: time.Now}
}

// Generate returns a new random token: 64 bytes, URL-safe base64 without padding.
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash returns the hex encoded sha256 of token. Only hashes are stored.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (svc *Service) now() time.Time {
	return svc.NowFunc().UTC()
}

func (svc *Service) newToken(studentID uuid.UUID, userAgent, ip string) (string, Token, error) {
	raw, err := Generate()
	if err != nil {
		return "", Token{}, err
	}
	now := svc.now()
	t := Token{
		ID:        uuid.New(),
		StudentID: studentID,
		TokenHash: Hash(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(svc.ttl),
		UserAgent: null.NewString(userAgent, userAgent != ""),
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		t.IPAddress = null.StringFrom(parsed.String())
	}
	return raw, t, nil
}

// Create stores a new token for the student and returns it in clear.
func (svc *Service) Create(ctx context.Context, studentID uuid.UUID, userAgent, ip string) (string, error) {
	raw, t, err := svc.newToken(studentID, userAgent, ip)
	if err != nil {
		return "", err
	}
	if _, err = svc.repo.CreateToken(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// Validate returns the stored token when it is unused and not expired.
func (svc *Service) Validate(ctx context.Context, token string) (Token, error) {
	if token == "" {
		return Token{}, ErrInvalidToken
	}
	t, err := svc.repo.GetTokenByHash(ctx, Hash(token))
	if err != nil {
		return Token{}, err
	}
	if t.UsedAt.Valid || !t.ExpiresAt.After(svc.now()) {
		return Token{}, ErrInvalidToken
	}
	return t, nil
}

// Invalidate marks the token used. Unknown or already used tokens are ignored.
func (svc *Service) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := svc.repo.MarkUsed(ctx, Hash(token), svc.now()); err != nil && err != ErrInvalidToken {
		return err
	}
	return nil
}

// Rotate consumes token and returns its replacement with the owner's id. A token can be rotated at most once.
func (svc *Service) Rotate(ctx context.Context, token, userAgent, ip string) (string, uuid.UUID, error) {
	if token == "" {
		return "", uuid.Nil, ErrInvalidToken
	}
	raw, replacement, err := svc.newToken(uuid.Nil, userAgent, ip)
	if err != nil {
		return "", uuid.Nil, err
	}
	t, err := svc.repo.RotateToken(ctx, Hash(token), svc.now(), replacement)
	if err != nil {
		return "", uuid.Nil, err
	}
	return raw, t.StudentID, nil
}
