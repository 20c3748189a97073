package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core/refresh"
)

type refreshRepository struct {
	db *DB
}

func NewRefreshRepository(db *DB) refresh.Repository {
	return &refreshRepository{db: db}
}

func (repo *refreshRepository) CreateToken(_ context.Context, t refresh.Token) (refresh.Token, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	repo.db.refreshTokens[t.TokenHash] = t
	return t, nil
}

func (repo *refreshRepository) GetTokenByHash(_ context.Context, hash string) (refresh.Token, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.refreshTokens[hash]; ok {
		return t, nil
	}
	return refresh.Token{}, refresh.ErrInvalidToken
}

func (repo *refreshRepository) MarkUsed(_ context.Context, hash string, now time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.refreshTokens[hash]
	if !ok || t.UsedAt.Valid {
		return refresh.ErrInvalidToken
	}
	t.UsedAt = null.TimeFrom(now)
	repo.db.refreshTokens[hash] = t
	return nil
}

func (repo *refreshRepository) RotateToken(_ context.Context, oldHash string, now time.Time, replacement refresh.Token) (refresh.Token, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	old, ok := repo.db.refreshTokens[oldHash]
	if !ok || old.UsedAt.Valid || !old.ExpiresAt.After(now) {
		return refresh.Token{}, refresh.ErrInvalidToken
	}
	old.UsedAt = null.TimeFrom(now)
	repo.db.refreshTokens[oldHash] = old

	if replacement.ID == uuid.Nil {
		replacement.ID = uuid.New()
	}
	replacement.StudentID = old.StudentID
	repo.db.refreshTokens[replacement.TokenHash] = replacement
	return replacement, nil
}
