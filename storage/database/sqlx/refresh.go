package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core/refresh"
	"github.com/urfu-lab/studyhub/storage/database"
)

const (
	refreshSelect = `SELECT id, student_id, token_hash, created_at, expires_at, used_at, user_agent, ip_address FROM refresh_tokens`
	refreshInsert = `INSERT INTO refresh_tokens (id, student_id, token_hash, created_at, expires_at, user_agent, ip_address)
VALUES (:id, :student_id, :token_hash, :created_at, :expires_at, :user_agent, :ip_address)`
)

type refreshRepository struct {
	db *sqlx.DB
}

func NewRefreshRepository(db *sqlx.DB) refresh.Repository {
	return &refreshRepository{db: db}
}

func (repo *refreshRepository) CreateToken(ctx context.Context, t refresh.Token) (refresh.Token, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, err := repo.db.NamedExecContext(ctx, refreshInsert, t); err != nil {
		return refresh.Token{}, errors.Wrap(err, "creating refresh token")
	}
	return t, nil
}

func (repo *refreshRepository) GetTokenByHash(ctx context.Context, hash string) (refresh.Token, error) {
	var t refresh.Token
	err := getOne(ctx, repo.db, &t, refresh.ErrInvalidToken, refreshSelect+" WHERE token_hash = $1", hash)
	return t, err
}

func (repo *refreshRepository) MarkUsed(ctx context.Context, hash string, now time.Time) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET used_at = $2 WHERE token_hash = $1 AND used_at IS NULL`, hash, now)
	if err != nil {
		return errors.Wrap(err, "invalidating refresh token")
	}
	return checkAffected(res, refresh.ErrInvalidToken)
}

func (repo *refreshRepository) RotateToken(ctx context.Context, oldHash string, now time.Time, replacement refresh.Token) (refresh.Token, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE refresh_tokens SET used_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
RETURNING student_id`
		if err := tx.GetContext(ctx, &replacement.StudentID, q, oldHash, now); err != nil {
			if err == sql.ErrNoRows {
				return refresh.ErrInvalidToken
			}
			return errors.Wrap(err, "consuming refresh token")
		}
		if replacement.ID == uuid.Nil {
			replacement.ID = uuid.New()
		}
		if _, err := tx.NamedExecContext(ctx, refreshInsert, replacement); err != nil {
			return errors.Wrap(err, "creating refresh token")
		}
		return nil
	})
	if err != nil {
		return refresh.Token{}, err
	}
	return replacement, nil
}
