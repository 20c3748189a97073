package refresh_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urfu-lab/studyhub/core/refresh"
	inmemdb "github.com/urfu-lab/studyhub/storage/database/inmem"
)

func newService() (*refresh.Service, refresh.Repository) {
	repo := inmemdb.NewRefreshRepository(inmemdb.Open())
	return refresh.NewService(repo, 30*24*time.Hour), repo
}

func TestGenerateHash(t *testing.T) {
	tok, err := refresh.Generate()
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.NotContains(t, tok, "=")

	assert.Len(t, refresh.Hash(tok), 64)
	assert.Equal(t, refresh.Hash(tok), refresh.Hash(tok))
}

func TestCreateValidate(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()
	studentID := uuid.New()

	tok, err := svc.Create(ctx, studentID, "Mozilla/5.0", "10.0.0.1")
	require.NoError(t, err)

	stored, err := svc.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, studentID, stored.StudentID)
	assert.Equal(t, refresh.Hash(tok), stored.TokenHash)
	assert.Equal(t, "10.0.0.1", stored.IPAddress.String)
	assert.Equal(t, "Mozilla/5.0", stored.UserAgent.String)
	assert.WithinDuration(t, stored.CreatedAt.Add(30*24*time.Hour), stored.ExpiresAt, time.Second)

	// invalid ips are not stored
	tok2, err := svc.Create(ctx, studentID, "", "not-an-ip")
	require.NoError(t, err)
	stored2, err := repo.GetTokenByHash(ctx, refresh.Hash(tok2))
	require.NoError(t, err)
	assert.False(t, stored2.IPAddress.Valid)
	assert.False(t, stored2.UserAgent.Valid)

	_, err = svc.Validate(ctx, "unknown")
	assert.Equal(t, refresh.ErrInvalidToken, err)
	_, err = svc.Validate(ctx, "")
	assert.Equal(t, refresh.ErrInvalidToken, err)

	// expired
	svc.NowFunc = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	_, err = svc.Validate(ctx, tok)
	assert.Equal(t, refresh.ErrInvalidToken, err)
}

func TestInvalidate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	tok, err := svc.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, tok))
	_, err = svc.Validate(ctx, tok)
	assert.Equal(t, refresh.ErrInvalidToken, err)

	// used, unknown and empty tokens are ignored
	assert.NoError(t, svc.Invalidate(ctx, tok))
	assert.NoError(t, svc.Invalidate(ctx, "unknown"))
	assert.NoError(t, svc.Invalidate(ctx, ""))
}

func TestRotate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	studentID := uuid.New()

	tok, err := svc.Create(ctx, studentID, "", "")
	require.NoError(t, err)

	next, owner, err := svc.Rotate(ctx, tok, "agent", "::1")
	require.NoError(t, err)
	assert.Equal(t, studentID, owner)
	assert.NotEqual(t, tok, next)

	// the old token cannot be used again
	_, _, err = svc.Rotate(ctx, tok, "", "")
	assert.Equal(t, refresh.ErrInvalidToken, err)
	_, err = svc.Validate(ctx, tok)
	assert.Equal(t, refresh.ErrInvalidToken, err)

	stored, err := svc.Validate(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, studentID, stored.StudentID)

	// expired tokens are not rotated
	svc.NowFunc = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	_, _, err = svc.Rotate(ctx, next, "", "")
	assert.Equal(t, refresh.ErrInvalidToken, err)
}

func TestRotateConcurrently(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	tok, err := svc.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Rotate(ctx, tok, "", ""); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestErrorsCarryStack(t *testing.T) {
	assert.Contains(t, fmt.Sprintf("%+v", refresh.ErrInvalidToken), "core/refresh/refresh.go")
}
