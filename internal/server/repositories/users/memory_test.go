package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.Create(ctx, &models.User{UserName: "alice", Nickname: "al", PasswordHash: []byte("h"), Salt: []byte("s")})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got.PasswordHash[0] = 'x'
	again, err := r.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), again.PasswordHash, "stored record must not alias returned copies")

	ok, err := r.ExistsByLoginOrNickname(ctx, "bob", "al")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ExistsByLoginOrNickname(ctx, "bob", "bobby")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.UpdatePassword(ctx, u.ID, []byte("h2"), []byte("s2")))
	again, err = r.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("s2"), again.Salt)

	assert.ErrorIs(t, r.UpdatePassword(ctx, "nope", nil, nil), common.ErrorNotFound)

	_, err = r.GetUserByLogin(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.GetUserByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_Conflict(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	_, err := r.Create(ctx, &models.User{UserName: "alice", Nickname: "al"})
	require.NoError(t, err)

	_, err = r.Create(ctx, &models.User{UserName: "alice", Nickname: "other"})
	assert.ErrorIs(t, err, common.ErrorConflict)

	_, err = r.Create(ctx, &models.User{UserName: "other", Nickname: "al"})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestMemoryRepository_Remove(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.Create(ctx, &models.User{UserName: "alice", Nickname: "al"})
	require.NoError(t, err)

	r.Remove(u.ID)
	r.Remove("missing")

	_, err = r.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Create(ctx, &models.User{UserName: "alice", Nickname: "al"})
	assert.NoError(t, err)
}

func TestMemoryRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	const n = 32
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(ctx, &models.User{UserName: "alice", Nickname: "al"})
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, common.ErrorConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, conflicts.Load())
}
