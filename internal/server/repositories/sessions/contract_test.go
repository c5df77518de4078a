package sessions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func backends(t *testing.T, c *clock) map[string]Repository {
	t.Helper()

	mem := NewMemoryRepository()
	mem.now = c.Now

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rr := NewRedisRepository(client)
	rr.now = c.Now

	return map[string]Repository{"memory": mem, "redis": rr}
}

var phone = models.Device{Browser: "Safari", BrowserVersion: "17", OS: "iOS", OSVersion: "17.4"}

func TestRepository_SaveFind(t *testing.T) {
	c := newClock()
	for name, repo := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := c.Now().Add(time.Hour)

			s, err := repo.Save(ctx, "u1", "tok-1", exp, phone, "10.0.0.1")
			require.NoError(t, err)
			assert.NotEmpty(t, s.ID)
			assert.True(t, s.ExpiresAt.Equal(exp))

			got, err := repo.FindByToken(ctx, "tok-1")
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, phone, got.Device)
			assert.Equal(t, "10.0.0.1", got.IP)
			assert.True(t, got.ExpiresAt.Equal(exp))

			_, err = repo.FindByToken(ctx, "missing")
			assert.ErrorIs(t, err, common.ErrorNotFound)
		})
	}
}

func TestRepository_DuplicateToken(t *testing.T) {
	c := newClock()
	for name, repo := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := c.Now().Add(time.Hour)

			_, err := repo.Save(ctx, "u1", "dup", exp, models.Device{}, "::1")
			require.NoError(t, err)
			_, err = repo.Save(ctx, "u2", "dup", exp, models.Device{}, "::1")
			assert.ErrorIs(t, err, common.ErrorConflict)
		})
	}
}

func TestRepository_Validation(t *testing.T) {
	c := newClock()
	long := "0000:0000:0000:0000:0000:0000:0000:0000:0"
	for name, repo := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			future := c.Now().Add(time.Minute)

			tests := []struct {
				name  string
				user  string
				token string
				exp   time.Time
				ip    string
			}{
				{"no user", "", "t", future, "1.1.1.1"},
				{"no token", "u", "", future, "1.1.1.1"},
				{"no ip", "u", "t", future, ""},
				{"ip too long", "u", "t", future, long},
				{"expired", "u", "t", c.Now(), "1.1.1.1"},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					_, err := repo.Save(ctx, tt.user, tt.token, tt.exp, models.Device{}, tt.ip)
					assert.ErrorIs(t, err, common.ErrorValidation)
				})
			}
		})
	}
}

func TestRepository_DeleteIsCompareAndDelete(t *testing.T) {
	c := newClock()
	for name, repo := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := repo.Save(ctx, "u1", "once", c.Now().Add(time.Hour), models.Device{}, "1.2.3.4")
			require.NoError(t, err)

			const n = 16
			var removed atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := repo.Delete(ctx, "once")
					assert.NoError(t, err)
					if ok {
						removed.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, removed.Load())
			_, err = repo.FindByToken(ctx, "once")
			assert.ErrorIs(t, err, common.ErrorNotFound)

			ok, err := repo.Delete(ctx, "never-existed")
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRepository_ExpiredIsNotFound(t *testing.T) {
	for name := range backends(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			c := newClock()
			repo := backends(t, c)[name]
			ctx := context.Background()

			_, err := repo.Save(ctx, "u1", "short", c.Now().Add(time.Minute), models.Device{}, "1.2.3.4")
			require.NoError(t, err)

			c.Advance(time.Minute)
			_, err = repo.FindByToken(ctx, "short")
			assert.ErrorIs(t, err, common.ErrorNotFound)

			list, err := repo.ListByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestRepository_ListAndDeleteByUser(t *testing.T) {
	c := newClock()
	for name, repo := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exp := c.Now().Add(time.Hour)

			for i := 0; i < 3; i++ {
				_, err := repo.Save(ctx, "alice", fmt.Sprintf("a-%d", i), exp, phone, "1.2.3.4")
				require.NoError(t, err)
				c.Advance(time.Second)
			}
			_, err := repo.Save(ctx, "bob", "b-0", exp, models.Device{}, "5.6.7.8")
			require.NoError(t, err)

			list, err := repo.ListByUser(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, list, 3)
			for i, s := range list {
				assert.Equal(t, fmt.Sprintf("a-%d", i), s.Token)
			}

			ok, err := repo.Delete(ctx, "a-1")
			require.NoError(t, err)
			require.True(t, ok)

			list, err = repo.ListByUser(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, list, 2)

			n, err := repo.DeleteByUser(ctx, "alice")
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)

			list, err = repo.ListByUser(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, list)

			_, err = repo.FindByToken(ctx, "b-0")
			assert.NoError(t, err, "other users keep their sessions")
		})
	}
}

func TestMemoryRepository_DeleteExpired(t *testing.T) {
	c := newClock()
	repo := NewMemoryRepository()
	repo.now = c.Now
	ctx := context.Background()

	_, err := repo.Save(ctx, "u", "soon", c.Now().Add(time.Minute), models.Device{}, "1.1.1.1")
	require.NoError(t, err)
	_, err = repo.Save(ctx, "u", "later", c.Now().Add(time.Hour), models.Device{}, "1.1.1.1")
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, c.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindByToken(ctx, "later")
	assert.NoError(t, err)
}

func TestRedisRepository_KeyTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := newClock()
	repo := NewRedisRepository(client)
	repo.now = c.Now

	_, err := repo.Save(context.Background(), "u1", "tok", c.Now().Add(30*time.Minute), models.Device{}, "1.1.1.1")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, mr.TTL("session:tok"))
	members, err := mr.Members("user_sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok"}, members)

	mr.FastForward(31 * time.Minute)
	_, err = repo.FindByToken(context.Background(), "tok")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, mr.Exists("user_sessions:u1"), "stale index members are pruned")
}

func TestRedisRepository_IndexTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := newClock()
	repo := NewRedisRepository(client)
	repo.now = c.Now

	save := func(token string, ttl time.Duration) {
		t.Helper()
		_, err := repo.Save(ctx, "u1", token, c.Now().Add(ttl), models.Device{}, "1.1.1.1")
		require.NoError(t, err)
	}

	save("a", 30*time.Minute)
	assert.Equal(t, 30*time.Minute, mr.TTL("user_sessions:u1"))

	save("b", 10*time.Minute)
	assert.Equal(t, 30*time.Minute, mr.TTL("user_sessions:u1"), "a shorter session does not shorten the index")

	save("c", time.Hour)
	assert.Equal(t, time.Hour, mr.TTL("user_sessions:u1"))

	mr.FastForward(61 * time.Minute)
	assert.False(t, mr.Exists("user_sessions:u1"), "index expires without a listing")
}
