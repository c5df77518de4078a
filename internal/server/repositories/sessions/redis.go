package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

// RedisRepository stores each session as JSON under session:<token> with a
// TTL equal to the time left until expiry. The set user_sessions:<user>
// indexes the tokens of a user and expires with the last of them; members
// whose session key is gone are pruned lazily.
type RedisRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func userKey(userID string) string { return userSessionsKeyPrefix + userID }

func (r *RedisRepository) Save(ctx context.Context, userID, token string, expiresAt time.Time, device models.Device, ip string) (*models.Session, error) {
	now := r.now()
	if err := validate(userID, token, expiresAt, ip, now); err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:        newID(),
		Token:     token,
		UserID:    userID,
		Device:    device,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: now.UTC(),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(token), data, expiresAt.Sub(now)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return nil, common.ErrorConflict
	}

	if err := r.client.SAdd(ctx, userKey(userID), token).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if err := r.extendIndex(ctx, userID, expiresAt.Sub(now)); err != nil {
		return nil, err
	}

	return s, nil
}

// extendIndex keeps the user index alive until the latest of its sessions
// expires. A key without a TTL reports a negative one.
func (r *RedisRepository) extendIndex(ctx context.Context, userID string, ttl time.Duration) error {
	key := userKey(userID)
	cur, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if cur >= ttl {
		return nil
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	s, err := r.get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.ExpiresAt.After(r.now()) {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (r *RedisRepository) get(ctx context.Context, token string) (*models.Session, error) {
	val, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &s, nil
}

// Delete relies on DEL returning the number of removed keys: of two
// concurrent callers only one sees 1.
func (r *RedisRepository) Delete(ctx context.Context, token string) (bool, error) {
	s, err := r.get(ctx, token)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	n, err := r.client.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}

	if s != nil {
		if err := r.client.SRem(ctx, userKey(s.UserID), token).Err(); err != nil {
			return n > 0, fmt.Errorf("redis error: %w", err)
		}
	}
	return n > 0, nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tokens, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}

	var n int64
	if len(keys) > 0 {
		n, err = r.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, fmt.Errorf("redis error: %w", err)
		}
	}
	if err := r.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return n, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func (r *RedisRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	tokens, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = sessionKey(t)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	now := r.now()
	var (
		out   []models.Session
		stale []any
	)
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, tokens[i])
			continue
		}
		var s models.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("session: unmarshal: %w", err)
		}
		if s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}

	sortSessions(out)
	return out, nil
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
