package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryRepository is a process-local Repository for tests and single-node
// development setups.
type MemoryRepository struct {
	mu      sync.Mutex
	byToken map[string]models.Session
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byToken: make(map[string]models.Session),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Save(_ context.Context, userID, token string, expiresAt time.Time, device models.Device, ip string) (*models.Session, error) {
	now := r.now()
	if err := validate(userID, token, expiresAt, ip, now); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[token]; ok {
		return nil, common.ErrorConflict
	}

	s := models.Session{
		ID:        newID(),
		Token:     token,
		UserID:    userID,
		Device:    device,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: now.UTC(),
	}
	r.byToken[token] = s
	return &s, nil
}

func (r *MemoryRepository) FindByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byToken[token]
	if !ok || !s.ExpiresAt.After(r.now()) {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) Delete(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[token]; !ok {
		return false, nil
	}
	delete(r.byToken, token)
	return true, nil
}

func (r *MemoryRepository) DeleteByUser(_ context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(s models.Session) bool { return s.UserID == userID }), nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(s models.Session) bool { return !s.ExpiresAt.After(now) }), nil
}

func (r *MemoryRepository) deleteWhere(match func(models.Session) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for tok, s := range r.byToken {
		if match(s) {
			delete(r.byToken, tok)
			n++
		}
	}
	return n
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []models.Session
	for _, s := range r.byToken {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// sortSessions orders by creation time; ULIDs break ties.
func sortSessions(s []models.Session) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.Before(s[j].CreatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
