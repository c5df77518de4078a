package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryRepository keeps users in process memory. Uniqueness of username
// and nickname is enforced under a single lock, so concurrent Create calls
// with the same name have exactly one winner.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byLogin    map[string]string
	byNickname map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byLogin:    make(map[string]string),
		byNickname: make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byLogin[user.UserName]; ok {
		return nil, common.ErrorConflict
	}
	if _, ok := r.byNickname[user.Nickname]; ok {
		return nil, common.ErrorConflict
	}

	user.ID = uuid.NewString()
	user.CreatedAt = r.now().UTC()

	stored := clone(user)
	r.byID[stored.ID] = stored
	r.byLogin[stored.UserName] = stored.ID
	r.byNickname[stored.Nickname] = stored.ID

	return user, nil
}

// Remove drops the user with id. Unknown ids are ignored.
func (r *MemoryRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byLogin, u.UserName)
	delete(r.byNickname, u.Nickname)
}

func (r *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byLogin[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) ExistsByLoginOrNickname(_ context.Context, login, nickname string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, a := r.byLogin[login]
	_, b := r.byNickname[nickname]
	return a || b, nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id string, hash, salt []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = append([]byte(nil), hash...)
	u.Salt = append([]byte(nil), salt...)
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.Salt = append([]byte(nil), u.Salt...)
	return &c
}
