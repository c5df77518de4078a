package repomanager

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// TxFunc is a unit of work over repositories that share one transaction
// when the backend has transactions.
type TxFunc func(ctx context.Context, users users.Repository, sessions sessions.Repository) error

// Storage binds the user and session repositories to their backends.
//
// With Postgres, InTx runs fn in a single transaction. Sessions kept outside
// Postgres (Redis, memory) are not part of that transaction.
type Storage struct {
	db           *sql.DB
	manager      RepositoryManager
	users        users.Repository
	sessions     sessions.Repository
	sessionsInDB bool
	closers      []func() error
}

func NewPostgresStorage(db *sql.DB, m RepositoryManager) *Storage {
	return &Storage{
		db:           db,
		manager:      m,
		users:        m.Users(db),
		sessions:     m.Sessions(db),
		sessionsInDB: true,
		closers:      []func() error{db.Close},
	}
}

func NewMemoryStorage() *Storage {
	return &Storage{
		users:    users.NewMemoryRepository(),
		sessions: sessions.NewMemoryRepository(),
	}
}

// WithSessions replaces the session backend. closer, if not nil, runs on Close.
func (s *Storage) WithSessions(repo sessions.Repository, closer func() error) *Storage {
	s.sessions = repo
	s.sessionsInDB = false
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return s
}

func (s *Storage) Users() users.Repository { return s.users }

func (s *Storage) Sessions() sessions.Repository { return s.sessions }

func (s *Storage) InTx(ctx context.Context, fn TxFunc) error {
	if s.db == nil {
		return s.inMemoryTx(ctx, fn)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sess := s.sessions
		if s.sessionsInDB {
			sess = s.manager.Sessions(tx)
		}
		return fn(ctx, s.manager.Users(tx), sess)
	})
}

// inMemoryTx undoes the users created by fn when fn fails.
func (s *Storage) inMemoryTx(ctx context.Context, fn TxFunc) error {
	mem, ok := s.users.(*users.MemoryRepository)
	if !ok {
		return fn(ctx, s.users, s.sessions)
	}

	j := &journaledUsers{Repository: mem}
	err := fn(ctx, j, s.sessions)
	if err != nil {
		for _, id := range j.created {
			mem.Remove(id)
		}
	}
	return err
}

type journaledUsers struct {
	users.Repository
	created []string
}

func (j *journaledUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u, err := j.Repository.Create(ctx, user)
	if err == nil {
		j.created = append(j.created, u.ID)
	}
	return u, err
}

// Close releases every backend connection.
func (s *Storage) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
