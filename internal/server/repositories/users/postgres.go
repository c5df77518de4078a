package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, nickname, password, salt)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Nickname, user.PasswordHash, user.Salt).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dup, _ := dbx.IsUniqueViolation(err); dup {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const selectUser = `SELECT id, username, nickname, password, salt, created_at FROM users`

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.getOne(ctx, selectUser+`
		 WHERE username = $1
		 `, login)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, selectUser+`
		 WHERE id = $1
		 `, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.UserName, &user.Nickname, &user.PasswordHash, &user.Salt, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) ExistsByLoginOrNickname(ctx context.Context, login, nickname string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM users WHERE username = $1 OR nickname = $2
		 )`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, login, nickname).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash, salt []byte) error {
	query :=
		`UPDATE users SET password = $2, salt = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, hash, salt)
	if err != nil {
		if dup, _ := dbx.IsUniqueViolation(err); dup {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
