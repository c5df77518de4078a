// Package users declares the identity store used by the auth flows and
// provides PostgreSQL and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations on user records.
type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt. A taken
	// username or nickname yields common.ErrorConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns common.ErrorNotFound when no user has that name.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ExistsByLoginOrNickname reports whether login or nickname is taken.
	ExistsByLoginOrNickname(ctx context.Context, login, nickname string) (bool, error)

	// UpdatePassword replaces hash and salt. Returns common.ErrorNotFound for
	// an unknown id.
	UpdatePassword(ctx context.Context, id string, hash, salt []byte) error
}
