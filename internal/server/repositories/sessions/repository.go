// Package sessions stores one record per issued refresh token. The presence
// of a record is what keeps a refresh token usable; removing it revokes the
// token even though its signature and expiry are still valid.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines the session lifecycle. Implementations are safe for
// concurrent use.
type Repository interface {
	// Save creates a session for token. A token that already has a session
	// yields common.ErrorConflict; bad input yields common.ErrorValidation.
	Save(ctx context.Context, userID, token string, expiresAt time.Time, device models.Device, ip string) (*models.Session, error)

	// FindByToken returns common.ErrorNotFound for an unknown or expired token.
	FindByToken(ctx context.Context, token string) (*models.Session, error)

	// Delete removes the session for token and reports whether this call
	// was the one that removed it. A missing token is not an error.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteByUser revokes every session of userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// ListByUser returns the live sessions of userID, oldest first.
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)

	// DeleteExpired removes sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func validate(userID, token string, expiresAt time.Time, ip string, now time.Time) error {
	switch {
	case userID == "":
		return fmt.Errorf("%w: empty user id", common.ErrorValidation)
	case token == "":
		return fmt.Errorf("%w: empty token", common.ErrorValidation)
	case ip == "":
		return fmt.Errorf("%w: empty ip", common.ErrorValidation)
	case len(ip) > models.MaxIPLength:
		return fmt.Errorf("%w: ip longer than %d", common.ErrorValidation, models.MaxIPLength)
	case !expiresAt.After(now):
		return fmt.Errorf("%w: expiry not in the future", common.ErrorValidation)
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}
