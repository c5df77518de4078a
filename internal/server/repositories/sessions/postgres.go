package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository keeps sessions in the sessions table over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Save(ctx context.Context, userID, token string, expiresAt time.Time, device models.Device, ip string) (*models.Session, error) {
	if err := validate(userID, token, expiresAt, ip, r.now()); err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:        newID(),
		Token:     token,
		UserID:    userID,
		Device:    device,
		IP:        ip,
		ExpiresAt: expiresAt,
	}

	query := `
		INSERT INTO sessions (id, token, user_id, browser, browser_version, os, os_version, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.Token, s.UserID,
		nullable(device.Browser), nullable(device.BrowserVersion), nullable(device.OS), nullable(device.OSVersion),
		s.IP, s.ExpiresAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		if dup, _ := dbx.IsUniqueViolation(err); dup {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

const selectSession = `
		SELECT id, token, user_id, browser, browser_version, os, os_version, ip, expires_at, created_at
		FROM sessions
	`

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	query := selectSession + `WHERE token = $1 AND expires_at > $2`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, token, r.now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return n > 0, err
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := selectSession + `WHERE user_id = $1 AND expires_at > $2 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID, r.now())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		s                                  models.Session
		browser, browserVer, osName, osVer sql.NullString
	)
	err := row.Scan(&s.ID, &s.Token, &s.UserID, &browser, &browserVer, &osName, &osVer, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Device = models.Device{
		Browser:        browser.String,
		BrowserVersion: browserVer.String,
		OS:             osName.String,
		OSVersion:      osVer.String,
	}
	return &s, nil
}

// nullable stores empty device fields as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
