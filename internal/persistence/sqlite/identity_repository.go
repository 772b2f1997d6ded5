package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// IdentityRepository stores apartment logins.
type IdentityRepository struct {
	pool *ConnectionPool
}

// NewIdentityRepository creates an IdentityRepository on pool.
func NewIdentityRepository(pool *ConnectionPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// FindIdentities returns every identity registered under apartment. The
// primary key allows at most one, but callers check the count themselves.
func (r *IdentityRepository) FindIdentities(ctx context.Context, apartment string) ([]persistence.IdentityRow, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT apartment, pin_hash, created_at FROM identities WHERE apartment = ?`, apartment,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var identities []persistence.IdentityRow
	for rows.Next() {
		var (
			row       persistence.IdentityRow
			createdAt string
		)
		if err := rows.Scan(&row.Apartment, &row.PINHash, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if row.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		identities = append(identities, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return identities, nil
}

// CreateIdentity registers an apartment login.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, row persistence.IdentityRow) error {
	if strings.TrimSpace(row.Apartment) == "" || row.PINHash == "" {
		return persistence.ErrConstraintViolation
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO identities (apartment, pin_hash, created_at) VALUES (?, ?, ?)`,
		row.Apartment, row.PINHash, formatTime(row.CreatedAt),
	)
	return mapError(err)
}
