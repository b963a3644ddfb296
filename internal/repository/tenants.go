package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reserva/internal/apperr"
	"reserva/internal/database"
	"reserva/internal/models"
)

type TenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (slug, name, active, commission_bps)
		VALUES ($1, $2, TRUE, $3)
		RETURNING id, active, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		tenant.Slug,
		tenant.Name,
		tenant.CommissionBps,
	).Scan(&tenant.ID, &tenant.Active, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	query := `
		SELECT id, slug, name, active, commission_bps, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Active,
		&tenant.CommissionBps,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tenant, err
}

// UpdateCommission changes the tenant's rate. Platform operators only;
// the handler enforces the role before calling.
func (r *TenantRepository) UpdateCommission(ctx context.Context, id uuid.UUID, bps int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET commission_bps = $1, updated_at = NOW() WHERE id = $2`, bps, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Deactivate soft-disables a tenant. Rows are never deleted while
// bookings reference them.
func (r *TenantRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
