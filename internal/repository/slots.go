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

type SlotRepository struct {
	db *database.DB
}

func NewSlotRepository(db *database.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) Create(ctx context.Context, slot *models.Slot) error {
	if slot.Capacity < 1 {
		slot.Capacity = 1
	}

	query := `
		INSERT INTO slots (tenant_id, package_id, starts_at, ends_at, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		slot.TenantID,
		slot.PackageID,
		slot.StartsAt,
		slot.EndsAt,
		slot.Capacity,
	).Scan(&slot.ID, &slot.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error) {
	slot := &models.Slot{}
	query := `
		SELECT id, tenant_id, package_id, starts_at, ends_at, capacity, created_at
		FROM slots
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID,
		&slot.TenantID,
		&slot.PackageID,
		&slot.StartsAt,
		&slot.EndsAt,
		&slot.Capacity,
		&slot.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return slot, err
}
