package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/auth"
	"reserva/internal/logger"
	"reserva/internal/models"
)

type TenantService struct {
	tenants TenantStore
	slots   SlotStore
	cache   TenantCache
}

func NewTenantService(tenants TenantStore, slots SlotStore, cache TenantCache) *TenantService {
	return &TenantService{tenants: tenants, slots: slots, cache: cache}
}

// Create onboards a tenant. Platform operators only; the route guard
// enforces the role, the service re-checks it.
func (s *TenantService) Create(ctx context.Context, principal auth.Principal, req *models.CreateTenantRequest) (*models.Tenant, error) {
	if principal.Role != auth.RolePlatform {
		return nil, apperr.ErrNotFound
	}

	tenant := &models.Tenant{
		Slug:          req.Slug,
		Name:          req.Name,
		CommissionBps: req.CommissionBps,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// UpdateCommission changes a tenant's rate and drops the cached row.
func (s *TenantService) UpdateCommission(ctx context.Context, principal auth.Principal, id uuid.UUID, bps int64) error {
	if principal.Role != auth.RolePlatform {
		return apperr.ErrNotFound
	}
	if bps < 0 || bps > 10000 {
		return apperr.ErrValidation
	}

	if err := s.tenants.UpdateCommission(ctx, id, bps); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Deactivate soft-disables a tenant; existing bookings are untouched.
func (s *TenantService) Deactivate(ctx context.Context, principal auth.Principal, id uuid.UUID) error {
	if principal.Role != auth.RolePlatform {
		return apperr.ErrNotFound
	}

	if err := s.tenants.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// CreateSlot publishes a reservable slot for a tenant.
func (s *TenantService) CreateSlot(ctx context.Context, principal auth.Principal, req *models.CreateSlotRequest) (*models.Slot, error) {
	if err := auth.CheckScope(principal, req.TenantID); err != nil {
		return nil, apperr.ErrNotFound
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid starts_at", apperr.ErrValidation)
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ends_at", apperr.ErrValidation)
	}
	if !endsAt.After(startsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", apperr.ErrValidation)
	}

	tenant, err := s.tenants.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil || !tenant.Active {
		return nil, apperr.ErrNotFound
	}

	slot := &models.Slot{
		TenantID:  req.TenantID,
		PackageID: req.PackageID,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Capacity:  req.Capacity,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *TenantService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate tenant cache", "error", err, "tenant_id", id)
	}
}
