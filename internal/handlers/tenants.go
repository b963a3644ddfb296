package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reserva/internal/models"
)

// Tenants handlers

// CreateTenant - POST /api/tenants
func (h *Handlers) CreateTenant(c *gin.Context) {
	var req models.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	tenant, err := h.services.Tenants.Create(c.Request.Context(), principal(c), &req)
	if err != nil {
		slog.Warn("Failed to create tenant", "error", err, "slug", req.Slug)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// UpdateTenantCommission - PATCH /api/tenants/:id/commission
func (h *Handlers) UpdateTenantCommission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	var req models.UpdateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.services.Tenants.UpdateCommission(c.Request.Context(), principal(c), id, req.CommissionBps); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeactivateTenant - POST /api/tenants/:id/deactivate
func (h *Handlers) DeactivateTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	if err := h.services.Tenants.Deactivate(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateSlot - POST /api/slots
func (h *Handlers) CreateSlot(c *gin.Context) {
	var req models.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	slot, err := h.services.Tenants.CreateSlot(c.Request.Context(), principal(c), &req)
	if err != nil {
		slog.Warn("Failed to create slot", "error", err, "tenant_id", req.TenantID, "package_id", req.PackageID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, slot)
}
