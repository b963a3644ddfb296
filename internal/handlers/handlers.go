package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/apperr"
	"reserva/internal/auth"
	"reserva/internal/models"
	"reserva/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// principal pulls the authenticated identity set by the auth middleware.
func principal(c *gin.Context) auth.Principal {
	if v, exists := c.Get("principal"); exists {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

// respondError maps domain errors to HTTP statuses. Scope mismatches are
// reported as not-found so resource existence never leaks across tenants.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrScopeDenied):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
	case errors.Is(err, apperr.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "slot is fully booked"})
	case errors.Is(err, apperr.ErrRefundExceedsCaptured):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "refund total exceeds captured amount"})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

// HealthCheck - GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
