package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reserva/internal/models"
)

// Bookings handlers

// CreateBooking - POST /api/bookings
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	booking, err := h.services.Bookings.Reserve(c.Request.Context(), principal(c), &req)
	if err != nil {
		slog.Warn("Failed to create booking", "error", err, "slot_id", req.SlotID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	booking, err := h.services.Bookings.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking - POST /api/bookings/:id/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	booking, err := h.services.Bookings.Cancel(c.Request.Context(), principal(c), id)
	if err != nil {
		slog.Warn("Failed to cancel booking", "error", err, "booking_id", id)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}
