package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reserva/internal/models"
)

// Refunds handlers

// CreateRefund - POST /api/refunds
func (h *Handlers) CreateRefund(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	refund, err := h.services.Refunds.Request(c.Request.Context(), principal(c), &req)
	if err != nil {
		slog.Warn("Failed to request refund", "error", err, "booking_id", req.BookingID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, refund)
}

// ListBookingRefunds - GET /api/bookings/:id/refunds
func (h *Handlers) ListBookingRefunds(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	refunds, err := h.services.Refunds.ListForBooking(c.Request.Context(), principal(c), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, refunds)
}
