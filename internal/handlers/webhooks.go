package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/models"
	"reserva/internal/service"
)

// Webhooks handlers

// ProcessorWebhook - POST /api/webhooks/events
// Unauthenticated endpoint; every payload carries its own signature
// token. Replies 5xx only on storage failure so the processor redelivers.
func (h *Handlers) ProcessorWebhook(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	outcome, err := h.services.Ingestion.Ingest(c.Request.Context(), &payload)
	if err != nil {
		slog.Error("Failed to ingest processor event",
			"error", err,
			"event_id", payload.EventID,
			"event_type", payload.Type)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	ack := models.WebhookAck{Outcome: string(outcome), EventID: payload.EventID}
	switch outcome {
	case service.OutcomeRejected:
		c.JSON(http.StatusUnauthorized, ack)
	case service.OutcomeQueued:
		c.JSON(http.StatusAccepted, ack)
	default:
		c.JSON(http.StatusOK, ack)
	}
}
