package external

import (
	"strconv"

	"reserva/internal/models"
)

// WebhookVerifier authenticates inbound processor notifications using the
// shared token scheme.
type WebhookVerifier struct {
	merchantSlug string
	secret       string
}

func NewWebhookVerifier(merchantSlug, secret string) *WebhookVerifier {
	return &WebhookVerifier{merchantSlug: merchantSlug, secret: secret}
}

func (v *WebhookVerifier) Verify(payload *models.WebhookPayload) bool {
	return VerifyToken(v.merchantSlug, v.secret, NotificationParams(payload), payload.Token)
}

// NotificationParams builds the signed parameter set of a processor
// notification. Kept exported so the sending side of a test harness signs
// exactly what the verifier checks.
func NotificationParams(payload *models.WebhookPayload) map[string]string {
	return map[string]string{
		"EventId":      payload.EventID,
		"Type":         payload.Type,
		"BookingId":    payload.BookingID,
		"ProcessorRef": payload.ProcessorRef,
		"SubmissionId": payload.SubmissionID,
		"Amount":       strconv.FormatInt(payload.Amount, 10),
		"Timestamp":    payload.Timestamp,
	}
}
