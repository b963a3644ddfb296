package external

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ProcessorClient talks to the payment processor. Both calls are
// fire-and-forget from the core's perspective: the definitive outcome
// arrives later as a signed processor event on the webhook.
type ProcessorClient struct {
	baseURL      string
	merchantSlug string
	secret       string
	httpClient   *http.Client
}

type ProcessorConfig struct {
	BaseURL      string
	MerchantSlug string
	Secret       string
	Timeout      time.Duration
}

type initiateRequest struct {
	MerchantSlug string `json:"merchantSlug"`
	Token        string `json:"token"`
	Amount       int64  `json:"amount"`
	BookingID    string `json:"bookingId"`
	Currency     string `json:"currency"`
}

type initiateResponse struct {
	Success      bool   `json:"success"`
	ProcessorRef string `json:"processorRef"`
	Status       string `json:"status"`
}

type submitRefundRequest struct {
	MerchantSlug string `json:"merchantSlug"`
	Token        string `json:"token"`
	ProcessorRef string `json:"processorRef"`
	Amount       int64  `json:"amount"`
}

type submitRefundResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId"`
}

func NewProcessorClient(cfg ProcessorConfig) *ProcessorClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &ProcessorClient{
		baseURL:      cfg.BaseURL,
		merchantSlug: cfg.MerchantSlug,
		secret:       cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SignParams builds the request/notification token: SHA-256 over the
// parameter values sorted by key, with the merchant slug and shared
// secret mixed in. Both directions of the integration use this scheme.
func SignParams(merchantSlug, secret string, params map[string]string) string {
	all := make(map[string]string, len(params)+2)
	for k, v := range params {
		all[k] = v
	}
	all["MerchantSlug"] = merchantSlug
	all["Secret"] = secret

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokenString string
	for _, key := range keys {
		tokenString += all[key]
	}

	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

// VerifyToken checks a notification token in constant time.
func VerifyToken(merchantSlug, secret string, params map[string]string, token string) bool {
	expected := SignParams(merchantSlug, secret, params)
	return hmac.Equal([]byte(expected), []byte(token))
}

// InitiatePayment asks the processor to start collecting payment for a
// booking. The returned reference ties later capture events back to it.
func (pc *ProcessorClient) InitiatePayment(ctx context.Context, bookingID uuid.UUID, amount int64) (string, error) {
	params := map[string]string{
		"Amount":    strconv.FormatInt(amount, 10),
		"BookingId": bookingID.String(),
	}

	req := initiateRequest{
		MerchantSlug: pc.merchantSlug,
		Token:        SignParams(pc.merchantSlug, pc.secret, params),
		Amount:       amount,
		BookingID:    bookingID.String(),
		Currency:     "EUR",
	}

	var resp initiateResponse
	if err := pc.post(ctx, "/api/v1/payments/initiate", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("payment initiation declined")
	}
	return resp.ProcessorRef, nil
}

// SubmitRefund asks the processor to return funds for a captured payment.
func (pc *ProcessorClient) SubmitRefund(ctx context.Context, processorRef string, amount int64) (string, error) {
	params := map[string]string{
		"Amount":       strconv.FormatInt(amount, 10),
		"ProcessorRef": processorRef,
	}

	req := submitRefundRequest{
		MerchantSlug: pc.merchantSlug,
		Token:        SignParams(pc.merchantSlug, pc.secret, params),
		ProcessorRef: processorRef,
		Amount:       amount,
	}

	var resp submitRefundResponse
	if err := pc.post(ctx, "/api/v1/refunds/submit", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("refund submission declined")
	}
	return resp.SubmissionID, nil
}

func (pc *ProcessorClient) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
