package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"waflow/internal/models"
)

const webhookSignatureHeader = "X-Webhook-Hmac"

// verifyWebhookSignature reads the body and checks its HMAC-SHA256
// against the shared secret. With no secret configured the check is
// skipped outside production.
func verifyWebhookSignature(r *http.Request, secret string) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secret == "" {
		if os.Getenv("WAFLOW_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	signature := r.Header.Get(webhookSignatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("missing signature header: %s", webhookSignatureHeader)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(signature)) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}

func parseWebhookPayload(body []byte) (*models.GatewayWebhookPayload, error) {
	var payload models.GatewayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}
	return &payload, nil
}
