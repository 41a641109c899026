package cashfree

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
)

// WebhookEvent is the decoded body of a gateway webhook notification
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID     string  `json:"order_id"`
			OrderAmount float64 `json:"order_amount"`
		} `json:"order"`
		Payment struct {
			CFPaymentID   json.Number `json:"cf_payment_id"`
			PaymentStatus string      `json:"payment_status"`
			PaymentAmount float64     `json:"payment_amount"`
			PaymentMethod interface{} `json:"payment_method"`
		} `json:"payment"`
	} `json:"data"`
}

// SignWebhook computes the signature the gateway attaches to notifications:
// base64(HMAC-SHA256(timestamp + rawBody)) keyed with the webhook secret.
func SignWebhook(secret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyWebhookSignature checks a webhook signature in constant time. It must
// be called on the raw request body before any field of it is trusted.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string) bool {
	expected := SignWebhook(secret, timestamp, body)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// VerifyWebhookSignature checks a signature against this client's secret
func (c *Client) VerifyWebhookSignature(timestamp string, body []byte, signature string) bool {
	return VerifyWebhookSignature(c.webhookSecret, timestamp, body, signature)
}
