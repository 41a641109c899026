package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gradskill/backend/internal/config"
)

// Sender delivers transactional SMS messages
type Sender interface {
	SendOTP(ctx context.Context, mobileNumber, code string) error
}

// Client talks to the SMS provider's REST API
type Client struct {
	baseURL    string
	apiKey     string
	senderID   string
	httpClient *http.Client
}

// NewClient creates a new SMS client
func NewClient(cfg config.SMSConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendOTP delivers a one-time code to a mobile number
func (c *Client) SendOTP(ctx context.Context, mobileNumber, code string) error {
	payload := map[string]interface{}{
		"sender_id": c.senderID,
		"to":        mobileNumber,
		"message":   fmt.Sprintf("Your GradSkill verification code is %s. It expires in 15 minutes.", code),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("error creating SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SMS provider error: status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// LogSender writes codes to the log instead of sending them. Used in
// development and tests where no provider is configured.
type LogSender struct{}

// SendOTP logs the code
func (LogSender) SendOTP(_ context.Context, mobileNumber, code string) error {
	log.Printf("sms: OTP for %s is %s", mobileNumber, code)
	return nil
}
