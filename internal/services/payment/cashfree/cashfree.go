package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gradskill/backend/internal/config"
)

const apiVersion = "2023-08-01"

// Client talks to the Cashfree payment gateway REST API
type Client struct {
	appID         string
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a new gateway client
func NewClient(cfg config.CashfreeConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://sandbox.cashfree.com/pg"
	}

	return &Client{
		appID:         cfg.AppID,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CustomerDetails identifies the paying customer on an order
type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

// OrderMeta carries the return and notify URLs for an order
type OrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

// CreateOrderRequest is the payload for creating a gateway-side order
type CreateOrderRequest struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     float64         `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	OrderNote       string          `json:"order_note,omitempty"`
	OrderExpiryTime string          `json:"order_expiry_time,omitempty"`
	OrderMeta       OrderMeta       `json:"order_meta"`
}

// OrderResponse is the gateway's view of an order
type OrderResponse struct {
	CFOrderID        string  `json:"cf_order_id"`
	OrderID          string  `json:"order_id"`
	OrderAmount      float64 `json:"order_amount"`
	OrderCurrency    string  `json:"order_currency"`
	OrderStatus      string  `json:"order_status"` // ACTIVE, PAID, EXPIRED, TERMINATED
	PaymentSessionID string  `json:"payment_session_id"`

	// Raw holds the undecoded response body for audit storage
	Raw map[string]interface{} `json:"-"`
}

// PaymentInfo is one payment attempt against an order
type PaymentInfo struct {
	CFPaymentID   json.Number `json:"cf_payment_id"`
	OrderID       string      `json:"order_id"`
	PaymentStatus string      `json:"payment_status"` // SUCCESS, FAILED, PENDING, USER_DROPPED
	PaymentAmount float64     `json:"payment_amount"`
	PaymentMethod interface{} `json:"payment_method"`

	Raw map[string]interface{} `json:"-"`
}

// CreateOrder creates an order on the gateway side
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("error parsing create order response: %w", err)
	}
	_ = json.Unmarshal(body, &order.Raw)

	return &order, nil
}

// FetchOrder fetches the authoritative state of an order
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("error parsing fetch order response: %w", err)
	}
	_ = json.Unmarshal(body, &order.Raw)

	return &order, nil
}

// FetchPayments fetches all payment attempts recorded against an order
func (c *Client) FetchPayments(ctx context.Context, orderID string) ([]PaymentInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+orderID+"/payments", nil)
	if err != nil {
		return nil, err
	}

	var payments []PaymentInfo
	if err := json.Unmarshal(body, &payments); err != nil {
		return nil, fmt.Errorf("error parsing fetch payments response: %w", err)
	}

	var raws []map[string]interface{}
	if err := json.Unmarshal(body, &raws); err == nil && len(raws) == len(payments) {
		for i := range payments {
			payments[i].Raw = raws[i]
		}
	}

	return payments, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-version", apiVersion)
	httpReq.Header.Set("x-client-id", c.appID)
	httpReq.Header.Set("x-client-secret", c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("cashfree error (%s): %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("cashfree error: status %d", resp.StatusCode)
	}

	return respBody, nil
}
