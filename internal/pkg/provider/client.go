package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subkeep/subkeep-api/internal/domain/monitor"
)

// Config holds the payment provider API configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client polls an external payment provider's status endpoint. It
// implements monitor.StatusSource; the provider's signature schemes and
// richer request shapes live outside this core.
type Client struct {
	httpClient *http.Client
	config     Config
}

// statusResponse is the provider's wire shape for one payment's status.
type statusResponse struct {
	PaymentID string     `json:"payment_id"`
	Status    string     `json:"status"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// GetStatus queries the provider for a payment's current status.
func (c *Client) GetStatus(ctx context.Context, paymentID string) (*monitor.PaymentStatus, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("validation error: payment_id must be non-empty")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("provider client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, fmt.Errorf("provider config error: base_url is empty")
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/api/v1/payments/" + paymentID + "/status"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider api call failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider api call failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	st := &monitor.PaymentStatus{
		Status:   monitor.Status(out.Status),
		Currency: out.Currency,
		PaidAt:   out.PaidAt,
	}
	if out.Amount != "" {
		amount, err := decimal.NewFromString(out.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse provider amount %q: %w", out.Amount, err)
		}
		st.Amount = amount
	}
	return st, nil
}
