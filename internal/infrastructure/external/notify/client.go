// Package notify implements the notification gateway client.
// The gateway fans messages out to email, SMS, and push providers; this
// package handles authentication, retries, and circuit breaking around it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/risk-engine/internal/domain/notification"
	"github.com/edupulse/risk-engine/pkg/circuitbreaker"
	"github.com/edupulse/risk-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the gateway client.
type ClientConfig struct {
	// BaseURL is the gateway base URL.
	BaseURL string

	// APIKey authenticates the engine with the gateway.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Retrier controls retry behavior. Defaults to NotifyGatewayRetrier.
	Retrier *retry.Retrier

	// Breaker protects the engine when the gateway degrades.
	// Defaults to NotifyGatewayBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the notification gateway client. It implements
// notification.Dispatcher: every Dispatch returns a delivery record, failed
// attempts included, so callers can log the outcome without branching.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new gateway client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retrier == nil {
		config.Retrier = retry.NotifyGatewayRetrier()
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.NotifyGatewayBreaker(func(name string, from, to circuitbreaker.State) {
			config.Logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		})
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: config.Retrier,
		breaker: config.Breaker,
		logger:  config.Logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// sendRequest is the wire payload for one notification.
type sendRequest struct {
	Recipient string         `json:"recipient"`
	Channel   string         `json:"channel"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// sendResponse is the gateway's acknowledgement.
type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Dispatch sends a message through the gateway.
// The returned record always carries a status; dispatch errors land in the
// record rather than an error return, keeping delivery fire-and-forget.
func (c *Client) Dispatch(ctx context.Context, alertID string, msg notification.Message) notification.DeliveryRecord {
	rec := notification.DeliveryRecord{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		Recipient: msg.Recipient,
		Channel:   msg.Channel,
		SentAt:    c.now(),
	}

	resp, err := c.send(ctx, msg)
	if err != nil {
		rec.Status = notification.DeliveryFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Status = notification.DeliverySent
	if resp.Status == string(notification.DeliveryDelivered) {
		rec.Status = notification.DeliveryDelivered
	}
	return rec
}

// send performs the HTTP call with circuit breaking and retries.
func (c *Client) send(ctx context.Context, msg notification.Message) (*sendResponse, error) {
	var result *sendResponse

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			resp, err := c.doSend(ctx, msg)
			if err != nil {
				return err
			}
			result = resp
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// doSend performs a single HTTP request to the gateway.
func (c *Client) doSend(ctx context.Context, msg notification.Message) (*sendResponse, error) {
	payload := sendRequest{
		Recipient: msg.Recipient.String(),
		Channel:   msg.Channel.String(),
		Subject:   msg.Subject,
		Body:      msg.Body,
		Metadata:  msg.Metadata,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal body: %w", err))
	}

	fullURL := c.config.BaseURL + "/api/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	// 429 and 5xx are transient; other 4xx are caller errors and final.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retry.Retryable(fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 400 {
		return nil, retry.Permanent(fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result sendResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}
	if result.Error != "" {
		return nil, retry.Permanent(errors.New(result.Error))
	}

	return &result, nil
}

// IsHealthy checks if the gateway is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// LogDispatcher implements notification.Dispatcher by writing messages to the
// log. Used when no gateway is configured, typically in development.
type LogDispatcher struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger, now: time.Now}
}

// Dispatch logs the message and records it as sent.
func (d *LogDispatcher) Dispatch(_ context.Context, alertID string, msg notification.Message) notification.DeliveryRecord {
	d.logger.Info("notification (log dispatch)",
		"alert_id", alertID,
		"recipient", msg.Recipient,
		"channel", msg.Channel,
		"subject", msg.Subject,
	)

	return notification.DeliveryRecord{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		Recipient: msg.Recipient,
		Channel:   msg.Channel,
		Status:    notification.DeliverySent,
		SentAt:    d.now(),
	}
}
