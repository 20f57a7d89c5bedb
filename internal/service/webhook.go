package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/config"
	"github.com/spec-kit/marketplace-service/internal/events"
)

// WebhookNotifier POSTs events to an outbound URL behind a circuit breaker so
// an unhealthy receiver is skipped instead of slowing every notification.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewWebhookNotifier returns nil when no URL is configured.
func NewWebhookNotifier(cfg config.NotificationConfig, logger *zap.Logger) *WebhookNotifier {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	logger = orNop(logger)
	timeout := time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Send delivers one event. It fails fast with gobreaker.ErrOpenState while
// the breaker is open.
func (w *WebhookNotifier) Send(ctx context.Context, event events.Event) error {
	if w == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = w.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", string(event.Type))
		resp, err := w.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook responded %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// State reports the breaker state for diagnostics. A disabled notifier
// reports closed.
func (w *WebhookNotifier) State() gobreaker.State {
	if w == nil {
		return gobreaker.StateClosed
	}
	return w.breaker.State()
}
