package handling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsdesk/relay/internal/apierr"
)

// Sink receives error reports. Implementations must be safe for concurrent
// use; dispatch failures are logged by the handler and never propagated.
type Sink interface {
	Report(ctx context.Context, e *apierr.Error, ectx Context) error
}

// WebhookSink posts safe-serialized error reports to an HTTP endpoint.
// Used for both the monitoring endpoint and the critical-notification
// webhook.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns nil when url is empty, which disables the dispatch.
func NewWebhookSink(url string) *WebhookSink {
	if url == "" {
		return nil
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookReport struct {
	Error     json.RawMessage `json:"error"`
	Operation string          `json:"operation,omitempty"`
	Component string          `json:"component,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Report posts the error's safe serialization only: Details never leave the
// process through a sink.
func (s *WebhookSink) Report(ctx context.Context, e *apierr.Error, ectx Context) error {
	safe, err := e.SafeJSON()
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}

	payload, err := json.Marshal(webhookReport{
		Error:     safe,
		Operation: ectx.Operation,
		Component: ectx.Component,
		UserID:    ectx.UserID,
		SessionID: ectx.SessionID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report rejected: http %d", resp.StatusCode)
	}
	return nil
}
