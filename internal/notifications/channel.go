package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ziadkadry99/cellwatch/internal/report"
)

// Channel is one way of delivering a report.
type Channel interface {
	Name() string
	// Ready reports whether the channel is configured with real credentials.
	Ready() bool
	Send(ctx context.Context, r report.Report) error
}

// StatusError is returned by Webhook.Send when the relay answers with a
// status code outside the accepted set.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.Code)
}

// WebhookConfig describes an HTTP relay.
type WebhookConfig struct {
	Name     string
	Endpoint string

	// Credential is sent as a bearer token when set.
	Credential        string
	RequireCredential bool
	Fields            map[string]string
	Accept            []int
}

// Webhook posts reports as JSON to an email relay.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhook creates a webhook channel. A nil client gets a 10 second timeout.
func NewWebhook(cfg WebhookConfig, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if len(cfg.Accept) == 0 {
		cfg.Accept = []int{http.StatusOK}
	}
	return &Webhook{cfg: cfg, client: client}
}

func (w *Webhook) Name() string { return w.cfg.Name }

func (w *Webhook) Ready() bool {
	if w.cfg.Endpoint == "" || IsPlaceholder(w.cfg.Endpoint) {
		return false
	}
	if w.cfg.Credential == "" && w.cfg.RequireCredential {
		return false
	}
	if w.cfg.Credential != "" && IsPlaceholder(w.cfg.Credential) {
		return false
	}
	for _, v := range w.cfg.Fields {
		if v == "" || IsPlaceholder(v) {
			return false
		}
	}
	return true
}

// Send POSTs the report. Static fields are merged under the report keys.
func (w *Webhook) Send(ctx context.Context, r report.Report) error {
	payload := make(map[string]any, len(w.cfg.Fields)+6)
	for k, v := range w.cfg.Fields {
		payload[k] = v
	}
	payload["to"] = r.Recipient
	payload["subject"] = r.Subject
	payload["body"] = r.Body
	payload["event_type"] = r.EventType
	payload["timestamp"] = r.CreatedAt.UTC().Format(time.RFC3339)
	if html, err := report.HTML(r); err == nil {
		payload["html"] = html
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Credential)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if !slices.Contains(w.cfg.Accept, resp.StatusCode) {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// placeholders are the sample values shipped in the default configuration.
var placeholders = map[string]bool{
	"service_your_id":   true,
	"template_your_id":  true,
	"your_user_id":      true,
	"your_form_id":      true,
	"your_api_key":      true,
	"your-smtp-service": true,
}

// IsPlaceholder reports whether v still holds one of the sample values shipped
// in the default configuration. URLs are checked segment by segment.
func IsPlaceholder(v string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return strings.ContainsRune("/.:?&=@", r)
	})
	for _, t := range tokens {
		if placeholders[t] {
			return true
		}
	}
	return false
}
