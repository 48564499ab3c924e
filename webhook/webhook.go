package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/gamedeck/models"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Gamedeck-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RunSummary is the Data of run events: the report without records.
type RunSummary struct {
	Status     string              `json:"status"`
	OutputFile string              `json:"output_file,omitempty"`
	Total      int                 `json:"total"`
	Views      []models.ViewReport `json:"views"`
	Error      *models.ErrorDetail `json:"error,omitempty"`
}

// NewRunEvent builds the event announcing that report finished.
func NewRunEvent(report *models.RunReport) *Event {
	typ := EventRunCompleted
	if report.Status == models.RunStatusFailed {
		typ = EventRunFailed
	}
	return &Event{
		Type:      typ,
		RunID:     report.ID,
		Timestamp: time.Now().Unix(),
		Data: RunSummary{
			Status:     report.Status,
			OutputFile: report.OutputFile,
			Total:      report.Total,
			Views:      report.Views,
			Error:      report.Error,
		},
	}
}

// Notifier posts run events to a single endpoint.
type Notifier struct {
	URL    string
	Secret string

	// Async delivers in the background with retries instead of blocking
	// the caller for a single attempt.
	Async bool

	// Delays between attempts in async mode; nil uses 1s, 5s, 30s.
	Delays []time.Duration
}

// Notify announces the end of a run. Delivery failures are logged, never
// returned; a run's outcome does not depend on its webhook.
func (n *Notifier) Notify(ctx context.Context, report *models.RunReport) {
	if n == nil || n.URL == "" {
		return
	}
	event := NewRunEvent(report)
	if n.Async {
		n.DeliverAsync(event)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := Deliver(ctx, n.URL, n.Secret, event); err != nil {
		slog.Warn("webhook delivery failed", "url", n.URL, "event", event.Type, "run_id", event.RunID, "error", err)
		return
	}
	slog.Info("webhook delivered", "url", n.URL, "event", event.Type, "run_id", event.RunID)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Gamedeck-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background, retrying after each of the
// configured delays.
func (n *Notifier) DeliverAsync(event *Event) {
	delays := n.Delays
	if delays == nil {
		delays = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	}
	go func() {
		attempts := append([]time.Duration{0}, delays...)
		for attempt, delay := range attempts {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, n.URL, n.Secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.URL,
					"event", event.Type,
					"run_id", event.RunID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.URL,
				"event", event.Type,
				"run_id", event.RunID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.URL,
			"event", event.Type,
			"run_id", event.RunID,
		)
	}()
}
