// Package webhook implements the reminder.Dispatcher contract: it POSTs a
// batch of due reminder events to an account's configured webhook URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/nettuhq/scheduler/domain"
)

// RequestPayload is the wire body POSTed to an account's webhook.
type RequestPayload struct {
	Events []domain.CalendarEvent `json:"events"`
}

// Dispatcher POSTs reminder batches over HTTP. Delivery is bounded by the
// context passed to Dispatch, not by Client's own Timeout, so callers
// control how long a single account's delivery may take.
type Dispatcher struct {
	Client *http.Client
}

// NewDispatcher builds a Dispatcher with no client-level timeout; Dispatch
// relies entirely on the deadline carried by ctx.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{Client: &http.Client{}}
}

// Dispatch POSTs events to webhook.URL with the account's webhook key
// attached as the nettu-scheduler-webhook-key header.
func (d *Dispatcher) Dispatch(ctx context.Context, webhook domain.WebhookSettings, events []domain.CalendarEvent) error {
	body, err := json.Marshal(RequestPayload{Events: events})
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook payload for %s", webhook.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", webhook.URL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("nettu-scheduler-webhook-key", webhook.Key)

	resp, err := d.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", webhook.URL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", webhook.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("webhook post to %s failed, status code: %d, body: %s", webhook.URL, resp.StatusCode, b)
	}
	return nil
}
