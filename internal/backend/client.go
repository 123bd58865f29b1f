// Package backend is the HTTP client for the record-keeping backend:
// finalized call transcripts and reservation writes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mokavoice/callbridge/internal/httpc"
	"github.com/mokavoice/callbridge/internal/retry"
	"github.com/mokavoice/callbridge/pkg/transcript"
)

// CallRecord is the transcript delivery payload for one finished call.
type CallRecord struct {
	TenantID       string                 `json:"tenantId"`
	CallerAddress  string                 `json:"callerAddress"`
	CalleeAddress  string                 `json:"calleeAddress"`
	CallID         string                 `json:"callId"`
	Utterances     []transcript.Utterance `json:"utterances"`
	HasReservation bool                   `json:"hasReservation"`
}

// Reservation is the reservation-writer payload.
type Reservation struct {
	Type            string `json:"reservation_type"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	CustomerName    string `json:"customer_name"`
	CustomerSurname string `json:"customer_surname"`
	CustomerEmail   string `json:"customer_email"`
	Notes           string `json:"notes,omitempty"`
	TenantID        string `json:"tenantId"`
	CallID          string `json:"callId"`
}

// Client talks to the record-keeping backend.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: httpc.Client}
}

// DeliverTranscript posts the finalized call record. Transient failures
// are retried a bounded number of times; 4xx responses are permanent.
func (c *Client) DeliverTranscript(ctx context.Context, rec CallRecord) error {
	if rec.Utterances == nil {
		rec.Utterances = []transcript.Utterance{}
	}
	return retry.Do(ctx, retry.DefaultMaxAttempts, retry.DefaultInitialInterval, func() error {
		return c.post(ctx, c.baseURL+"/call", rec)
	})
}

// CreateReservation posts one reservation. Not retried: the tool result
// must come back quickly and a spoken retry is the recovery path.
func (c *Client) CreateReservation(ctx context.Context, r Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.post(ctx, c.baseURL+"/reservation", r)
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("backend: encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("backend: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(fmt.Errorf("backend: post %s returned status %d", url, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend: post %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
