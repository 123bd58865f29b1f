// Package knowledge is the HTTP client for the knowledge-base collaborator.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mokavoice/callbridge/internal/httpc"
)

// SearchTimeout bounds one search round-trip. Kept short to preserve
// conversational pacing: the caller is waiting on the line.
const SearchTimeout = 2 * time.Second

// Passage is one ranked text passage returned by the collaborator.
type Passage struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Client queries the knowledge-base service.
type Client struct {
	endpoint string
	hc       *http.Client
}

// NewClient creates a client for the given search endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		hc:       httpc.NewClient(SearchTimeout),
	}
}

// Search posts the query for a tenant and returns ranked passages.
func (c *Client) Search(ctx context.Context, query, tenantID string) ([]Passage, error) {
	body, err := json.Marshal(map[string]string{
		"query":    query,
		"tenantId": tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("knowledge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("knowledge: search returned status %d", resp.StatusCode)
	}

	var passages []Passage
	if err := json.NewDecoder(resp.Body).Decode(&passages); err != nil {
		return nil, fmt.Errorf("knowledge: decode response: %w", err)
	}
	return passages, nil
}
