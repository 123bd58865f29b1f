// Package tenant resolves callee numbers to tenant configuration:
// greeting, knowledge-base corpus reference, and voice preference.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mokavoice/callbridge/internal/httpc"
	"github.com/mokavoice/callbridge/internal/retry"
)

// Profile is one tenant's call configuration.
type Profile struct {
	TenantID     string `json:"tenantId"`
	Name         string `json:"name"`
	Greeting     string `json:"greeting"`
	CorpusRef    string `json:"corpusRef"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

// Client fetches tenant profiles from the configuration service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a client rooted at the configuration service URL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: httpc.Client}
}

// Fetch resolves the tenant profile for a callee number.
func (c *Client) Fetch(ctx context.Context, calleeNumber string) (Profile, error) {
	endpoint := fmt.Sprintf("%s/tenants/%s", c.baseURL, url.PathEscape(calleeNumber))

	var p Profile
	err := retry.Do(ctx, retry.DefaultMaxAttempts, retry.DefaultInitialInterval, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("tenant: build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("tenant: fetch %s: %w", calleeNumber, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return retry.Permanent(fmt.Errorf("tenant: no tenant for %s", calleeNumber))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("tenant: fetch %s returned status %d", calleeNumber, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return retry.Permanent(fmt.Errorf("tenant: decode profile: %w", err))
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
