// Package telephony is the call-control client for the Twilio gateway.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mokavoice/callbridge/internal/httpc"
)

// DefaultBaseURL is the Twilio REST API root.
const DefaultBaseURL = "https://api.twilio.com"

// ErrNoCallRef is returned when a hangup is requested without a call SID.
var ErrNoCallRef = errors.New("telephony: missing call reference")

// Twilio executes call-control commands against the Twilio REST API.
type Twilio struct {
	accountSID string
	authToken  string
	baseURL    string
	hc         *http.Client
}

// NewTwilio creates a call-control client. baseURL may be empty to use
// the production API.
func NewTwilio(accountSID, authToken, baseURL string) *Twilio {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		hc:         httpc.Client,
	}
}

// Hangup marks the call completed on the telephony side.
func (t *Twilio) Hangup(ctx context.Context, callSID string) error {
	if callSID == "" {
		return ErrNoCallRef
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json",
		t.baseURL, url.PathEscape(t.accountSID), url.PathEscape(callSID))

	form := url.Values{}
	form.Set("Status", "completed")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telephony: build hangup request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: hangup %s: %w", callSID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telephony: hangup %s returned status %d", callSID, resp.StatusCode)
	}
	return nil
}
