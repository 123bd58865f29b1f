// Package admission is the inbound-call entry point: it authenticates
// the provider's webhook, resolves the tenant behind the dialed number
// and authorizes the call before a session is created.
package admission

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventIncomingCall is the only webhook event type that admits a call.
const EventIncomingCall = "realtime.call.incoming"

// signatureTolerance bounds webhook timestamp skew.
const signatureTolerance = 5 * time.Minute

var (
	ErrBadSignature = errors.New("admission: webhook signature invalid")
	ErrBadPayload   = errors.New("admission: webhook payload invalid")
)

// SIPHeader is one routing header attached to the inbound call.
type SIPHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookEvent is the parsed inbound webhook.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		CallID     string      `json:"call_id"`
		SIPHeaders []SIPHeader `json:"sip_headers"`
	} `json:"data"`
}

// Actionable reports whether the event admits a call.
func (e WebhookEvent) Actionable() bool {
	return e.Type == EventIncomingCall
}

// ParseEvent decodes the webhook body.
func ParseEvent(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("%w: missing event type", ErrBadPayload)
	}
	return ev, nil
}

// SignatureHeaders are the standard-webhooks headers of one delivery.
type SignatureHeaders struct {
	ID        string // webhook-id
	Timestamp string // webhook-timestamp, unix seconds
	Signature string // webhook-signature, space-separated "v1,<base64>"
}

// VerifySignature checks the delivery against the shared secret using
// the standard-webhooks scheme: HMAC-SHA256 over "id.timestamp.body"
// with the base64 key behind the whsec_ prefix. It must pass before
// any external call is made.
func VerifySignature(secret string, h SignatureHeaders, body []byte, now time.Time) error {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return fmt.Errorf("%w: missing signature headers", ErrBadSignature)
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrBadSignature)
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > signatureTolerance || skew < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("%w: bad secret encoding", ErrBadSignature)
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.%s", h.ID, h.Timestamp, body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(h.Signature) {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}
