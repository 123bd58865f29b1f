package admission

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/internal/tenant"
	"github.com/mokavoice/callbridge/pkg/realtime"
	"github.com/mokavoice/callbridge/pkg/session"
	"github.com/mokavoice/callbridge/pkg/tools"
)

// TenantSource resolves the dialed number to a tenant profile.
type TenantSource interface {
	Get(ctx context.Context, calleeNumber string) (tenant.Profile, error)
}

// Accepter authorizes the call with the provider.
type Accepter interface {
	Accept(ctx context.Context, callID, instructions, voice string, schemas []realtime.ToolSchema) error
}

// Starter creates and runs sessions for admitted calls.
type Starter interface {
	StartCall(ctx context.Context, req session.StartRequest) (*session.Session, error)
	Lookup(callID string) (*session.Session, bool)
}

// Admitter handles the inbound-call webhook end to end.
type Admitter struct {
	secret       string
	tenants      TenantSource
	accepter     Accepter
	starter      Starter
	defaultVoice string

	now func() time.Time
}

// New creates an admitter.
func New(secret string, tenants TenantSource, accepter Accepter, starter Starter, defaultVoice string) *Admitter {
	return &Admitter{
		secret:       secret,
		tenants:      tenants,
		accepter:     accepter,
		starter:      starter,
		defaultVoice: defaultVoice,
		now:          time.Now,
	}
}

// HandleWebhook processes one delivery and returns the HTTP status to
// answer with: 400 on signature failure, 200 for non-actionable or
// duplicate events, 500 on any other admission failure. The signature
// is checked before anything else touches the network.
func (a *Admitter) HandleWebhook(ctx context.Context, body []byte, sig SignatureHeaders) int {
	if err := VerifySignature(a.secret, sig, body, a.now()); err != nil {
		log.Warn("webhook rejected", "error", err)
		return http.StatusBadRequest
	}

	ev, err := ParseEvent(body)
	if err != nil {
		log.Error("webhook unparseable", "error", err)
		return http.StatusInternalServerError
	}

	if !ev.Actionable() {
		log.Debug("webhook ignored", "type", ev.Type)
		return http.StatusOK
	}

	if ev.Data.CallID == "" {
		log.Error("incoming call event missing call id")
		return http.StatusInternalServerError
	}

	// Webhook redelivery for a live call is a no-op, not a re-admission.
	if _, live := a.starter.Lookup(ev.Data.CallID); live {
		log.Info("duplicate webhook for live call", "call", ev.Data.CallID)
		return http.StatusOK
	}

	if err := a.admit(ctx, ev); err != nil {
		log.Error("admission failed", "call", ev.Data.CallID, "error", err)
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (a *Admitter) admit(ctx context.Context, ev WebhookEvent) error {
	callee, caller, ok := routingAddresses(ev.Data.SIPHeaders)
	if !ok {
		return errors.New("admission: no callee address in SIP headers")
	}

	profile, err := a.tenants.Get(ctx, callee)
	if err != nil {
		return err
	}

	voice := profile.Voice
	if voice == "" {
		voice = a.defaultVoice
	}
	prompt := SynthesizePrompt(profile)

	if err := a.accepter.Accept(ctx, ev.Data.CallID, prompt, voice, tools.Schemas()); err != nil {
		return err
	}

	_, err = a.starter.StartCall(ctx, session.StartRequest{
		CallID:        ev.Data.CallID,
		TenantID:      profile.TenantID,
		TenantName:    profile.Name,
		CallerAddress: caller,
		CalleeAddress: callee,
		SystemPrompt:  prompt,
		Voice:         voice,
	})
	if errors.Is(err, session.ErrDuplicateCall) {
		return nil
	}
	return err
}
