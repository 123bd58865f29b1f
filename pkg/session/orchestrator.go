package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/pkg/tools"
)

// Orchestrator owns the session registry and wires each admitted call
// to its collaborators.
type Orchestrator struct {
	dial      Dialer
	knowledge tools.Searcher
	writer    tools.ReservationWriter
	mail      tools.Sender
	recorder  Recorder
	control   CallControl

	toolGrace time.Duration
	registry  *Registry

	baseCtx context.Context
	cancel  context.CancelFunc
}

// OrchestratorConfig bundles the orchestrator's collaborators.
type OrchestratorConfig struct {
	Dial      Dialer
	Knowledge tools.Searcher
	Writer    tools.ReservationWriter
	Mail      tools.Sender
	Recorder  Recorder
	Control   CallControl
	ToolGrace time.Duration
}

// NewOrchestrator creates the orchestrator. Sessions run under its own
// base context so an HTTP request ending never kills a live call.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		dial:      cfg.Dial,
		knowledge: cfg.Knowledge,
		writer:    cfg.Writer,
		mail:      cfg.Mail,
		recorder:  cfg.Recorder,
		control:   cfg.Control,
		toolGrace: cfg.ToolGrace,
		registry:  NewRegistry(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// StartRequest is one admitted call ready to be bridged.
type StartRequest struct {
	CallID           string
	TelephonyCallRef string
	TenantID         string
	TenantName       string
	CallerAddress    string
	CalleeAddress    string
	SystemPrompt     string
	Voice            string
}

// StartCall registers, connects and runs a session for the admitted
// call. Duplicate live call identifiers are rejected before any
// provider traffic.
func (o *Orchestrator) StartCall(ctx context.Context, req StartRequest) (*Session, error) {
	dispatcher := tools.NewDispatcher(o.knowledge, o.writer, o.mail, req.TenantID, req.TenantName, req.CallID)

	s := New(Config{
		CallID:           req.CallID,
		TelephonyCallRef: req.TelephonyCallRef,
		TenantID:         req.TenantID,
		CallerAddress:    req.CallerAddress,
		CalleeAddress:    req.CalleeAddress,
		SystemPrompt:     req.SystemPrompt,
		Voice:            req.Voice,
		ToolGrace:        o.toolGrace,
	}, Deps{
		Dial:       o.dial,
		Dispatcher: dispatcher,
		Recorder:   o.recorder,
		Control:    o.control,
		OnDone:     o.registry.Remove,
	})

	if err := o.registry.Add(req.CallID, s); err != nil {
		return nil, err
	}

	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	go s.Run(o.baseCtx)
	log.Info("call started", "call", req.CallID, "tenant", req.TenantID, "caller", req.CallerAddress)
	return s, nil
}

// Lookup returns the live session for callID.
func (o *Orchestrator) Lookup(callID string) (*Session, bool) {
	return o.registry.Get(callID)
}

// ActiveCalls reports the number of live sessions.
func (o *Orchestrator) ActiveCalls() int {
	return o.registry.Len()
}

// Shutdown terminates every live session and waits for them to finish
// delivering, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	sessions := o.registry.All()
	for _, s := range sessions {
		s.Terminate(ReasonExplicitEnd)
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			log.Warn("shutdown deadline reached with sessions still closing", "remaining", o.registry.Len())
			o.cancel()
			return
		}
	}
	o.cancel()
}
