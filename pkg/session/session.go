// Package session drives the per-call lifecycle: it supervises the
// provider channel, relays audio, dispatches tool calls, assembles the
// transcript and tears the call down with exactly one transcript
// delivery and at most one telephony hangup.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mokavoice/callbridge/internal/backend"
	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/pkg/realtime"
	"github.com/mokavoice/callbridge/pkg/tools"
	"github.com/mokavoice/callbridge/pkg/transcript"
)

// DefaultToolGrace bounds how long Closing waits for in-flight tools.
const DefaultToolGrace = 3 * time.Second

// drainTimeout bounds how long teardown waits for the channel's final
// events after requesting close.
const drainTimeout = 2 * time.Second

// Channel is the provider connection as the session consumes it.
// Satisfied by *realtime.Adapter.
type Channel interface {
	Events() <-chan realtime.Event
	ConfigureSession(cfg realtime.SessionConfig) error
	CreateResponse(instructions string) error
	ContinueResponse() error
	SendToolOutput(callRefID, output string) error
	SendAudio(payload string) error
	Close() error
}

// Dialer opens the provider channel for a call.
type Dialer func(ctx context.Context, callID string) (Channel, error)

// Recorder receives the finalized transcript.
type Recorder interface {
	DeliverTranscript(ctx context.Context, rec backend.CallRecord) error
}

// CallControl ends the call on the telephony side.
type CallControl interface {
	Hangup(ctx context.Context, callRef string) error
}

// TerminateReason distinguishes who ended the call. A caller-initiated
// end suppresses the telephony hangup: the line is already down.
type TerminateReason int

const (
	ReasonCallerHangup TerminateReason = iota
	ReasonExplicitEnd
)

// Config carries the immutable per-call identity.
type Config struct {
	CallID           string
	TelephonyCallRef string
	TenantID         string
	CallerAddress    string
	CalleeAddress    string
	SystemPrompt     string
	Voice            string
	ToolGrace        time.Duration
}

// Deps are the session's collaborators.
type Deps struct {
	Dial       Dialer
	Dispatcher *tools.Dispatcher
	Recorder   Recorder
	Control    CallControl

	// OnDone is called exactly once after the session reaches a
	// terminal state. Used by the registry for removal.
	OnDone func(callID string)
}

// Session is one live call. All state below is owned by the Run loop;
// only State, SendCallerAudio, SetAudioSink, SetTelephonyRef,
// Terminate and Done are safe to call from other goroutines.
type Session struct {
	cfg  Config
	deps Deps

	state   atomic.Int32
	channel Channel

	asm            *transcript.Assembler
	hasReservation bool
	reservationRef string // callRefID of the in-flight reservation
	pendingTools   int
	delivered      bool

	refMu        sync.Mutex
	telephonyRef string

	terminate chan TerminateReason
	done      chan struct{}

	audioSink atomic.Value // func(payload string)

	startedAt time.Time
	now       func() time.Time
}

// New constructs a session in the Admitted state.
func New(cfg Config, deps Deps) *Session {
	if cfg.ToolGrace <= 0 {
		cfg.ToolGrace = DefaultToolGrace
	}
	s := &Session{
		cfg:          cfg,
		deps:         deps,
		asm:          transcript.NewAssembler(),
		terminate:    make(chan TerminateReason, 1),
		done:         make(chan struct{}),
		telephonyRef: cfg.TelephonyCallRef,
		now:          time.Now,
	}
	s.startedAt = s.now()
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	log.Debug("session state", "call", s.cfg.CallID, "state", st.String())
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StartedAt reports when the session was admitted.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Start dials the provider and sends the session configuration. On
// error the session is Failed: no transcript exists and no delivery or
// hangup is attempted.
func (s *Session) Start(ctx context.Context) error {
	s.setState(StateConnecting)

	ch, err := s.deps.Dial(ctx, s.cfg.CallID)
	if err != nil {
		s.fail()
		return fmt.Errorf("session %s: connect: %w", s.cfg.CallID, err)
	}
	s.channel = ch
	s.setState(StateAwaitingReady)

	err = ch.ConfigureSession(realtime.SessionConfig{
		Instructions: s.cfg.SystemPrompt,
		Voice:        s.cfg.Voice,
		Tools:        tools.Schemas(),
	})
	if err != nil {
		ch.Close()
		s.fail()
		return fmt.Errorf("session %s: configure: %w", s.cfg.CallID, err)
	}
	return nil
}

func (s *Session) fail() {
	s.setState(StateFailed)
	close(s.done)
	if s.deps.OnDone != nil {
		s.deps.OnDone(s.cfg.CallID)
	}
}

// Terminate requests teardown. Safe to call from any goroutine and any
// number of times; triggers after the first are dropped.
func (s *Session) Terminate(reason TerminateReason) {
	select {
	case s.terminate <- reason:
	default:
	}
}

// SendCallerAudio relays one caller audio payload to the provider.
// Called from the telephony media path; it never waits on the session
// loop. Sends after teardown are dropped by the channel.
func (s *Session) SendCallerAudio(payload string) {
	if s.State() != StateActive {
		return
	}
	if err := s.channel.SendAudio(payload); err != nil {
		log.Debug("caller audio dropped", "call", s.cfg.CallID, "error", err)
	}
}

// SetAudioSink installs the consumer for assistant audio payloads.
func (s *Session) SetAudioSink(sink func(payload string)) {
	s.audioSink.Store(sink)
}

// SetTelephonyRef binds the telephony-side call reference once it is
// known, e.g. from the media-stream start frame. The first non-empty
// reference wins; later binds are ignored.
func (s *Session) SetTelephonyRef(ref string) {
	if ref == "" {
		return
	}
	s.refMu.Lock()
	if s.telephonyRef == "" {
		s.telephonyRef = ref
	}
	s.refMu.Unlock()
}

func (s *Session) emitAudio(payload string) {
	if sink, ok := s.audioSink.Load().(func(string)); ok && sink != nil {
		sink(payload)
	}
}

// Run is the session's serialized event loop. It owns every state
// transition after Start and returns once the session is Closed.
func (s *Session) Run(ctx context.Context) {
	callerInitiated := false

loop:
	for {
		select {
		case ev, ok := <-s.channel.Events():
			if !ok {
				break loop
			}
			if closed := s.handleEvent(ev); closed {
				break loop
			}

		case res := <-s.deps.Dispatcher.Results():
			s.handleToolResult(res)

		case reason := <-s.terminate:
			callerInitiated = reason == ReasonCallerHangup
			break loop

		case <-ctx.Done():
			break loop
		}
	}

	s.close(callerInitiated)
}

// handleEvent processes one provider event. Returns true when the
// channel reported terminal closure.
func (s *Session) handleEvent(ev realtime.Event) bool {
	switch e := ev.(type) {
	case realtime.Ready:
		if s.State() == StateAwaitingReady {
			s.setState(StateActive)
			s.greet()
		}

	case realtime.AudioChunk:
		s.emitAudio(e.Payload)

	case realtime.UtteranceCompleted:
		switch e.Role {
		case transcript.RoleCaller:
			s.asm.AppendCallerTurn(e.Text)
		case transcript.RoleAssistant:
			s.asm.AppendAssistantTurn(e.Text)
		}

	case realtime.ToolCallRequested:
		s.handleToolCall(e)

	case realtime.ProviderError:
		log.Warn("provider error", "call", s.cfg.CallID, "code", e.Code, "message", e.Message)

	case realtime.Closed:
		log.Info("provider channel closed", "call", s.cfg.CallID, "code", e.Code, "reason", e.Reason)
		return true
	}
	return false
}

// greet asks the assistant to open the conversation. Safe to request
// even if the provider already greeted on its own.
func (s *Session) greet() {
	if err := s.channel.CreateResponse(greetingInstructions(s.now())); err != nil {
		log.Warn("greeting request failed", "call", s.cfg.CallID, "error", err)
	}
}

// greetingInstructions adapts the opening line to the hour of day.
func greetingInstructions(now time.Time) string {
	salutation := "Good evening"
	switch h := now.Hour(); {
	case h < 12:
		salutation = "Good morning"
	case h < 18:
		salutation = "Good afternoon"
	}
	return fmt.Sprintf("Greet the caller now. Open with %q, introduce yourself per your instructions, and ask how you can help.", salutation)
}

func (s *Session) handleToolCall(e realtime.ToolCallRequested) {
	if s.State() != StateActive {
		log.Debug("tool call ignored outside active state", "call", s.cfg.CallID, "ref", e.CallRefID)
		return
	}

	inv := tools.Invocation{CallRefID: e.CallRefID, Name: e.Name, RawArgs: e.ArgumentsRaw}
	if !s.deps.Dispatcher.Accept(inv) {
		return
	}

	// At most one reservation may be in flight. A second reservation
	// invocation racing the first resolves as already recorded instead
	// of reaching the collaborator twice.
	hasReservation := s.hasReservation
	if e.Name == tools.ReservationToolName {
		if s.reservationRef != "" {
			hasReservation = true
		} else if !s.hasReservation {
			s.reservationRef = inv.CallRefID
		}
	}

	s.pendingTools++
	s.deps.Dispatcher.Dispatch(context.Background(), inv, hasReservation)
}

// handleToolResult forwards the tool output and the response
// continuation the provider needs before it will speak again.
func (s *Session) handleToolResult(res tools.Result) {
	s.pendingTools--
	if res.CallRefID == s.reservationRef {
		// A failed attempt clears the in-flight mark so the caller can
		// retry; a successful one is recorded below.
		s.reservationRef = ""
	}
	if res.ReservationCreated {
		s.hasReservation = true
	}

	if err := s.channel.SendToolOutput(res.CallRefID, res.Output); err != nil {
		log.Warn("tool output send failed", "call", s.cfg.CallID, "ref", res.CallRefID, "error", err)
		return
	}
	if err := s.channel.CreateResponse(res.SpeakInstructions); err != nil {
		log.Warn("response continuation failed", "call", s.cfg.CallID, "error", err)
	}
}

// close tears the session down: awaits in-flight tools for a bounded
// grace period, drains the channel's final utterances, delivers the
// transcript exactly once and, unless the caller hung up, requests the
// telephony hangup.
func (s *Session) close(callerInitiated bool) {
	if s.State().terminal() {
		return
	}
	s.setState(StateClosing)

	s.awaitTools()
	s.deps.Dispatcher.Abandon()

	s.channel.Close()
	s.drainChannel()

	s.deliver()

	if !callerInitiated {
		s.hangup()
	}

	s.setState(StateClosed)
	close(s.done)
	if s.deps.OnDone != nil {
		s.deps.OnDone(s.cfg.CallID)
	}
}

// awaitTools gives in-flight dispatches a bounded grace period so a
// reservation that already hit the collaborator is reflected in the
// delivered record. Late results after the grace are discarded.
func (s *Session) awaitTools() {
	if s.pendingTools == 0 {
		return
	}

	grace := time.NewTimer(s.cfg.ToolGrace)
	defer grace.Stop()

	for s.pendingTools > 0 {
		select {
		case res := <-s.deps.Dispatcher.Results():
			s.pendingTools--
			if res.CallRefID == s.reservationRef {
				s.reservationRef = ""
			}
			if res.ReservationCreated {
				s.hasReservation = true
			}
		case <-grace.C:
			log.Warn("abandoning in-flight tools", "call", s.cfg.CallID, "pending", s.pendingTools)
			return
		}
	}
}

// drainChannel consumes the channel's remaining events so turns that
// completed just before closure still make the transcript.
func (s *Session) drainChannel() {
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-s.channel.Events():
			if !ok {
				return
			}
			if u, isUtterance := ev.(realtime.UtteranceCompleted); isUtterance {
				switch u.Role {
				case transcript.RoleCaller:
					s.asm.AppendCallerTurn(u.Text)
				case transcript.RoleAssistant:
					s.asm.AppendAssistantTurn(u.Text)
				}
			}
		case <-deadline.C:
			return
		}
	}
}

// deliver posts the finalized transcript. Runs at most once per
// session; an empty call still produces a record.
func (s *Session) deliver() {
	if s.delivered {
		return
	}
	s.delivered = true

	utterances := s.asm.Finalize()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := s.deps.Recorder.DeliverTranscript(ctx, backend.CallRecord{
		TenantID:       s.cfg.TenantID,
		CallerAddress:  s.cfg.CallerAddress,
		CalleeAddress:  s.cfg.CalleeAddress,
		CallID:         s.cfg.CallID,
		Utterances:     utterances,
		HasReservation: s.hasReservation,
	})
	if err != nil {
		log.Error("transcript delivery failed", "call", s.cfg.CallID, "error", err)
		return
	}
	log.Info("transcript delivered", "call", s.cfg.CallID, "utterances", len(utterances), "reservation", s.hasReservation)
}

func (s *Session) hangup() {
	s.refMu.Lock()
	ref := s.telephonyRef
	s.refMu.Unlock()
	if s.deps.Control == nil || ref == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deps.Control.Hangup(ctx, ref); err != nil {
		log.Error("telephony hangup failed", "call", s.cfg.CallID, "ref", ref, "error", err)
	}
}
