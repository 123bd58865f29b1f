// Package transcript builds the ordered utterance log for one call.
// The assembler is owned by a single call session and is not safe for
// concurrent use; the session's event loop is its only caller.
package transcript

import (
	"sort"
	"strings"
	"time"
)

// Role identifies who spoke an utterance.
type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Utterance is one completed speech turn. Never mutated after append.
type Utterance struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Sequence   int       `json:"sequence"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Assembler accumulates completed turns in arrival order.
//
// A caller turn is held pending until the assistant's next turn completes,
// so each exchange keeps strict caller-before-response ordering even when
// the provider delivers the two completion events out of order.
type Assembler struct {
	utterances []Utterance
	pending    string
	pendingAt  time.Time
	seq        int
	finalized  bool

	now func() time.Time
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// AppendCallerTurn records a completed caller turn. The turn is held
// pending; a previously pending caller turn is flushed first.
func (a *Assembler) AppendCallerTurn(text string) {
	if a.finalized {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.flushPending()
	a.pending = text
	a.pendingAt = a.now()
}

// AppendAssistantTurn records a completed assistant turn, flushing any
// pending caller turn first.
func (a *Assembler) AppendAssistantTurn(text string) {
	if a.finalized {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.flushPending()
	a.append(RoleAssistant, text, a.now())
}

// Len returns the number of appended utterances, excluding a pending
// caller turn.
func (a *Assembler) Len() int {
	return len(a.utterances)
}

// Finalize flushes any pending caller turn, normalizes ordering with a
// stable sort by timestamp then sequence, and freezes the log. Further
// appends are ignored. Finalize always returns a non-nil slice.
func (a *Assembler) Finalize() []Utterance {
	if !a.finalized {
		a.flushPending()
		sort.SliceStable(a.utterances, func(i, j int) bool {
			if !a.utterances[i].OccurredAt.Equal(a.utterances[j].OccurredAt) {
				return a.utterances[i].OccurredAt.Before(a.utterances[j].OccurredAt)
			}
			return a.utterances[i].Sequence < a.utterances[j].Sequence
		})
		a.finalized = true
	}

	out := make([]Utterance, len(a.utterances))
	copy(out, a.utterances)
	return out
}

func (a *Assembler) flushPending() {
	if a.pending == "" {
		return
	}
	a.append(RoleCaller, a.pending, a.pendingAt)
	a.pending = ""
}

func (a *Assembler) append(role Role, text string, at time.Time) {
	a.seq++
	a.utterances = append(a.utterances, Utterance{
		Role:       role,
		Text:       text,
		Sequence:   a.seq,
		OccurredAt: at,
	})
}
