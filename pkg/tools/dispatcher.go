package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mokavoice/callbridge/internal/backend"
	"github.com/mokavoice/callbridge/internal/knowledge"
	"github.com/mokavoice/callbridge/internal/log"
)

// Passages scoring at or below this are treated as irrelevant noise.
const relevanceThreshold = 0.7

// At most this many passages are fed back to the provider.
const maxPassages = 3

const searchTimeout = 2 * time.Second

// Searcher is the knowledge-base collaborator.
type Searcher interface {
	Search(ctx context.Context, query, tenantID string) ([]knowledge.Passage, error)
}

// ReservationWriter persists reservations.
type ReservationWriter interface {
	CreateReservation(ctx context.Context, r backend.Reservation) error
}

// Sender delivers confirmation mail. Best effort.
type Sender interface {
	Send(to, subject, body string) error
}

// Invocation is one provider-requested tool call.
type Invocation struct {
	CallRefID string
	Name      string
	RawArgs   string
}

// Result is the outcome of one invocation, delivered back to the
// session loop. Output is always non-empty: every accepted invocation
// produces exactly one tool output for the provider.
type Result struct {
	CallRefID          string
	Output             string
	SpeakInstructions  string
	ReservationCreated bool
}

// Dispatcher executes tool invocations for one call. Accept runs on the
// session goroutine; Dispatch hands the work to a new goroutine and the
// outcome comes back on Results. Not safe for concurrent Accept calls.
type Dispatcher struct {
	kb   Searcher
	res  ReservationWriter
	mail Sender

	tenantID   string
	tenantName string
	callID     string

	seen    map[string]struct{}
	results chan Result

	done        chan struct{}
	abandonOnce sync.Once
}

// NewDispatcher creates the dispatcher for one call. mail may be nil.
func NewDispatcher(kb Searcher, res ReservationWriter, mail Sender, tenantID, tenantName, callID string) *Dispatcher {
	return &Dispatcher{
		kb:         kb,
		res:        res,
		mail:       mail,
		tenantID:   tenantID,
		tenantName: tenantName,
		callID:     callID,
		seen:       make(map[string]struct{}),
		results:    make(chan Result, 8),
		done:       make(chan struct{}),
	}
}

// Results delivers tool outcomes in completion order.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Accept registers an invocation. It returns false when the provider
// reference was already accepted; a duplicate must be dropped without
// executing or emitting anything.
func (d *Dispatcher) Accept(inv Invocation) bool {
	if inv.CallRefID == "" {
		return false
	}
	if _, dup := d.seen[inv.CallRefID]; dup {
		log.Warn("duplicate tool invocation dropped", "call", d.callID, "ref", inv.CallRefID)
		return false
	}
	d.seen[inv.CallRefID] = struct{}{}
	return true
}

// Dispatch executes an accepted invocation asynchronously.
// hasReservation is the session's view at dispatch time; a reservation
// request against a call that already holds one becomes a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, hasReservation bool) {
	go func() {
		d.deliver(d.execute(ctx, inv, hasReservation))
	}()
}

// Abandon stops result delivery. Dispatch goroutines still running
// drop their results instead of blocking on a channel nobody reads.
// Safe to call multiple times.
func (d *Dispatcher) Abandon() {
	d.abandonOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) deliver(res Result) bool {
	select {
	case d.results <- res:
		return true
	case <-d.done:
		return false
	}
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation, hasReservation bool) Result {
	res := Result{CallRefID: inv.CallRefID}

	args, err := ParseArgs(inv.Name, inv.RawArgs)
	if err != nil {
		log.Warn("tool arguments unparseable", "call", d.callID, "tool", inv.Name, "error", err)
		res.Output = "The arguments could not be understood. Ask the caller again and retry."
		return res
	}

	switch a := args.(type) {
	case SearchArgs:
		res.Output = d.search(ctx, a)

	case ReservationArgs:
		d.reserve(ctx, a, hasReservation, &res)

	case UnknownArgs:
		log.Warn("unknown tool requested", "call", d.callID, "tool", a.Name)
		res.Output = fmt.Sprintf("The tool %q is not available.", a.Name)
	}

	return res
}

func (d *Dispatcher) search(ctx context.Context, a SearchArgs) string {
	if strings.TrimSpace(a.Query) == "" {
		return "The search query was empty. Ask the caller to rephrase the question."
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	passages, err := d.kb.Search(ctx, a.Query, d.tenantID)
	if err != nil {
		log.Error("knowledge search failed", "call", d.callID, "error", err)
		return "The knowledge base is unavailable right now. Apologize and offer to help with something else."
	}

	var kept []string
	for _, p := range passages {
		if p.Score <= relevanceThreshold {
			continue
		}
		kept = append(kept, p.Text)
		if len(kept) == maxPassages {
			break
		}
	}
	if len(kept) == 0 {
		return "No relevant information was found. Tell the caller you do not have that information."
	}

	var b strings.Builder
	for i, text := range kept {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	return b.String()
}

func (d *Dispatcher) reserve(ctx context.Context, a ReservationArgs, hasReservation bool, res *Result) {
	if hasReservation {
		res.Output = "A reservation was already recorded on this call. Do not create another one."
		return
	}

	if missing := a.Missing(); len(missing) > 0 {
		res.Output = fmt.Sprintf(
			"Missing required fields: %s. Ask the caller for them and call the tool again.",
			strings.Join(missing, ", "))
		return
	}

	err := d.res.CreateReservation(ctx, backend.Reservation{
		Type:            a.Type,
		Date:            a.Date,
		Time:            a.Time,
		CustomerName:    a.CustomerName,
		CustomerSurname: a.CustomerSurname,
		CustomerEmail:   a.CustomerEmail,
		Notes:           a.Notes,
		TenantID:        d.tenantID,
		CallID:          d.callID,
	})
	if err != nil {
		log.Error("reservation write failed", "call", d.callID, "error", err)
		res.Output = "The reservation could not be saved. Apologize and offer to try once more."
		return
	}

	res.ReservationCreated = true
	res.Output = fmt.Sprintf("Reservation recorded: %s for %s %s on %s at %s.",
		a.Type, a.CustomerName, a.CustomerSurname, a.Date, a.Time)
	res.SpeakInstructions = "Confirm the reservation details back to the caller and ask if there is anything else."

	if d.mail != nil {
		go d.sendConfirmation(a)
	}
}

// sendConfirmation mails the customer. Failures are logged and never
// surface to the call.
func (d *Dispatcher) sendConfirmation(a ReservationArgs) {
	venue := d.tenantName
	if venue == "" {
		venue = "our venue"
	}
	subject := fmt.Sprintf("Your reservation at %s", venue)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s %s,\n\n", a.CustomerName, a.CustomerSurname)
	fmt.Fprintf(&b, "Your %s reservation at %s is confirmed for %s at %s.\n",
		a.Type, venue, a.Date, a.Time)
	if a.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", a.Notes)
	}
	b.WriteString("\nWe look forward to welcoming you.\n")

	if err := d.mail.Send(a.CustomerEmail, subject, b.String()); err != nil {
		log.Warn("confirmation mail failed", "call", d.callID, "error", err)
	}
}
