package transcript

import (
	"testing"
	"time"
)

// fakeClock returns a now func that advances one millisecond per call.
func fakeClock() func() time.Time {
	t := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestCallerBeforeAssistantOrdering(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	a.AppendCallerTurn("do you have free rooms tonight")
	a.AppendAssistantTurn("Yes, we have two doubles available.")
	a.AppendCallerTurn("what is the price")
	a.AppendAssistantTurn("120 euros per night.")

	got := a.Finalize()
	if len(got) != 4 {
		t.Fatalf("expected 4 utterances, got %d", len(got))
	}

	wantRoles := []Role{RoleCaller, RoleAssistant, RoleCaller, RoleAssistant}
	for i, u := range got {
		if u.Role != wantRoles[i] {
			t.Errorf("utterance %d role = %s, want %s", i, u.Role, wantRoles[i])
		}
	}
}

func TestPendingCallerFlushedByNextCallerTurn(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	// Two caller completions arrive before any assistant turn. The first
	// must not be dropped.
	a.AppendCallerTurn("hello")
	a.AppendCallerTurn("anyone there")
	a.AppendAssistantTurn("Hello, how can I help?")

	got := a.Finalize()
	if len(got) != 3 {
		t.Fatalf("expected 3 utterances, got %d", len(got))
	}
	if got[0].Text != "hello" || got[1].Text != "anyone there" {
		t.Errorf("caller turns out of order: %q, %q", got[0].Text, got[1].Text)
	}
}

func TestSequencesStrictlyIncreasingPerRole(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	turns := []struct {
		role Role
		text string
	}{
		{RoleCaller, "one"},
		{RoleAssistant, "two"},
		{RoleCaller, "three"},
		{RoleCaller, "four"},
		{RoleAssistant, "five"},
	}
	for _, turn := range turns {
		if turn.role == RoleCaller {
			a.AppendCallerTurn(turn.text)
		} else {
			a.AppendAssistantTurn(turn.text)
		}
	}

	got := a.Finalize()
	if len(got) != len(turns) {
		t.Fatalf("expected %d utterances, got %d", len(turns), len(got))
	}

	last := map[Role]int{}
	for _, u := range got {
		if u.Sequence <= last[u.Role] {
			t.Errorf("%s sequence not strictly increasing: %d after %d", u.Role, u.Sequence, last[u.Role])
		}
		last[u.Role] = u.Sequence
	}
}

func TestFinalizeFlushesPendingCaller(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	a.AppendCallerTurn("goodbye")
	got := a.Finalize()

	if len(got) != 1 {
		t.Fatalf("expected pending caller turn to be flushed, got %d utterances", len(got))
	}
	if got[0].Role != RoleCaller || got[0].Text != "goodbye" {
		t.Errorf("unexpected utterance: %+v", got[0])
	}
}

func TestFinalizeFreezesLog(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	a.AppendAssistantTurn("before")
	first := a.Finalize()

	a.AppendCallerTurn("after finalize")
	a.AppendAssistantTurn("also after")
	second := a.Finalize()

	if len(first) != 1 || len(second) != 1 {
		t.Errorf("appends after finalize must be ignored: first=%d second=%d", len(first), len(second))
	}
}

func TestFinalizeEmptyCall(t *testing.T) {
	a := NewAssembler()

	got := a.Finalize()
	if got == nil {
		t.Fatal("Finalize() must return a non-nil slice for an empty call")
	}
	if len(got) != 0 {
		t.Errorf("expected empty transcript, got %d utterances", len(got))
	}
}

func TestBlankTurnsIgnored(t *testing.T) {
	a := NewAssembler()
	a.now = fakeClock()

	a.AppendCallerTurn("   ")
	a.AppendAssistantTurn("")
	a.AppendCallerTurn("real turn")

	got := a.Finalize()
	if len(got) != 1 {
		t.Fatalf("expected blank turns to be ignored, got %d utterances", len(got))
	}
}

func TestFinalizeStableSortByTimestamp(t *testing.T) {
	a := NewAssembler()

	// Force identical timestamps; sequence must break the tie stably.
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	a.AppendAssistantTurn("first")
	a.AppendAssistantTurn("second")
	a.AppendAssistantTurn("third")

	got := a.Finalize()
	want := []string{"first", "second", "third"}
	for i, u := range got {
		if u.Text != want[i] {
			t.Errorf("position %d = %q, want %q", i, u.Text, want[i])
		}
	}
}
