package mediastream

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mokavoice/callbridge/pkg/session"
)

type fakeConn struct {
	in chan []byte

	mu      sync.Mutex
	written []any
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.in
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, raw, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writtenFrames() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.written))
	copy(out, f.written)
	return out
}

type fakeCall struct {
	mu         sync.Mutex
	audio      []string
	sink       func(string)
	telRef     string
	terminated []session.TerminateReason
}

func (f *fakeCall) SendCallerAudio(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, payload)
}

func (f *fakeCall) SetAudioSink(sink func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *fakeCall) SetTelephonyRef(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.telRef = ref
}

func (f *fakeCall) Terminate(reason session.TerminateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, reason)
}

func (f *fakeCall) reasons() []session.TerminateReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.TerminateReason, len(f.terminated))
	copy(out, f.terminated)
	return out
}

func startFrame(callID, streamSid string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{
			"streamSid":        streamSid,
			"callSid":          "CA999",
			"customParameters": map[string]string{"callId": callID},
		},
	})
	return raw
}

func mediaFrame(payload string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"event": "media",
		"media": map[string]any{"payload": payload},
	})
	return raw
}

func runBridge(t *testing.T, conn *fakeConn, call *fakeCall) chan struct{} {
	t.Helper()
	h := NewHandler(func(callID string) (Call, bool) {
		if call == nil {
			return nil, false
		}
		return call, true
	})

	done := make(chan struct{})
	go func() {
		h.run(conn)
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not exit within 2s")
	}
}

func TestBridgeRelaysCallerAudio(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- []byte(`{"event":"connected"}`)
	conn.in <- startFrame("rtc_1", "MZ123")
	conn.in <- mediaFrame("AAAA")
	conn.in <- mediaFrame("BBBB")
	conn.in <- []byte(`{"event":"stop"}`)
	waitDone(t, done)

	call.mu.Lock()
	got := append([]string(nil), call.audio...)
	call.mu.Unlock()
	if len(got) != 2 || got[0] != "AAAA" || got[1] != "BBBB" {
		t.Errorf("relayed audio = %v", got)
	}
}

func TestBridgeRelaysAssistantAudioAsMediaFrames(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- startFrame("rtc_1", "MZ123")

	deadline := time.Now().Add(2 * time.Second)
	for {
		call.mu.Lock()
		sink := call.sink
		call.mu.Unlock()
		if sink != nil {
			sink("CCCC")
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("audio sink never installed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.in <- []byte(`{"event":"stop"}`)
	waitDone(t, done)

	frames := conn.writtenFrames()
	if len(frames) != 1 {
		t.Fatalf("written frames = %d, want 1", len(frames))
	}
	out, ok := frames[0].(mediaOut)
	if !ok {
		t.Fatalf("frame type = %T", frames[0])
	}
	if out.Event != "media" || out.StreamSid != "MZ123" || out.Media.Payload != "CCCC" {
		t.Errorf("media frame = %+v", out)
	}
}

func TestBridgeBindsTelephonyRef(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- startFrame("rtc_1", "MZ123")
	conn.in <- []byte(`{"event":"stop"}`)
	waitDone(t, done)

	call.mu.Lock()
	defer call.mu.Unlock()
	if call.telRef != "CA999" {
		t.Errorf("telephony ref = %q, want CA999 from the start frame", call.telRef)
	}
}

func TestBridgeStopTerminatesAsCallerHangup(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- startFrame("rtc_1", "MZ123")
	conn.in <- []byte(`{"event":"stop"}`)
	waitDone(t, done)

	reasons := call.reasons()
	if len(reasons) == 0 || reasons[0] != session.ReasonCallerHangup {
		t.Errorf("terminate reasons = %v, want caller hangup", reasons)
	}
}

func TestBridgeReadErrorTerminatesCall(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- startFrame("rtc_1", "MZ123")
	close(conn.in)
	waitDone(t, done)

	if len(call.reasons()) == 0 {
		t.Error("dropped stream did not terminate the call")
	}
}

func TestBridgeUnknownCallClosesStream(t *testing.T) {
	conn := newFakeConn()
	done := runBridge(t, conn, nil)

	conn.in <- startFrame("rtc_unknown", "MZ123")
	waitDone(t, done)

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("connection left open for unknown call")
	}
}

func TestBridgeMalformedFrameIgnored(t *testing.T) {
	conn := newFakeConn()
	call := &fakeCall{}
	done := runBridge(t, conn, call)

	conn.in <- []byte(`{"event":`)
	conn.in <- startFrame("rtc_1", "MZ123")
	conn.in <- mediaFrame("AAAA")
	conn.in <- []byte(`{"event":"stop"}`)
	waitDone(t, done)

	call.mu.Lock()
	defer call.mu.Unlock()
	if len(call.audio) != 1 {
		t.Errorf("audio after malformed frame = %v", call.audio)
	}
}
