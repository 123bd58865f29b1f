// Package realtime owns the duplex connection to the speech-AI
// provider. It translates wire frames into typed events, delivered in
// wire order over a single channel, and internal commands into wire
// messages. One adapter serves exactly one call.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mokavoice/callbridge/internal/log"
)

// DefaultBaseURL is the provider's realtime websocket root. The call
// channel is parameterized by call_id.
const DefaultBaseURL = "wss://api.openai.com/v1/realtime"

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 120 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second

	// Audio deltas arrive in bursts; buffer enough that the read loop
	// never blocks behind a briefly busy session loop.
	eventBuffer = 256
)

// ErrClosed is returned by send operations after the adapter closed.
var ErrClosed = errors.New("realtime: adapter closed")

// Adapter is the provider channel for one call.
type Adapter struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens the realtime channel for callID and starts the read loop.
// baseURL may be empty to use the production endpoint.
func Dial(ctx context.Context, baseURL, callID, apiKey string) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	endpoint := fmt.Sprintf("%s?call_id=%s", baseURL, url.QueryEscape(callID))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("Origin", "https://api.openai.com")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	a := &Adapter{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		closed: make(chan struct{}),
	}

	conn.SetPingHandler(func(appData string) error {
		a.writeMu.Lock()
		defer a.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	go a.readLoop()
	go a.keepAlive()

	return a, nil
}

// Events returns the event stream. The channel is closed after the
// final Closed event has been delivered.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// Close tears the connection down. The read loop then emits the single
// Closed event. Safe to call multiple times.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.closed)
		a.writeMu.Lock()
		a.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		a.writeMu.Unlock()
		err = a.conn.Close()
	})
	return err
}

// readLoop parses frames into events. A malformed frame is logged and
// dropped without closing the connection; a read error terminates the
// loop with exactly one Closed event.
func (a *Adapter) readLoop() {
	defer close(a.events)

	for {
		a.conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, raw, err := a.conn.ReadMessage()
		if err != nil {
			code, reason := websocket.CloseAbnormalClosure, err.Error()
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code, reason = ce.Code, ce.Text
			}
			a.events <- Closed{Code: code, Reason: reason}
			return
		}

		ev, ok, err := parseServerEvent(raw)
		if err != nil {
			log.Warn("dropping malformed provider frame", "error", err)
			continue
		}
		if !ok {
			continue
		}
		a.events <- ev
	}
}

// keepAlive pings until the adapter closes.
func (a *Adapter) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.closed:
			return
		case <-ticker.C:
			a.writeMu.Lock()
			err := a.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			a.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (a *Adapter) send(v any) error {
	select {
	case <-a.closed:
		return ErrClosed
	default:
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.conn.WriteJSON(v)
}
