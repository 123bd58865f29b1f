// Package mediastream bridges a telephony media-stream websocket to a
// live call session: caller audio frames flow to the provider, and
// assistant audio comes back as media frames keyed by the stream id.
package mediastream

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/pkg/session"
)

// Call is the slice of a session the bridge needs.
type Call interface {
	SendCallerAudio(payload string)
	SetAudioSink(sink func(payload string))
	SetTelephonyRef(ref string)
	Terminate(reason session.TerminateReason)
}

// Lookup resolves a call identifier to its live session.
type Lookup func(callID string) (Call, bool)

// Handler serves one media-stream connection per websocket.
type Handler struct {
	lookup Lookup
}

// NewHandler creates a media-stream handler.
func NewHandler(lookup Lookup) *Handler {
	return &Handler{lookup: lookup}
}

// frame is the telephony gateway's stream envelope, inbound direction.
type frame struct {
	Event string `json:"event"`
	Start *struct {
		StreamSid        string            `json:"streamSid"`
		CallSid          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// mediaOut is one assistant audio frame, outbound direction.
type mediaOut struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// wireConn is the subset of the websocket connection the bridge uses.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// Handle runs the bridge for one connection. Blocks until the stream
// ends; intended as the fiber websocket handler body.
func (h *Handler) Handle(c *websocket.Conn) {
	h.run(c)
}

func (h *Handler) run(c wireConn) {
	connID := uuid.NewString()
	log.Info("media stream opened", "conn", connID)

	var (
		call      Call
		streamSid string
		writeMu   sync.Mutex
	)
	defer func() {
		// A dropped stream is the caller leg going away.
		if call != nil {
			call.Terminate(session.ReasonCallerHangup)
		}
		c.Close()
		log.Info("media stream closed", "conn", connID)
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Warn("dropping malformed stream frame", "conn", connID, "error", err)
			continue
		}

		switch f.Event {
		case "connected":
			log.Debug("stream connected", "conn", connID)

		case "start":
			if f.Start == nil {
				log.Warn("start frame without body", "conn", connID)
				return
			}
			streamSid = f.Start.StreamSid

			callID := f.Start.CustomParameters["callId"]
			if callID == "" {
				callID = f.Start.CallSid
			}
			var ok bool
			call, ok = h.lookup(callID)
			if !ok {
				log.Warn("stream for unknown call", "conn", connID, "call", callID)
				return
			}

			// The telephony call reference only becomes known here; the
			// session needs it to hang the line up on provider close.
			call.SetTelephonyRef(f.Start.CallSid)

			sid := streamSid
			call.SetAudioSink(func(payload string) {
				out := mediaOut{Event: "media", StreamSid: sid}
				out.Media.Payload = payload

				writeMu.Lock()
				err := c.WriteJSON(out)
				writeMu.Unlock()
				if err != nil {
					log.Debug("assistant audio frame dropped", "conn", connID, "error", err)
				}
			})
			log.Info("stream bound to call", "conn", connID, "call", callID, "stream", streamSid)

		case "media":
			if call == nil || f.Media == nil {
				continue
			}
			call.SendCallerAudio(f.Media.Payload)

		case "stop":
			log.Info("stream stopped by gateway", "conn", connID, "stream", streamSid)
			return
		}
	}
}
