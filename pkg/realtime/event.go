package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/mokavoice/callbridge/pkg/transcript"
)

// Event is a provider wire event translated into an internal type.
// Events are delivered strictly in the order they arrived on the wire.
type Event interface {
	isEvent()
}

// Ready signals the provider acknowledged the session configuration.
type Ready struct{}

// AudioChunk carries one base64 audio payload from the assistant.
type AudioChunk struct {
	Payload string
}

// UtteranceCompleted signals a finished speech turn for one role.
type UtteranceCompleted struct {
	Role transcript.Role
	Text string
}

// ToolCallRequested signals the provider wants a tool executed.
type ToolCallRequested struct {
	CallRefID    string
	Name         string
	ArgumentsRaw string
}

// ProviderError carries a provider-reported error. Non-terminal.
type ProviderError struct {
	Code    string
	Message string
}

// Closed signals the connection ended. Emitted exactly once per
// connection; terminal for the session.
type Closed struct {
	Code   int
	Reason string
}

func (Ready) isEvent()              {}
func (AudioChunk) isEvent()         {}
func (UtteranceCompleted) isEvent() {}
func (ToolCallRequested) isEvent()  {}
func (ProviderError) isEvent()      {}
func (Closed) isEvent()             {}

// serverEnvelope is the superset of provider message fields we read.
type serverEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Name       string `json:"name"`
	CallID     string `json:"call_id"`
	Arguments  string `json:"arguments"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseServerEvent maps one wire frame to an internal event. ok is
// false for frame types the session has no interest in.
func parseServerEvent(raw []byte) (Event, bool, error) {
	var env serverEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("realtime: malformed frame: %w", err)
	}
	if env.Type == "" {
		return nil, false, fmt.Errorf("realtime: frame missing type")
	}

	switch env.Type {
	case "session.updated":
		return Ready{}, true, nil

	case "response.audio.delta", "response.output_audio.delta":
		return AudioChunk{Payload: env.Delta}, true, nil

	case "conversation.item.input_audio_transcription.completed":
		return UtteranceCompleted{Role: transcript.RoleCaller, Text: env.Transcript}, true, nil

	case "response.audio_transcript.done", "response.output_audio_transcript.done":
		return UtteranceCompleted{Role: transcript.RoleAssistant, Text: env.Transcript}, true, nil

	case "response.function_call_arguments.done":
		return ToolCallRequested{
			CallRefID:    env.CallID,
			Name:         env.Name,
			ArgumentsRaw: env.Arguments,
		}, true, nil

	case "error":
		ev := ProviderError{}
		if env.Error != nil {
			ev.Code = env.Error.Code
			ev.Message = env.Error.Message
		}
		return ev, true, nil
	}

	return nil, false, nil
}
