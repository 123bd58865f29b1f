package realtime

// ToolSchema describes one function tool exposed to the provider.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// Wire renders the schema in the provider's function-tool format.
func (t ToolSchema) Wire() map[string]any {
	required := t.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":        "function",
		"name":        t.Name,
		"description": t.Description,
		"parameters": map[string]any{
			"type":       "object",
			"properties": t.Parameters,
			"required":   required,
		},
	}
}

// SessionConfig is the session.update payload. Zero-valued fields are
// omitted; on a SIP-attached call the audio settings were already fixed
// by the call authorization, so only the tools are sent.
type SessionConfig struct {
	Instructions string
	Voice        string
	AudioFormat  string // e.g. "g711_ulaw"
	Tools        []ToolSchema
}

// Voice activity detection tuned for telephone audio.
var vadConfig = map[string]any{
	"type":                "server_vad",
	"threshold":           0.6,
	"prefix_padding_ms":   400,
	"silence_duration_ms": 800,
}

// ConfigureSession sends the session.update command.
func (a *Adapter) ConfigureSession(cfg SessionConfig) error {
	session := map[string]any{
		"type": "realtime",
	}

	tools := make([]map[string]any, len(cfg.Tools))
	for i, t := range cfg.Tools {
		tools[i] = t.Wire()
	}
	session["tools"] = tools

	if cfg.Instructions != "" {
		session["instructions"] = cfg.Instructions
	}
	if cfg.Voice != "" {
		session["voice"] = cfg.Voice
	}
	if cfg.AudioFormat != "" {
		session["input_audio_format"] = cfg.AudioFormat
		session["output_audio_format"] = cfg.AudioFormat
		session["input_audio_transcription"] = map[string]any{"model": "whisper-1"}
		session["turn_detection"] = vadConfig
	}

	return a.send(map[string]any{
		"type":    "session.update",
		"session": session,
	})
}

// SendAudio appends one base64 audio payload to the input buffer.
func (a *Adapter) SendAudio(payload string) error {
	return a.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// SendToolOutput returns a tool result for callRefID. The provider will
// not speak again until this is followed by a response continuation.
func (a *Adapter) SendToolOutput(callRefID, output string) error {
	return a.send(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callRefID,
			"output":  output,
		},
	})
}

// ContinueResponse asks the provider to resume speaking.
func (a *Adapter) ContinueResponse() error {
	return a.send(map[string]any{
		"type":     "response.create",
		"response": map[string]any{},
	})
}

// CreateResponse asks the provider to speak following instructions.
func (a *Adapter) CreateResponse(instructions string) error {
	if instructions == "" {
		return a.ContinueResponse()
	}
	return a.send(map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"instructions": instructions,
		},
	})
}
