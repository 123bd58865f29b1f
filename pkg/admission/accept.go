package admission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mokavoice/callbridge/internal/httpc"
	"github.com/mokavoice/callbridge/pkg/realtime"
)

// DefaultAcceptBaseURL is the provider's call-control API root. The
// accept endpoint lives at {base}/{callID}/accept.
const DefaultAcceptBaseURL = "https://api.openai.com/v1/realtime/calls"

const acceptModel = "gpt-realtime"

// Telephone audio is 8kHz companded PCM on both directions.
const telephonyAudioFormat = "g711_ulaw"

// Authorizer accepts inbound SIP calls with the provider.
type Authorizer struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewAuthorizer creates an authorizer. baseURL may be empty to use the
// production endpoint.
func NewAuthorizer(baseURL, apiKey string) *Authorizer {
	if baseURL == "" {
		baseURL = DefaultAcceptBaseURL
	}
	return &Authorizer{baseURL: baseURL, apiKey: apiKey, hc: httpc.Client}
}

// Accept authorizes the call: instructions, voice, telephone audio
// format and the tool schema are fixed at accept time. Non-2xx aborts
// admission and no session may be created.
func (a *Authorizer) Accept(ctx context.Context, callID, instructions, voice string, schemas []realtime.ToolSchema) error {
	tools := make([]map[string]any, len(schemas))
	for i, s := range schemas {
		tools[i] = s.Wire()
	}

	payload := map[string]any{
		"type":                "realtime",
		"model":               acceptModel,
		"instructions":        instructions,
		"voice":               voice,
		"input_audio_format":  telephonyAudioFormat,
		"output_audio_format": telephonyAudioFormat,
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
		"turn_detection": map[string]any{
			"type":                "server_vad",
			"threshold":           0.6,
			"prefix_padding_ms":   400,
			"silence_duration_ms": 800,
		},
		"tools": tools,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("admission: encode accept: %w", err)
	}

	url := fmt.Sprintf("%s/%s/accept", a.baseURL, callID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("admission: build accept: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.hc.Do(req)
	if err != nil {
		return fmt.Errorf("admission: accept call %s: %w", callID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("admission: accept call %s returned status %d", callID, resp.StatusCode)
	}
	return nil
}
