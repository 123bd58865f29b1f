package realtime

import (
	"testing"

	"github.com/mokavoice/callbridge/pkg/transcript"
)

func TestParseServerEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "session updated",
			raw:    `{"type":"session.updated","session":{}}`,
			want:   Ready{},
			wantOK: true,
		},
		{
			name:   "audio delta",
			raw:    `{"type":"response.audio.delta","delta":"UklGRg=="}`,
			want:   AudioChunk{Payload: "UklGRg=="},
			wantOK: true,
		},
		{
			name:   "output audio delta variant",
			raw:    `{"type":"response.output_audio.delta","delta":"AAAA"}`,
			want:   AudioChunk{Payload: "AAAA"},
			wantOK: true,
		},
		{
			name:   "caller transcription completed",
			raw:    `{"type":"conversation.item.input_audio_transcription.completed","transcript":"is breakfast included"}`,
			want:   UtteranceCompleted{Role: transcript.RoleCaller, Text: "is breakfast included"},
			wantOK: true,
		},
		{
			name:   "assistant transcript done",
			raw:    `{"type":"response.output_audio_transcript.done","transcript":"Yes, from 7 to 10."}`,
			want:   UtteranceCompleted{Role: transcript.RoleAssistant, Text: "Yes, from 7 to 10."},
			wantOK: true,
		},
		{
			name: "function call done",
			raw:  `{"type":"response.function_call_arguments.done","call_id":"call_9","name":"search_knowledge_base","arguments":"{\"query\":\"wifi\"}"}`,
			want: ToolCallRequested{
				CallRefID:    "call_9",
				Name:         "search_knowledge_base",
				ArgumentsRaw: `{"query":"wifi"}`,
			},
			wantOK: true,
		},
		{
			name:   "provider error",
			raw:    `{"type":"error","error":{"code":"rate_limit","message":"slow down"}}`,
			want:   ProviderError{Code: "rate_limit", Message: "slow down"},
			wantOK: true,
		},
		{
			name:   "uninteresting type ignored",
			raw:    `{"type":"response.done"}`,
			wantOK: false,
		},
		{
			name:    "malformed json",
			raw:     `{"type":`,
			wantErr: true,
		},
		{
			name:    "missing type",
			raw:     `{"delta":"AAAA"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseServerEvent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseServerEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ok != tt.wantOK {
				t.Fatalf("parseServerEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("parseServerEvent() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
