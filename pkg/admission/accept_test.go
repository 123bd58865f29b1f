package admission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mokavoice/callbridge/pkg/tools"
)

func TestAuthorizerAccept(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAuthorizer(srv.URL, "sk-test")
	err := a.Accept(context.Background(), "rtc_1", "You answer for Hotel Roma.", "alloy", tools.Schemas())
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if gotPath != "/rtc_1/accept" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %s", gotAuth)
	}
	if gotBody["instructions"] != "You answer for Hotel Roma." {
		t.Errorf("instructions = %v", gotBody["instructions"])
	}
	if gotBody["voice"] != "alloy" {
		t.Errorf("voice = %v", gotBody["voice"])
	}
	if gotBody["input_audio_format"] != "g711_ulaw" || gotBody["output_audio_format"] != "g711_ulaw" {
		t.Errorf("audio formats = %v / %v", gotBody["input_audio_format"], gotBody["output_audio_format"])
	}
	schemas, ok := gotBody["tools"].([]any)
	if !ok || len(schemas) != 2 {
		t.Errorf("tools = %v", gotBody["tools"])
	}
}

func TestAuthorizerAcceptRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewAuthorizer(srv.URL, "sk-test")
	if err := a.Accept(context.Background(), "rtc_1", "", "alloy", nil); err == nil {
		t.Fatal("Accept() error = nil, want failure on non-2xx")
	}
}
