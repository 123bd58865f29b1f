package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:             DefaultPort,
		OpenAIKey:        "sk-test",
		WebhookSecret:    "whsec_test",
		BackendBaseURL:   "https://backend.example.com",
		KnowledgeURL:     "https://rag.example.com/ask",
		TenantConfigURL:  "https://config.example.com",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		ToolGrace:        DefaultToolGrace,
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.OpenAIKey = "" },
			wantErr: true,
		},
		{
			name:    "missing webhook secret",
			mutate:  func(c *Config) { c.WebhookSecret = "" },
			wantErr: true,
		},
		{
			name:    "missing backend url",
			mutate:  func(c *Config) { c.BackendBaseURL = "" },
			wantErr: true,
		},
		{
			name:    "missing knowledge url",
			mutate:  func(c *Config) { c.KnowledgeURL = "" },
			wantErr: true,
		},
		{
			name:    "missing twilio credentials",
			mutate:  func(c *Config) { c.TwilioAuthToken = "" },
			wantErr: true,
		},
		{
			name:    "non-positive tool grace",
			mutate:  func(c *Config) { c.ToolGrace = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port == "" {
		t.Error("Load() should default the port")
	}
	if cfg.RealtimeBaseURL != DefaultRealtimeBaseURL && cfg.RealtimeBaseURL == "" {
		t.Error("Load() should default the realtime URL")
	}
	if cfg.ToolGrace <= 0 {
		t.Errorf("Load() tool grace should be positive, got %s", cfg.ToolGrace)
	}
	if cfg.TenantCacheTTL < time.Minute {
		t.Errorf("Load() tenant cache TTL suspiciously low: %s", cfg.TenantCacheTTL)
	}
}
