// Package config provides configuration for the callbridge process.
// All values come from the environment; flags in main may override a few.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for optional settings.
const (
	DefaultPort            = "5050"
	DefaultLogLevel        = "info"
	DefaultVoice           = "alloy"
	DefaultRealtimeBaseURL = "wss://api.openai.com/v1/realtime"
	DefaultAcceptBaseURL   = "https://api.openai.com/v1/realtime/calls"
	DefaultTwilioBaseURL   = "https://api.twilio.com"
	DefaultToolGrace       = 3 * time.Second
	DefaultTenantCacheTTL  = 5 * time.Minute
)

// Config holds everything the gateway needs to run.
type Config struct {
	Port     string
	LogLevel string

	// Speech-AI provider
	OpenAIKey       string
	WebhookSecret   string
	RealtimeBaseURL string
	AcceptBaseURL   string
	Voice           string

	// Collaborators
	BackendBaseURL  string // record-keeping backend (transcripts, reservations)
	KnowledgeURL    string // knowledge-base search endpoint
	TenantConfigURL string // tenant configuration service
	RedisAddr       string // tenant cache; empty disables caching

	// Telephony
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioBaseURL    string

	// Confirmation email
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Session tuning
	ToolGrace      time.Duration
	TenantCacheTTL time.Duration
}

// Load reads configuration from the environment.
// Call Validate before using the result.
func Load() Config {
	return Config{
		Port:     envOr("PORT", DefaultPort),
		LogLevel: envOr("LOG_LEVEL", DefaultLogLevel),

		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		WebhookSecret:   os.Getenv("OPENAI_WEBHOOK_SECRET"),
		RealtimeBaseURL: envOr("OPENAI_REALTIME_URL", DefaultRealtimeBaseURL),
		AcceptBaseURL:   envOr("OPENAI_ACCEPT_URL", DefaultAcceptBaseURL),
		Voice:           envOr("ASSISTANT_VOICE", DefaultVoice),

		BackendBaseURL:  strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/"),
		KnowledgeURL:    os.Getenv("KNOWLEDGE_BASE_URL"),
		TenantConfigURL: strings.TrimRight(os.Getenv("TENANT_CONFIG_URL"), "/"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioBaseURL:    envOr("TWILIO_BASE_URL", DefaultTwilioBaseURL),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envOr("SMTP_PORT", "465"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envOr("SMTP_FROM", "Moka Assistant <no-reply@mokavoice.io>"),

		ToolGrace:      durationOr("TOOL_GRACE", DefaultToolGrace),
		TenantCacheTTL: durationOr("TENANT_CACHE_TTL", DefaultTenantCacheTTL),
	}
}

// Validate checks that the required settings are present.
func (c Config) Validate() error {
	var errs []error
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.WebhookSecret == "" {
		errs = append(errs, errors.New("OPENAI_WEBHOOK_SECRET is required"))
	}
	if c.BackendBaseURL == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL is required"))
	}
	if c.KnowledgeURL == "" {
		errs = append(errs, errors.New("KNOWLEDGE_BASE_URL is required"))
	}
	if c.TenantConfigURL == "" {
		errs = append(errs, errors.New("TENANT_CONFIG_URL is required"))
	}
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required"))
	}
	if c.ToolGrace <= 0 {
		errs = append(errs, fmt.Errorf("TOOL_GRACE must be positive, got %s", c.ToolGrace))
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
