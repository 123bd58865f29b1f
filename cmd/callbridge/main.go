// callbridge bridges inbound SIP telephone calls to realtime speech-AI
// sessions: webhook admission, audio relay, mid-call tool execution and
// transcript delivery.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mokavoice/callbridge/internal/backend"
	"github.com/mokavoice/callbridge/internal/config"
	"github.com/mokavoice/callbridge/internal/knowledge"
	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/internal/mailer"
	"github.com/mokavoice/callbridge/internal/telephony"
	"github.com/mokavoice/callbridge/internal/tenant"
	"github.com/mokavoice/callbridge/pkg/admission"
	"github.com/mokavoice/callbridge/pkg/mediastream"
	"github.com/mokavoice/callbridge/pkg/realtime"
	"github.com/mokavoice/callbridge/pkg/session"
	"github.com/mokavoice/callbridge/pkg/web"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg := parseFlags()
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error:\n%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = tenant.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, tenant cache is in-process only", "addr", cfg.RedisAddr, "error", err)
		}
	}
	tenants := tenant.NewCache(tenant.NewClient(cfg.TenantConfigURL), rdb, cfg.TenantCacheTTL)

	records := backend.NewClient(cfg.BackendBaseURL)
	mail := &mailer.Mailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	}
	if !mail.Enabled() {
		log.Info("mailer not configured, confirmation email disabled")
	}

	orch := session.NewOrchestrator(session.OrchestratorConfig{
		Dial: func(ctx context.Context, callID string) (session.Channel, error) {
			return realtime.Dial(ctx, cfg.RealtimeBaseURL, callID, cfg.OpenAIKey)
		},
		Knowledge: knowledge.NewClient(cfg.KnowledgeURL),
		Writer:    records,
		Mail:      mail,
		Recorder:  records,
		Control:   telephony.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioBaseURL),
		ToolGrace: cfg.ToolGrace,
	})

	admitter := admission.New(
		cfg.WebhookSecret,
		tenants,
		admission.NewAuthorizer(cfg.AcceptBaseURL, cfg.OpenAIKey),
		orch,
		cfg.Voice,
	)

	stream := mediastream.NewHandler(func(callID string) (mediastream.Call, bool) {
		s, ok := orch.Lookup(callID)
		if !ok {
			return nil, false
		}
		return s, true
	})

	srv := web.NewServer(cfg.Port, admitter, orch, stream)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server stopped", "error", err)
			stop()
		}
	}()

	log.Info("callbridge up", "port", cfg.Port)
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	orch.Shutdown(shutdownCtx)
	if err := srv.Shutdown(); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}

// parseFlags loads the environment configuration with flag overrides.
func parseFlags() config.Config {
	cfg := config.Load()

	port := flag.String("port", "", "listen port (overrides PORT)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	voice := flag.String("voice", "", "assistant voice (overrides ASSISTANT_VOICE)")
	flag.Parse()

	if *port != "" {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *voice != "" {
		cfg.Voice = *voice
	}
	return cfg
}
