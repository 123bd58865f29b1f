// Package web is the HTTP surface of the gateway: the inbound-call
// webhook, the telephony media-stream websocket and operational
// endpoints.
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/mokavoice/callbridge/internal/log"
	"github.com/mokavoice/callbridge/pkg/admission"
)

// Admitter handles inbound-call webhook deliveries.
type Admitter interface {
	HandleWebhook(ctx context.Context, body []byte, sig admission.SignatureHeaders) int
}

// Stats exposes live-call counters for the operational endpoints.
type Stats interface {
	ActiveCalls() int
}

// StreamHandler serves one media-stream websocket connection.
type StreamHandler interface {
	Handle(c *websocket.Conn)
}

// Server is the gateway's HTTP server.
type Server struct {
	app  *fiber.App
	port string

	admitter Admitter
	stats    Stats
}

// NewServer wires the routes and middleware.
func NewServer(port string, admitter Admitter, stats Stats, stream StreamHandler) *Server {
	s := &Server{
		port:     port,
		admitter: admitter,
		stats:    stats,
	}

	app := fiber.New(fiber.Config{
		AppName:               "callbridge",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Post("/call", s.handleWebhook)
	app.Get("/health", s.handleHealth)
	app.Get("/", s.handleInfo)

	app.Use("/voice-stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/voice-stream", websocket.New(stream.Handle))

	s.app = app
	return s
}

// Start listens until Shutdown.
func (s *Server) Start() error {
	log.Info("http server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
