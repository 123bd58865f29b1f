package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mokavoice/callbridge/pkg/admission"
)

// handleWebhook passes the raw body and the standard-webhooks headers
// to admission; the body must reach signature verification unmodified.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	sig := admission.SignatureHeaders{
		ID:        c.Get("webhook-id"),
		Timestamp: c.Get("webhook-timestamp"),
		Signature: c.Get("webhook-signature"),
	}

	status := s.admitter.HandleWebhook(c.UserContext(), c.Body(), sig)
	return c.SendStatus(status)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"active_calls": s.stats.ActiveCalls(),
	})
}

func (s *Server) handleInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "callbridge",
		"webhook": "/call",
		"stream":  "/voice-stream",
	})
}
