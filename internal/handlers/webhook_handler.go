package handlers

import (
	"encoding/json"

	"pixstore/internal/services"
	"pixstore/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// NotificationSubmitter accepts gateway notifications for asynchronous reconciliation.
type NotificationSubmitter interface {
	Submit(n services.Notification)
}

// WebhookHandler receives Mercado Pago payment notifications.
type WebhookHandler struct {
	reconciler NotificationSubmitter
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler NotificationSubmitter) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/webhooks/mercadopago", h.HandleMercadoPago)
}

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type mercadoPagoNotification struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	ID    flexID `json:"id"`
	Data  struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

// parseNotification reads the legacy {topic,id} shape, the newer {type,data.id}
// shape, and their query string equivalents. Body fields win over the query.
func parseNotification(c *fiber.Ctx) services.Notification {
	var body mercadoPagoNotification
	_ = json.Unmarshal(c.Body(), &body)

	n := services.Notification{
		Topic: firstNonEmpty(body.Topic, body.Type, c.Query("topic"), c.Query("type")),
	}
	if body.Type != "" || c.Query("type") != "" {
		n.ID = firstNonEmpty(string(body.Data.ID), c.Query("data.id"), string(body.ID), c.Query("id"))
	} else {
		n.ID = firstNonEmpty(string(body.ID), c.Query("id"), string(body.Data.ID), c.Query("data.id"))
	}
	return n
}

// HandleMercadoPago acknowledges every notification with 200 and reconciles it
// in the background. The gateway retries anything else, so errors are only logged.
func (h *WebhookHandler) HandleMercadoPago(c *fiber.Ctx) error {
	n := parseNotification(c)
	l := logger.FromContext(c.UserContext())
	if n.Topic != services.TopicPayment || n.ID == "" {
		l.Debug().Str("topic", n.Topic).Str("id", n.ID).Msg("webhook ignored")
		return c.JSON(fiber.Map{})
	}
	l.Info().Str("payment_id", n.ID).Msg("payment notification received")
	h.reconciler.Submit(n)
	return c.JSON(fiber.Map{})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
