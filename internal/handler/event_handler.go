package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldline/webhook-engine/internal/domain"
)

// EventFirer is the dispatch port consumed by the fire endpoint. Fire is
// fire-and-forget; the handler acknowledges spawn, never delivery.
type EventFirer interface {
	Fire(ctx context.Context, tenantID string, eventType domain.EventType, payload any)
}

type EventHandler struct {
	dispatcher EventFirer
}

func NewEventHandler(dispatcher EventFirer) (*EventHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &EventHandler{dispatcher: dispatcher}, nil
}

func RegisterEventRoutes(router fiber.Router, dispatcher EventFirer) error {
	h, err := NewEventHandler(dispatcher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/events", h.ListEventTypes)
	v1.Post("/tenants/:tenantId/events", h.FireEvent)

	return nil
}

type fireEventRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *EventHandler) ListEventTypes(c *fiber.Ctx) error {
	catalog := domain.AllEventTypes()
	events := make([]string, 0, len(catalog))
	for _, et := range catalog {
		events = append(events, et.String())
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": events})
}

func (h *EventHandler) FireEvent(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req fireEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	eventType, err := domain.ParseEventTypeFromString(req.Event)
	if err != nil {
		return toHTTPError(err)
	}

	data := req.Data
	if len(strings.TrimSpace(string(data))) == 0 {
		data = json.RawMessage(`{}`)
	}

	// Detached context: spawned delivery tasks outlive this request, and
	// fasthttp recycles the request context after the handler returns.
	h.dispatcher.Fire(context.Background(), tenantID, eventType, data)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event":  eventType.String(),
		"status": "accepted",
	})
}
