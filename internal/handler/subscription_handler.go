package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldline/webhook-engine/internal/domain"
	"github.com/fieldline/webhook-engine/internal/repository"
	"github.com/fieldline/webhook-engine/internal/service"
	"github.com/fieldline/webhook-engine/internal/signature"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type SubscriptionRegistry interface {
	List(ctx context.Context, tenantID string) ([]domain.Subscription, error)
	Get(ctx context.Context, id string, tenantID string) (*domain.Subscription, error)
	Create(ctx context.Context, tenantID string, params service.CreateSubscriptionParams) (*domain.Subscription, error)
	Update(ctx context.Context, id string, tenantID string, params service.UpdateSubscriptionParams) (*domain.Subscription, error)
	Delete(ctx context.Context, id string, tenantID string) error
	ListDeliveries(ctx context.Context, params repository.ListDeliveriesParams) ([]domain.DeliveryRecord, int64, error)
}

type TestFirer interface {
	TestFire(ctx context.Context, subscriptionID string, tenantID string) error
}

type SubscriptionHandler struct {
	registry  SubscriptionRegistry
	testFirer TestFirer
}

func NewSubscriptionHandler(registry SubscriptionRegistry, testFirer TestFirer) (*SubscriptionHandler, error) {
	if registry == nil {
		return nil, fmt.Errorf("subscription registry is required")
	}
	if testFirer == nil {
		return nil, fmt.Errorf("test firer is required")
	}
	return &SubscriptionHandler{registry: registry, testFirer: testFirer}, nil
}

func RegisterSubscriptionRoutes(router fiber.Router, registry SubscriptionRegistry, testFirer TestFirer) error {
	h, err := NewSubscriptionHandler(registry, testFirer)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/tenants/:tenantId/subscriptions", h.ListSubscriptions)
	v1.Post("/tenants/:tenantId/subscriptions", h.CreateSubscription)
	v1.Get("/tenants/:tenantId/subscriptions/:id", h.GetSubscription)
	v1.Patch("/tenants/:tenantId/subscriptions/:id", h.UpdateSubscription)
	v1.Delete("/tenants/:tenantId/subscriptions/:id", h.DeleteSubscription)
	v1.Post("/tenants/:tenantId/subscriptions/:id/test", h.TestFireSubscription)
	v1.Get("/tenants/:tenantId/subscriptions/:id/deliveries", h.ListDeliveries)

	return nil
}

type createSubscriptionRequest struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Description string   `json:"description"`
	Origin      string   `json:"origin,omitempty"`
}

type updateSubscriptionRequest struct {
	URL         *string  `json:"url,omitempty"`
	Events      []string `json:"events,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	Description *string  `json:"description,omitempty"`
}

type subscriptionResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	URL         string    `json:"url"`
	Secret      string    `json:"secret"`
	Events      []string  `json:"events"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	Origin      string    `json:"origin"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type deliveryResponse struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscriptionId"`
	EventType      string     `json:"eventType"`
	Payload        string     `json:"payload"`
	Status         string     `json:"status"`
	ResponseCode   *int       `json:"responseCode,omitempty"`
	ResponseBody   *string    `json:"responseBody,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
	Attempts       int        `json:"attempts"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *SubscriptionHandler) ListSubscriptions(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	subscriptions, err := h.registry.List(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]subscriptionResponse, 0, len(subscriptions))
	for i := range subscriptions {
		responses = append(responses, toSubscriptionResponse(&subscriptions[i], true))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *SubscriptionHandler) CreateSubscription(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	events, err := parseEventTypes(req.Events)
	if err != nil {
		return toHTTPError(err)
	}

	params := service.CreateSubscriptionParams{
		URL:         req.URL,
		Events:      events,
		Description: strings.TrimSpace(req.Description),
	}
	if raw := strings.TrimSpace(req.Origin); raw != "" {
		origin, err := domain.ParseOriginFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.Origin = origin
	}

	created, err := h.registry.Create(c.Context(), tenantID, params)
	if err != nil {
		return toHTTPError(err)
	}

	// The one response that carries the unmasked secret.
	return c.Status(fiber.StatusCreated).JSON(toSubscriptionResponse(created, false))
}

func (h *SubscriptionHandler) GetSubscription(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	sub, err := h.registry.Get(c.Context(), subscriptionIDParam(c), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toSubscriptionResponse(sub, true))
}

func (h *SubscriptionHandler) UpdateSubscription(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req updateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.UpdateSubscriptionParams{
		URL:         req.URL,
		Active:      req.Active,
		Description: req.Description,
	}
	if req.Events != nil {
		events, err := parseEventTypes(req.Events)
		if err != nil {
			return toHTTPError(err)
		}
		params.Events = events
	}

	updated, err := h.registry.Update(c.Context(), subscriptionIDParam(c), tenantID, params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toSubscriptionResponse(updated, true))
}

func (h *SubscriptionHandler) DeleteSubscription(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.registry.Delete(c.Context(), subscriptionIDParam(c), tenantID); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SubscriptionHandler) TestFireSubscription(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	id := subscriptionIDParam(c)
	if err := h.testFirer.TestFire(c.Context(), id, tenantID); err != nil {
		return toHTTPError(err)
	}

	// Spawn success only; the delivery outcome lands in the ledger.
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"subscriptionId": id,
		"status":         "accepted",
	})
}

func (h *SubscriptionHandler) ListDeliveries(c *fiber.Ctx) error {
	tenantID, err := requestTenantID(c)
	if err != nil {
		return toHTTPError(err)
	}

	params, err := parseListDeliveriesParams(c)
	if err != nil {
		return toHTTPError(err)
	}
	params.SubscriptionID = subscriptionIDParam(c)
	params.TenantID = tenantID

	records, total, err := h.registry.ListDeliveries(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]deliveryResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toDeliveryResponse(&records[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListDeliveriesParams(c *fiber.Ctx) (repository.ListDeliveriesParams, error) {
	params := repository.ListDeliveriesParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListDeliveriesParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListDeliveriesParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseDeliveryStatusFromString(rawStatus)
		if err != nil {
			return repository.ListDeliveriesParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func parseEventTypes(raw []string) ([]domain.EventType, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one event type is required", domain.ErrValidation)
	}

	events := make([]domain.EventType, 0, len(raw))
	for _, s := range raw {
		et, err := domain.ParseEventTypeFromString(s)
		if err != nil {
			return nil, err
		}
		events = append(events, et)
	}
	return events, nil
}

func requestTenantID(c *fiber.Ctx) (string, error) {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	return tenantID, nil
}

func subscriptionIDParam(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Params("id"))
}

func toSubscriptionResponse(s *domain.Subscription, maskSecret bool) subscriptionResponse {
	if s == nil {
		return subscriptionResponse{}
	}

	secret := s.Secret
	if maskSecret {
		secret = signature.MaskSecret(secret)
	}

	events := make([]string, 0, len(s.Events))
	for _, et := range s.Events {
		events = append(events, et.String())
	}

	return subscriptionResponse{
		ID:          s.ID,
		TenantID:    s.TenantID,
		URL:         s.URL,
		Secret:      secret,
		Events:      events,
		Active:      s.Active,
		Description: s.Description,
		Origin:      s.Origin.String(),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toDeliveryResponse(d *domain.DeliveryRecord) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}

	return deliveryResponse{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		EventType:      d.EventType.String(),
		Payload:        d.Payload,
		Status:         d.Status.String(),
		ResponseCode:   d.ResponseCode,
		ResponseBody:   d.ResponseBody,
		LastError:      d.LastError,
		Attempts:       d.Attempts,
		CreatedAt:      d.CreatedAt,
		LastAttemptAt:  d.LastAttemptAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
