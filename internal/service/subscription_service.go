package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldline/webhook-engine/internal/domain"
	"github.com/fieldline/webhook-engine/internal/repository"
	"github.com/fieldline/webhook-engine/internal/signature"
)

// CreateSubscriptionParams carries a create request past boundary parsing.
type CreateSubscriptionParams struct {
	URL         string
	Events      []domain.EventType
	Description string
	Origin      domain.Origin
}

// UpdateSubscriptionParams is a partial update; nil fields are left untouched.
type UpdateSubscriptionParams struct {
	URL         *string
	Events      []domain.EventType
	Active      *bool
	Description *string
}

// SubscriptionService is the webhook registry: tenant-scoped CRUD over
// subscriptions plus ledger reads. Validation happens here, before any write;
// nothing invalid ever reaches the delivery worker.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	deliveries    repository.DeliveryRepository
	logger        *zap.Logger
	now           func() time.Time
	newSecret     func() (string, error)
}

func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	deliveries repository.DeliveryRepository,
	logger *zap.Logger,
) (*SubscriptionService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubscriptionService{
		subscriptions: subscriptions,
		deliveries:    deliveries,
		logger:        logger,
		now:           time.Now,
		newSecret:     signature.NewSecret,
	}, nil
}

func (s *SubscriptionService) List(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	return s.subscriptions.List(ctx, tenantID)
}

func (s *SubscriptionService) Get(ctx context.Context, id string, tenantID string) (*domain.Subscription, error) {
	return s.subscriptions.GetByID(ctx, id, tenantID)
}

// Create registers a subscription and generates its secret. The returned
// subscription carries the unmasked secret; this is the only read that ever
// does.
func (s *SubscriptionService) Create(ctx context.Context, tenantID string, params CreateSubscriptionParams) (*domain.Subscription, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	origin := params.Origin
	if origin == "" {
		origin = domain.OriginManual
	}

	secret, err := s.newSecret()
	if err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	sub := &domain.Subscription{
		ID:          uuid.NewString(),
		TenantID:    strings.TrimSpace(tenantID),
		URL:         strings.TrimSpace(params.URL),
		Secret:      secret,
		Events:      params.Events,
		Active:      true,
		Description: params.Description,
		Origin:      origin,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription created",
		zap.String("subscriptionId", sub.ID),
		zap.String("tenantId", sub.TenantID),
		zap.Int("events", len(sub.Events)),
		zap.String("origin", sub.Origin.String()),
	)

	return sub, nil
}

// Update applies a partial mutation. A subscription owned by another tenant
// is reported as not found, identically to a nonexistent id.
func (s *SubscriptionService) Update(ctx context.Context, id string, tenantID string, params UpdateSubscriptionParams) (*domain.Subscription, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	sub, err := s.subscriptions.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if params.URL != nil {
		sub.URL = strings.TrimSpace(*params.URL)
	}
	if params.Events != nil {
		sub.Events = params.Events
	}
	if params.Active != nil {
		sub.Active = *params.Active
	}
	if params.Description != nil {
		sub.Description = *params.Description
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	sub.UpdatedAt = s.now().UTC()
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Delete removes the subscription and its entire delivery ledger. The secret
// is gone with it; rotation is delete and recreate.
func (s *SubscriptionService) Delete(ctx context.Context, id string, tenantID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.subscriptions.Delete(ctx, id, tenantID); err != nil {
		return err
	}

	s.logger.Info("subscription deleted",
		zap.String("subscriptionId", id),
		zap.String("tenantId", tenantID),
	)
	return nil
}

// ListDeliveries returns ledger rows for one subscription, newest first.
func (s *SubscriptionService) ListDeliveries(ctx context.Context, params repository.ListDeliveriesParams) ([]domain.DeliveryRecord, int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Resolve the subscription first so a foreign tenant gets the same
	// not-found as a bogus id, instead of an empty page.
	if _, err := s.subscriptions.GetByID(ctx, params.SubscriptionID, params.TenantID); err != nil {
		return nil, 0, err
	}

	return s.deliveries.ListBySubscription(ctx, params)
}
