package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fieldline/webhook-engine/internal/domain"
	"github.com/fieldline/webhook-engine/internal/observability"
	"github.com/fieldline/webhook-engine/internal/repository"
)

const (
	minDispatcherConcurrency     = 1
	defaultDispatcherConcurrency = 64
)

// Deliverer runs a single delivery task to completion.
type Deliverer interface {
	Deliver(ctx context.Context, task DeliveryTask)
}

// Dispatcher fans one event firing out to every matching active subscription.
// Fire is fire-and-forget: it spawns one independent task per match and
// returns without waiting on any of them, and it never raises to the domain
// action that triggered the event.
type Dispatcher struct {
	subscriptions repository.SubscriptionRepository
	worker        Deliverer
	logger        *zap.Logger
	metrics       *observability.Metrics

	// sem bounds concurrent delivery tasks. A spawned goroutine blocks on
	// the slot; the Fire caller never does.
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewDispatcher(
	subscriptions repository.SubscriptionRepository,
	worker Deliverer,
	concurrency int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if worker == nil {
		return nil, fmt.Errorf("delivery worker is required")
	}
	if concurrency < minDispatcherConcurrency {
		concurrency = defaultDispatcherConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		subscriptions: subscriptions,
		worker:        worker,
		logger:        logger,
		sem:           semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Fire looks up the tenant's active subscriptions for eventType and spawns
// one delivery task per match. Zero matches means zero side effects; no
// ledger row exists for a task that was never spawned.
func (d *Dispatcher) Fire(ctx context.Context, tenantID string, eventType domain.EventType, payload any) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !eventType.IsValid() {
		d.logger.Error("refusing to fire unknown event type",
			zap.String("tenantId", tenantID),
			zap.String("eventType", eventType.String()),
		)
		return
	}

	subscriptions, err := d.subscriptions.ListActive(ctx, tenantID)
	if err != nil {
		d.logger.Error("failed to list subscriptions for dispatch",
			zap.String("tenantId", tenantID),
			zap.String("eventType", eventType.String()),
			zap.Error(err),
		)
		return
	}

	matched := 0
	for i := range subscriptions {
		sub := subscriptions[i]
		if !sub.Wants(eventType) {
			continue
		}
		matched++

		d.spawn(DeliveryTask{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
			URL:            sub.URL,
			Secret:         sub.Secret,
			EventType:      eventType,
			Data:           payload,
		})
	}

	if d.metrics != nil {
		d.metrics.ObserveDispatchFanout(eventType.String(), matched)
	}

	d.logger.Debug("event dispatched",
		zap.String("tenantId", tenantID),
		zap.String("eventType", eventType.String()),
		zap.Int("matched", matched),
	)
}

// TestFire spawns a single synthetic delivery for one subscription, bypassing
// the event filter entirely. It reports whether the task was spawned, never
// whether the delivery eventually succeeded.
func (d *Dispatcher) TestFire(ctx context.Context, subscriptionID string, tenantID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sub, err := d.subscriptions.GetByID(ctx, subscriptionID, tenantID)
	if err != nil {
		return err
	}

	d.spawn(DeliveryTask{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		URL:            sub.URL,
		Secret:         sub.Secret,
		EventType:      domain.EventTestFire,
		Data: map[string]any{
			"test":           true,
			"subscriptionId": sub.ID,
			"tenantId":       sub.TenantID,
			"message":        "This is a test delivery. Your endpoint is reachable.",
		},
	})

	return nil
}

func (d *Dispatcher) spawn(task DeliveryTask) {
	// Tasks run on a fresh context: the domain action that fired the event
	// finishes long before the delivery does, and nothing cancels a task
	// once it is spawned.
	taskCtx := context.Background()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(taskCtx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		d.worker.Deliver(taskCtx, task)
	}()
}

// Close waits for in-flight delivery tasks. Tasks parked in a retry wait at
// process exit are lost; the retry schedule is not durable across restarts.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}
