package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldline/webhook-engine/internal/domain"
	"github.com/fieldline/webhook-engine/internal/observability"
	"github.com/fieldline/webhook-engine/internal/ratelimit"
	"github.com/fieldline/webhook-engine/internal/repository"
	"github.com/fieldline/webhook-engine/internal/sender"
	"github.com/fieldline/webhook-engine/internal/signature"
)

const (
	// maxDeliveryAttempts bounds HTTP tries per delivery task.
	maxDeliveryAttempts = 3

	// maxCapturedBytes caps response bodies and error strings in the ledger.
	maxCapturedBytes = 1000
)

// retryDelays is the wait before attempt N+1. The explicit table, not a
// formula, is the contract: receivers and operators can rely on the exact
// schedule.
var retryDelays = [...]time.Duration{
	1 * time.Second,
	5 * time.Second,
	25 * time.Second,
}

// DeliveryTask is one unit of delivery work: one subscription, one event
// firing. It carries its own snapshot of url/secret taken at spawn time, so a
// subscription deleted mid-flight does not abort the task.
type DeliveryTask struct {
	SubscriptionID string
	TenantID       string
	URL            string
	Secret         string
	EventType      domain.EventType
	Data           any
}

// envelope is the wire format. The serialized bytes are captured once; the
// same byte sequence is signed, transmitted, and snapshotted in the ledger.
type envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// DeliveryWorker runs delivery tasks to completion: sign, POST, record, retry.
// It never surfaces delivery failure to its invoker; every outcome lands in
// the ledger and the log.
type DeliveryWorker struct {
	deliveries  repository.DeliveryRepository
	sender      sender.Sender
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDeliveryWorker(
	deliveries repository.DeliveryRepository,
	snd sender.Sender,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		deliveries:  deliveries,
		sender:      snd,
		rateLimiter: rateLimiter,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Deliver runs one delivery task to a terminal state. All failures are
// contained here; the spawn site never observes them.
func (w *DeliveryWorker) Deliver(ctx context.Context, task DeliveryTask) {
	if ctx == nil {
		ctx = context.Background()
	}

	eventLabel := task.EventType.String()
	if w.metrics != nil {
		w.metrics.IncWorkerInFlight()
		defer w.metrics.DecWorkerInFlight()
	}

	body, err := json.Marshal(envelope{
		Event:     eventLabel,
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Data:      task.Data,
	})
	if err != nil {
		w.logger.Error("failed to serialize delivery envelope",
			zap.String("subscriptionId", task.SubscriptionID),
			zap.String("eventType", eventLabel),
			zap.Error(err),
		)
		return
	}

	record := &domain.DeliveryRecord{
		ID:             uuid.NewString(),
		SubscriptionID: task.SubscriptionID,
		TenantID:       task.TenantID,
		EventType:      task.EventType,
		Payload:        string(body),
		Status:         domain.DeliveryStatusPending,
		Attempts:       0,
		CreatedAt:      w.now().UTC(),
	}
	if err := w.deliveries.Create(ctx, record); err != nil {
		w.logger.Error("failed to create delivery record",
			zap.String("subscriptionId", task.SubscriptionID),
			zap.String("eventType", eventLabel),
			zap.Error(err),
		)
		return
	}

	logger := w.logger.With(
		zap.String("deliveryId", record.ID),
		zap.String("subscriptionId", task.SubscriptionID),
		zap.String("tenantId", task.TenantID),
		zap.String("eventType", eventLabel),
	)

	sig := signature.Sign(body, task.Secret)

	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		if attempt > 1 {
			if err := w.sleep(ctx, retryDelays[attempt-2]); err != nil {
				logger.Warn("retry wait interrupted", zap.Error(err))
				return
			}
			if w.metrics != nil {
				w.metrics.IncRetry(eventLabel)
			}
		}

		if w.rateLimiter != nil {
			if err := w.rateLimiter.Wait(ctx, task.TenantID); err != nil {
				// A broken limiter must not stall deliveries.
				logger.Warn("rate limiter wait failed, proceeding", zap.Error(err))
			}
		}

		sendStart := w.now()
		resp, sendErr := w.sender.Send(ctx, sender.Request{
			URL:        task.URL,
			Body:       body,
			Signature:  sig,
			EventType:  eventLabel,
			DeliveryID: record.ID,
		})
		if w.metrics != nil {
			w.metrics.ObserveDeliveryAttemptDuration(eventLabel, w.now().Sub(sendStart))
		}

		record.Attempts = attempt
		lastAttemptAt := w.now().UTC()
		record.LastAttemptAt = &lastAttemptAt

		if sendErr != nil {
			record.ResponseCode = nil
			record.ResponseBody = nil
			record.LastError = truncatePtr(sendErr.Error())
		} else {
			code := resp.StatusCode
			record.ResponseCode = &code
			record.ResponseBody = truncatePtr(resp.Body)
			record.LastError = nil
		}

		if sendErr == nil && resp.Accepted() {
			record.Status = domain.DeliveryStatusSuccess
			w.persist(ctx, logger, record)
			if w.metrics != nil {
				w.metrics.IncDeliveryCompleted(eventLabel, "success")
			}
			logger.Info("webhook delivered",
				zap.Int("attempts", attempt),
				zap.Int("responseCode", resp.StatusCode),
			)
			return
		}

		if attempt == maxDeliveryAttempts {
			record.Status = domain.DeliveryStatusFailed
			w.persist(ctx, logger, record)
			if w.metrics != nil {
				w.metrics.IncDeliveryCompleted(eventLabel, "failed")
			}
			logger.Warn("webhook delivery failed permanently",
				zap.Int("attempts", attempt),
				zap.Error(sendErr),
			)
			return
		}

		// Not terminal yet: keep the record pending and try again.
		w.persist(ctx, logger, record)
	}
}

// persist writes the record's current state. A missing row means the
// subscription was deleted mid-flight and its ledger was cascade-cleaned;
// the task carries on regardless, per the documented race.
func (w *DeliveryWorker) persist(ctx context.Context, logger *zap.Logger, record *domain.DeliveryRecord) {
	if err := w.deliveries.Update(ctx, record); err != nil {
		logger.Warn("failed to update delivery record", zap.Error(err))
	}
}

func truncatePtr(s string) *string {
	if len(s) > maxCapturedBytes {
		s = s[:maxCapturedBytes]
	}
	return &s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
