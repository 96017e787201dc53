package service

import (
	"context"
	"sync"

	"github.com/fieldline/webhook-engine/internal/domain"
	"github.com/fieldline/webhook-engine/internal/repository"
	"github.com/fieldline/webhook-engine/internal/sender"
)

type fakeSubscriptionRepo struct {
	createFn     func(ctx context.Context, s *domain.Subscription) error
	getByIDFn    func(ctx context.Context, id string, tenantID string) (*domain.Subscription, error)
	listFn       func(ctx context.Context, tenantID string) ([]domain.Subscription, error)
	listActiveFn func(ctx context.Context, tenantID string) ([]domain.Subscription, error)
	updateFn     func(ctx context.Context, s *domain.Subscription) error
	deleteFn     func(ctx context.Context, id string, tenantID string) error
}

func (f *fakeSubscriptionRepo) Create(ctx context.Context, s *domain.Subscription) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, s)
}

func (f *fakeSubscriptionRepo) GetByID(ctx context.Context, id string, tenantID string) (*domain.Subscription, error) {
	if f.getByIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByIDFn(ctx, id, tenantID)
}

func (f *fakeSubscriptionRepo) List(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, tenantID)
}

func (f *fakeSubscriptionRepo) ListActive(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	if f.listActiveFn == nil {
		return nil, nil
	}
	return f.listActiveFn(ctx, tenantID)
}

func (f *fakeSubscriptionRepo) Update(ctx context.Context, s *domain.Subscription) error {
	if f.updateFn == nil {
		return nil
	}
	return f.updateFn(ctx, s)
}

func (f *fakeSubscriptionRepo) Delete(ctx context.Context, id string, tenantID string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id, tenantID)
}

// memoryDeliveryRepo records creates and every in-place update, so tests can
// assert on the full mutation history of a ledger row.
type memoryDeliveryRepo struct {
	mu       sync.Mutex
	created  []domain.DeliveryRecord
	updates  []domain.DeliveryRecord
	updateFn func(ctx context.Context, d *domain.DeliveryRecord) error
}

func (f *memoryDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *d)
	return nil
}

func (f *memoryDeliveryRepo) Update(ctx context.Context, d *domain.DeliveryRecord) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *d)
	return nil
}

func (f *memoryDeliveryRepo) GetByID(ctx context.Context, id string, tenantID string) (*domain.DeliveryRecord, error) {
	return nil, domain.ErrNotFound
}

func (f *memoryDeliveryRepo) ListBySubscription(ctx context.Context, params repository.ListDeliveriesParams) ([]domain.DeliveryRecord, int64, error) {
	return nil, 0, nil
}

func (f *memoryDeliveryRepo) lastUpdate() *domain.DeliveryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	last := f.updates[len(f.updates)-1]
	return &last
}

type fakeSender struct {
	mu       sync.Mutex
	requests []sender.Request
	sendFn   func(ctx context.Context, req sender.Request) (*sender.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, req sender.Request) (*sender.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.sendFn == nil {
		return &sender.Response{StatusCode: 200, Body: "ok"}, nil
	}
	return f.sendFn(ctx, req)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, tenantID string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, tenantID string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, tenantID)
}

// fakeDeliverer captures spawned tasks and signals each arrival.
type fakeDeliverer struct {
	mu      sync.Mutex
	tasks   []DeliveryTask
	arrived chan struct{}
	block   chan struct{}
}

func newFakeDeliverer(capacity int) *fakeDeliverer {
	return &fakeDeliverer{arrived: make(chan struct{}, capacity)}
}

func (f *fakeDeliverer) Deliver(ctx context.Context, task DeliveryTask) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	if f.arrived != nil {
		f.arrived <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeDeliverer) snapshot() []DeliveryTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := make([]DeliveryTask, len(f.tasks))
	copy(tasks, f.tasks)
	return tasks
}
