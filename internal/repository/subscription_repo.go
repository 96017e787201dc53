package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fieldline/webhook-engine/internal/domain"
)

// SubscriptionRepository is the tenant-scoped store of webhook registrations.
// Every read and write carries the tenant; a miss on id and a miss on tenant
// are the same ErrNotFound.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *domain.Subscription) error
	GetByID(ctx context.Context, id string, tenantID string) (*domain.Subscription, error)
	List(ctx context.Context, tenantID string) ([]domain.Subscription, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.Subscription, error)
	Update(ctx context.Context, s *domain.Subscription) error
	Delete(ctx context.Context, id string, tenantID string) error
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

func (r *GormSubscriptionRepo) Create(ctx context.Context, s *domain.Subscription) error {
	model, err := subscriptionModelFromDomain(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if s != nil {
		restored, err := subscriptionModelToDomain(model)
		if err != nil {
			return err
		}
		*s = *restored
	}
	return nil
}

func (r *GormSubscriptionRepo) GetByID(ctx context.Context, id string, tenantID string) (*domain.Subscription, error) {
	var model SubscriptionModel
	err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return subscriptionModelToDomain(&model)
}

func (r *GormSubscriptionRepo) List(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ?", tenantID))
}

func (r *GormSubscriptionRepo) ListActive(ctx context.Context, tenantID string) ([]domain.Subscription, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ? AND active = ?", tenantID, true))
}

func (r *GormSubscriptionRepo) list(ctx context.Context, query *gorm.DB) ([]domain.Subscription, error) {
	var models []SubscriptionModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	subscriptions := make([]domain.Subscription, 0, len(models))
	for i := range models {
		s, err := subscriptionModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, *s)
	}

	return subscriptions, nil
}

func (r *GormSubscriptionRepo) Update(ctx context.Context, s *domain.Subscription) error {
	model, err := subscriptionModelFromDomain(s)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("id = ? AND tenant_id = ?", model.ID, model.TenantID).
		Updates(map[string]any{
			"url":         model.URL,
			"events":      model.Events,
			"active":      model.Active,
			"description": model.Description,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete hard-deletes the subscription and cascades its delivery records in
// one transaction. Secrets are not recoverable afterwards.
func (r *GormSubscriptionRepo) Delete(ctx context.Context, id string, tenantID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("id = ? AND tenant_id = ?", id, tenantID).
			Delete(&SubscriptionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		return tx.
			Where("subscription_id = ?", id).
			Delete(&DeliveryRecordModel{}).Error
	})
}
