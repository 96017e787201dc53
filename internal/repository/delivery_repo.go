package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fieldline/webhook-engine/internal/domain"
)

type ListDeliveriesParams struct {
	SubscriptionID string
	TenantID       string
	Status         *domain.DeliveryStatus
	Page           int
	PageSize       int
}

// DeliveryRepository is the delivery ledger store. Each record is created once
// per delivery task and updated in place across that task's HTTP tries; the
// task owns its record exclusively until it reaches a terminal status, so no
// additional locking is layered over the row-level atomic update.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.DeliveryRecord) error
	Update(ctx context.Context, d *domain.DeliveryRecord) error
	GetByID(ctx context.Context, id string, tenantID string) (*domain.DeliveryRecord, error)
	ListBySubscription(ctx context.Context, params ListDeliveriesParams) ([]domain.DeliveryRecord, int64, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.DeliveryRecord) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRepo) Update(ctx context.Context, d *domain.DeliveryRecord) error {
	if d == nil {
		return domain.ErrNotFound
	}

	model := deliveryModelFromDomain(d)
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":          model.Status,
			"response_code":   model.ResponseCode,
			"response_body":   model.ResponseBody,
			"last_error":      model.LastError,
			"attempts":        model.Attempts,
			"last_attempt_at": model.LastAttemptAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Subscription deleted mid-flight cascades its records away; the
		// in-flight task finishes against a row that no longer exists.
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string, tenantID string) (*domain.DeliveryRecord, error) {
	var model DeliveryRecordModel
	err := r.db.WithContext(ctx).
		First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) ListBySubscription(ctx context.Context, params ListDeliveriesParams) ([]domain.DeliveryRecord, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("subscription_id = ? AND tenant_id = ?", params.SubscriptionID, params.TenantID)

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []DeliveryRecordModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}

	return records, total, nil
}
