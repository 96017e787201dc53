package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldline/webhook-engine/internal/domain"
)

// SubscriptionModel is the persistence model for the subscriptions table.
// Events are stored as a JSON array; the catalog is small and the dispatcher
// filters in memory, so no per-element index is needed.
type SubscriptionModel struct {
	ID          string        `gorm:"type:uuid;primaryKey"`
	TenantID    string        `gorm:"type:varchar(64);not null;index"`
	URL         string        `gorm:"type:text;not null"`
	Secret      string        `gorm:"type:varchar(128);not null"`
	Events      string        `gorm:"type:jsonb;not null"`
	Active      bool          `gorm:"not null;default:true"`
	Description string        `gorm:"type:text"`
	Origin      domain.Origin `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// DeliveryRecordModel is the persistence model for delivery_records.
type DeliveryRecordModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	SubscriptionID string                `gorm:"type:uuid;not null"`
	TenantID       string                `gorm:"type:varchar(64);not null"`
	EventType      domain.EventType      `gorm:"type:varchar(40);not null"`
	Payload        string                `gorm:"type:text;not null"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	ResponseCode   *int                  `gorm:"type:int"`
	ResponseBody   *string               `gorm:"type:text"`
	LastError      *string               `gorm:"type:text"`
	Attempts       int                   `gorm:"not null;default:0"`
	CreatedAt      time.Time
	LastAttemptAt  *time.Time
}

func (DeliveryRecordModel) TableName() string {
	return "delivery_records"
}

func subscriptionModelFromDomain(s *domain.Subscription) (*SubscriptionModel, error) {
	if s == nil {
		return nil, nil
	}

	events, err := json.Marshal(s.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode events: %w", err)
	}

	return &SubscriptionModel{
		ID:          s.ID,
		TenantID:    s.TenantID,
		URL:         s.URL,
		Secret:      s.Secret,
		Events:      string(events),
		Active:      s.Active,
		Description: s.Description,
		Origin:      s.Origin,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

func subscriptionModelToDomain(m *SubscriptionModel) (*domain.Subscription, error) {
	if m == nil {
		return nil, nil
	}

	var events []domain.EventType
	if err := json.Unmarshal([]byte(m.Events), &events); err != nil {
		return nil, fmt.Errorf("failed to decode events for subscription %s: %w", m.ID, err)
	}

	return &domain.Subscription{
		ID:          m.ID,
		TenantID:    m.TenantID,
		URL:         m.URL,
		Secret:      m.Secret,
		Events:      events,
		Active:      m.Active,
		Description: m.Description,
		Origin:      m.Origin,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func deliveryModelFromDomain(d *domain.DeliveryRecord) *DeliveryRecordModel {
	if d == nil {
		return nil
	}

	return &DeliveryRecordModel{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		TenantID:       d.TenantID,
		EventType:      d.EventType,
		Payload:        d.Payload,
		Status:         d.Status,
		ResponseCode:   d.ResponseCode,
		ResponseBody:   d.ResponseBody,
		LastError:      d.LastError,
		Attempts:       d.Attempts,
		CreatedAt:      d.CreatedAt,
		LastAttemptAt:  d.LastAttemptAt,
	}
}

func deliveryModelToDomain(m *DeliveryRecordModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		ID:             m.ID,
		SubscriptionID: m.SubscriptionID,
		TenantID:       m.TenantID,
		EventType:      m.EventType,
		Payload:        m.Payload,
		Status:         m.Status,
		ResponseCode:   m.ResponseCode,
		ResponseBody:   m.ResponseBody,
		LastError:      m.LastError,
		Attempts:       m.Attempts,
		CreatedAt:      m.CreatedAt,
		LastAttemptAt:  m.LastAttemptAt,
	}
}
