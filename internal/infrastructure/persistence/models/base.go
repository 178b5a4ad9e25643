package models

import (
	"time"

	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateModel holds the columns shared by every aggregate table. The
// tenant_id column lives on each model so it can lead that table's
// composite unique index.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func aggregateModel(root shared.TenantAggregateRoot) AggregateModel {
	return AggregateModel{
		ID:        root.ID,
		Version:   root.Version,
		CreatedAt: root.CreatedAt,
		UpdatedAt: root.UpdatedAt,
	}
}

func (m AggregateModel) root(tenantID uuid.UUID) shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		ID:        m.ID,
		TenantID:  tenantID,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
