package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantAggregateRoot is the identity and bookkeeping embedded in every
// tenant-owned aggregate. Version starts at 1 and is advanced by the
// repository on each optimistic-locked save.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenantAggregateRoot assigns a fresh ID owned by tenantID
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now().UTC()
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a modification
func (a *TenantAggregateRoot) Touch() {
	a.UpdatedAt = time.Now().UTC()
}

// OwnedBy reports whether the aggregate belongs to tenantID
func (a *TenantAggregateRoot) OwnedBy(tenantID uuid.UUID) bool {
	return a.TenantID == tenantID
}
