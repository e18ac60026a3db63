package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// Offering is a ticket tier. Available is owned by the inventory ledger.
type Offering struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID  `gorm:"column:event_id;type:uuid;not null"`
	Name          string     `gorm:"column:name;type:text;not null"`
	UnitPrice     int64      `gorm:"column:unit_price;not null"`
	TotalCapacity int        `gorm:"column:total_capacity;not null"`
	Available     int        `gorm:"column:available;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     *time.Time `gorm:"column:deleted_at"`
}

func (o *Offering) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Lifecycle exposes the soft-delete state.
func (o Offering) Lifecycle() lifecycle.State {
	return lifecycle.FromColumn(o.DeletedAt)
}

// IsFree reports whether the tier costs nothing.
func (o Offering) IsFree() bool {
	return o.UnitPrice == 0
}
