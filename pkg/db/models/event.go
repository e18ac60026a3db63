package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// Event is the catalog entry offerings hang off. SellerID is the organizer.
type Event struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SellerID  uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Name      string            `gorm:"column:name;type:text;not null"`
	Status    enums.EventStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	StartsAt  time.Time         `gorm:"column:starts_at;not null"`
	EndsAt    time.Time         `gorm:"column:ends_at;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time        `gorm:"column:deleted_at"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Lifecycle exposes the soft-delete state.
func (e Event) Lifecycle() lifecycle.State {
	return lifecycle.FromColumn(e.DeletedAt)
}
