package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// DiscountGrant is a coupon (global code) or voucher (code scoped to EventID).
type DiscountGrant struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Kind       enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	EventID    *uuid.UUID         `gorm:"column:event_id;type:uuid"`
	Code       string             `gorm:"column:code;type:text;not null"`
	Value      int64              `gorm:"column:value;not null"`
	UsageLimit int                `gorm:"column:usage_limit;not null"`
	UsedCount  int                `gorm:"column:used_count;not null;default:0"`
	StartsAt   time.Time          `gorm:"column:starts_at;not null"`
	EndsAt     time.Time          `gorm:"column:ends_at;not null"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  *time.Time         `gorm:"column:deleted_at"`
}

func (g *DiscountGrant) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Lifecycle exposes the soft-delete state.
func (g DiscountGrant) Lifecycle() lifecycle.State {
	return lifecycle.FromColumn(g.DeletedAt)
}

// ActiveAt reports whether now falls inside the inclusive active window.
func (g DiscountGrant) ActiveAt(now time.Time) bool {
	return !now.Before(g.StartsAt) && !now.After(g.EndsAt)
}

// DiscountUsage is a user's consumption state of one grant.
type DiscountUsage struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	GrantID   uuid.UUID         `gorm:"column:grant_id;type:uuid;not null"`
	Status    enums.UsageStatus `gorm:"column:status;type:text;not null"`
	ExpiresAt *time.Time        `gorm:"column:expires_at"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *DiscountUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ExpiredAt reports whether the record carries an expiry that now has passed.
func (u DiscountUsage) ExpiredAt(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}
