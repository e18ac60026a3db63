package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tixmarket-backend/pkg/lifecycle"
)

// User is the buyer/seller identity plus the loyalty points balance it owns.
type User struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name           string     `gorm:"column:name;type:text;not null"`
	PointsBalance  int64      `gorm:"column:points_balance;not null;default:0"`
	PointsExpireAt *time.Time `gorm:"column:points_expire_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      *time.Time `gorm:"column:deleted_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Lifecycle exposes the soft-delete state.
func (u User) Lifecycle() lifecycle.State {
	return lifecycle.FromColumn(u.DeletedAt)
}
