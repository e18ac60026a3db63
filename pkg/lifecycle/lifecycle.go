// Package lifecycle models soft deletion as an explicit Active | Deleted(at) state.
package lifecycle

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// State is either Active or Deleted at a point in time. The zero value is Active.
type State struct {
	deletedAt time.Time
	deleted   bool
}

// Active returns the live state.
func Active() State {
	return State{}
}

// Deleted returns the state of a row soft-deleted at the given time.
func Deleted(at time.Time) State {
	return State{deletedAt: at.UTC(), deleted: true}
}

// FromColumn converts the nullable deleted_at column into a State.
func FromColumn(deletedAt *time.Time) State {
	if deletedAt == nil {
		return Active()
	}
	return Deleted(*deletedAt)
}

// Column converts the state back into the nullable deleted_at column value.
func (s State) Column() *time.Time {
	if !s.deleted {
		return nil
	}
	at := s.deletedAt
	return &at
}

func (s State) IsActive() bool {
	return !s.deleted
}

// DeletedAt returns the deletion time and whether the row is deleted.
func (s State) DeletedAt() (time.Time, bool) {
	return s.deletedAt, s.deleted
}

func (s State) String() string {
	if !s.deleted {
		return "active"
	}
	return fmt.Sprintf("deleted(%s)", s.deletedAt.Format(time.RFC3339))
}

// Alive scopes a query to rows of table that have not been soft-deleted.
func Alive(table string) func(*gorm.DB) *gorm.DB {
	column := "deleted_at"
	if table != "" {
		column = table + ".deleted_at"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column + " IS NULL")
	}
}
