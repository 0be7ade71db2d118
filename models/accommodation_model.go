package models

import (
	"time"

	"github.com/google/uuid"
)

type Accommodation struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	HostID    uuid.UUID `gorm:"not null"`
	Name      string    `gorm:"size:255;not null"`
	Address   string    `gorm:"size:255"`
	BasePrice *float64  `gorm:"type:numeric(14,2)"` // per-night fallback when a room has no price of its own

	Host User `gorm:"foreignkey:HostID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
