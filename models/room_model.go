package models

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccommodationID uuid.UUID `gorm:"not null"`
	Name            string    `gorm:"size:120;not null"`
	MaxGuests       int       `gorm:"not null;default:2"`
	PricePerNight   *float64  `gorm:"type:numeric(14,2)"`

	Accommodation Accommodation `gorm:"foreignkey:AccommodationID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
