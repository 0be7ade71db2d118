package models

import (
	"time"

	"github.com/google/uuid"
)

type Booking struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	GuestID     uuid.UUID `gorm:"not null;index"`
	RoomID      uuid.UUID `gorm:"not null;index"`
	CheckIn     time.Time `gorm:"not null"`
	CheckOut    time.Time `gorm:"not null"`
	TotalAmount float64   `gorm:"type:numeric(14,2);not null"`
	Status      string    `gorm:"size:30;not null;default:'awaiting_deposit'"`

	Guest User `gorm:"foreignkey:GuestID"`
	Room  Room `gorm:"foreignkey:RoomID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
