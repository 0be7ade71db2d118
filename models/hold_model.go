package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomHold is an advisory, time-boxed reservation on a room/date-range.
// It blocks conflicting holds and bookings while a payment is in flight;
// the booking itself is only created once payment succeeds.
type RoomHold struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Token       string    `gorm:"size:64;uniqueIndex;not null"`
	RoomID      uuid.UUID `gorm:"not null;index"`
	CheckIn     time.Time `gorm:"not null"`
	CheckOut    time.Time `gorm:"not null"`
	OwnerUserID uuid.UUID `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`

	Room Room `gorm:"foreignkey:RoomID"`

	CreatedAt time.Time
}
