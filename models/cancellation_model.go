package models

import (
	"time"

	"github.com/google/uuid"
)

type CancellationRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BookingID     uuid.UUID `gorm:"not null;index"`
	Reason        string    `gorm:"type:text"`
	RefundAmount  float64   `gorm:"type:numeric(14,2);not null"`
	PenaltyAmount float64   `gorm:"type:numeric(14,2);not null"`
	Status        string    `gorm:"size:12;not null;default:'pending'"` // pending, refunded, no_refund, rejected
	RequestedByID uuid.UUID `gorm:"not null"`

	Booking Booking `gorm:"foreignkey:BookingID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
