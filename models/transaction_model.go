package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentTransaction records one payment or refund attempt against the
// gateway. BookingID is null for the deferred flow until the callback that
// confirms payment materializes the booking.
type PaymentTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	BookingID       *uuid.UUID `gorm:"index"`
	TransactionCode string     `gorm:"size:40;uniqueIndex;not null"`
	OrderCode       string     `gorm:"size:64"`
	Amount          float64    `gorm:"type:numeric(14,2);not null"`
	Method          string     `gorm:"size:30;not null"`
	Kind            string     `gorm:"size:10;not null"` // payment, refund
	Status          string     `gorm:"size:10;not null;default:'pending'"`
	OrderInfo       string     `gorm:"type:text"` // encoded order descriptor, round-tripped through the gateway
	GatewayMeta     *string    `gorm:"type:text"` // raw callback payload as received

	Booking *Booking `gorm:"foreignkey:BookingID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
