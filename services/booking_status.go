package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvu2810/homestay_booking/models"
)

const (
	StatusAwaitingDeposit       = "awaiting_deposit"
	StatusDeposited             = "deposited"
	StatusAwaitingCheckIn       = "awaiting_checkin"
	StatusFullyPaid             = "fully_paid"
	StatusCheckedIn             = "checked_in"
	StatusCompleted             = "completed"
	StatusCancellationRequested = "cancellation_requested"
	StatusCancelled             = "cancelled"
	StatusNoShow                = "no_show"
)

const (
	TxnStatusPending = "pending"
	TxnStatusSuccess = "success"
	TxnStatusFailed  = "failed"

	TxnKindPayment = "payment"
	TxnKindRefund  = "refund"
)

const (
	CancelStatusPending  = "pending"
	CancelStatusRefunded = "refunded"
	CancelStatusNoRefund = "no_refund"
	CancelStatusRejected = "rejected"
)

// RecomputeStatus derives the payment-driven status of a booking from the
// amount paid so far. It is pure and idempotent, so it can be re-applied
// at any time to correct drift.
func RecomputeStatus(paid, total float64) string {
	if total > 0 && paid >= total {
		return StatusFullyPaid
	}
	if paid > 0 {
		return StatusDeposited
	}
	return StatusAwaitingDeposit
}

// blockingStatuses are booking states that still occupy the room/date-range
// for availability purposes.
var blockingStatuses = []string{
	StatusAwaitingDeposit,
	StatusDeposited,
	StatusAwaitingCheckIn,
	StatusFullyPaid,
	StatusCheckedIn,
	StatusCancellationRequested,
}

// paymentDriven reports whether a status may be overwritten by RecomputeStatus.
// Operational states (checked-in and later) are never downgraded by a payment.
func paymentDriven(status string) bool {
	switch status {
	case StatusAwaitingDeposit, StatusDeposited, StatusFullyPaid:
		return true
	}
	return false
}

// acceptsPayment reports whether a booking in this status may take further
// payments. A host can park a booking in awaiting_checkin with a balance
// still outstanding, so it remains collectible.
func acceptsPayment(status string) bool {
	return paymentDriven(status) || status == StatusAwaitingCheckIn
}

// nextPaymentStatus is the status a booking lands in after its payments
// change. Payment-driven states recompute fully; awaiting_checkin only ever
// upgrades to fully_paid, never backwards; everything else is untouched.
func nextPaymentStatus(current string, paid, total float64) string {
	if paymentDriven(current) {
		return RecomputeStatus(paid, total)
	}
	if current == StatusAwaitingCheckIn && total > 0 && paid >= total {
		return StatusFullyPaid
	}
	return current
}

var transitions = map[string][]string{
	StatusAwaitingDeposit:       {StatusDeposited, StatusFullyPaid, StatusAwaitingCheckIn, StatusCancellationRequested, StatusCancelled, StatusNoShow},
	StatusDeposited:             {StatusFullyPaid, StatusAwaitingCheckIn, StatusCancellationRequested, StatusCancelled, StatusNoShow},
	StatusAwaitingCheckIn:       {StatusFullyPaid, StatusCheckedIn, StatusCancellationRequested, StatusCancelled, StatusNoShow},
	StatusFullyPaid:             {StatusAwaitingCheckIn, StatusCheckedIn, StatusCancellationRequested, StatusCancelled, StatusNoShow},
	StatusCheckedIn:             {StatusCompleted, StatusCancellationRequested, StatusCancelled},
	StatusCancellationRequested: {StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to
// another under normal (non-admin) rules. Check-in is only reachable from
// awaiting_checkin or fully_paid; there is no skipping from awaiting_deposit.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsPreCheckout reports whether a guest can still request cancellation.
func IsPreCheckout(status string) bool {
	switch status {
	case StatusAwaitingDeposit, StatusDeposited, StatusAwaitingCheckIn,
		StatusFullyPaid, StatusCheckedIn:
		return true
	}
	return false
}

// CumulativePaid sums all successful payment-kind transactions for a booking.
func CumulativePaid(db *gorm.DB, bookingID uuid.UUID) (float64, error) {
	var total float64
	err := db.Model(&models.PaymentTransaction{}).
		Where("booking_id = ? AND kind = ? AND status = ?", bookingID, TxnKindPayment, TxnStatusSuccess).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
