package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhvu2810/homestay_booking/apperrors"
	config "github.com/minhvu2810/homestay_booking/configs"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/notifications"
	"github.com/minhvu2810/homestay_booking/payments"
	"github.com/minhvu2810/homestay_booking/utils"
	"github.com/minhvu2810/homestay_booking/websocket"
)

const (
	fullRefundHours    = 24
	partialRefundHours = 12
	partialRefundRate  = 0.7
)

var nowFunc = time.Now

// ComputeRefund applies the cancellation policy to the amount already paid:
// 24h or more before check-in refunds everything, 12-24h refunds 70% with a
// 30% penalty, under 12h forfeits the full amount.
func ComputeRefund(paid, hoursRemaining float64) (refund, penalty float64) {
	switch {
	case hoursRemaining >= fullRefundHours:
		refund = paid
	case hoursRemaining >= partialRefundHours:
		refund = math.Round(paid * partialRefundRate)
	default:
		refund = 0
	}
	return refund, paid - refund
}

// RequestCancellation cancels a booking on behalf of its guest (or an admin)
// and settles the refund per policy. The booking is cancelled immediately;
// refund settlement never blocks it. With REFUND_MODE=gateway the record is
// left pending for an admin to escalate through the real gateway.
func RequestCancellation(db *gorm.DB, gw *payments.Gateway, bookingID, requesterID uuid.UUID, isAdmin bool, reason string) (*models.CancellationRecord, error) {
	var record models.CancellationRecord

	err := db.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking", apperrors.ErrNotFound)
			}
			return err
		}
		if booking.GuestID != requesterID && !isAdmin {
			return fmt.Errorf("%w: not your booking", apperrors.ErrForbidden)
		}
		if !IsPreCheckout(booking.Status) {
			return fmt.Errorf("%w: booking can no longer be cancelled (status %s)", apperrors.ErrConflict, booking.Status)
		}

		var active int64
		if err := tx.Model(&models.CancellationRecord{}).
			Where("booking_id = ? AND status = ?", bookingID, CancelStatusPending).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: a cancellation is already in progress for this booking", apperrors.ErrConflict)
		}

		paid, err := CumulativePaid(tx, bookingID)
		if err != nil {
			return err
		}
		hoursRemaining := booking.CheckIn.Sub(nowFunc()).Hours()
		refund, penalty := ComputeRefund(paid, hoursRemaining)

		record = models.CancellationRecord{
			BookingID:     bookingID,
			Reason:        reason,
			RefundAmount:  refund,
			PenaltyAmount: penalty,
			Status:        CancelStatusPending,
			RequestedByID: requesterID,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		booking.Status = StatusCancelled
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}

		// Open payment sessions for a cancelled booking are dead weight.
		if err := tx.Model(&models.PaymentTransaction{}).
			Where("booking_id = ? AND status = ? AND kind = ?", bookingID, TxnStatusPending, TxnKindPayment).
			Update("status", TxnStatusFailed).Error; err != nil {
			return err
		}

		if refund <= 0 {
			record.Status = CancelStatusNoRefund
			return tx.Save(&record).Error
		}

		if config.ConfigOr("REFUND_MODE", "ledger") == "gateway" {
			// Real money has to go back through the gateway; an admin
			// escalates the pending record via EscalateRefund.
			return nil
		}

		return settleRefund(tx, &record, refund)
	})
	if err != nil {
		return nil, err
	}

	websocket.Publish(websocket.Event{
		Type:          "booking.cancelled",
		BookingID:     bookingID.String(),
		BookingStatus: StatusCancelled,
	})
	go notifyCancellation(db, record)

	return &record, nil
}

// settleRefund writes the refund transaction and closes the record. Used by
// the synchronous ledger path and by admin escalation after gateway approval.
func settleRefund(tx *gorm.DB, record *models.CancellationRecord, amount float64) error {
	code, err := utils.GenerateTransactionCode(tx)
	if err != nil {
		return err
	}
	refundTxn := models.PaymentTransaction{
		BookingID:       &record.BookingID,
		TransactionCode: code,
		Amount:          amount,
		Method:          payments.MethodVNPay,
		Kind:            TxnKindRefund,
		Status:          TxnStatusSuccess,
		OrderInfo:       payments.OrderDescriptor{Kind: payments.DescriptorBooking, BookingID: record.BookingID}.Encode(),
	}
	if err := tx.Create(&refundTxn).Error; err != nil {
		return err
	}
	record.Status = CancelStatusRefunded
	return tx.Save(record).Error
}

// EscalateRefund pushes a pending cancellation's refund through the real
// gateway. The record row stays locked until the outcome is written, so the
// gateway is called at most once per record; a record that already settled
// is never touched again.
func EscalateRefund(db *gorm.DB, gw *payments.Gateway, recordID uuid.UUID, adminEmail string) (*models.CancellationRecord, error) {
	var record models.CancellationRecord

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: cancellation record", apperrors.ErrNotFound)
			}
			return err
		}
		if record.Status != CancelStatusPending {
			return fmt.Errorf("%w: cancellation already settled as %s", apperrors.ErrConflict, record.Status)
		}

		// Refund against the original successful payment's gateway reference.
		var original models.PaymentTransaction
		if err := tx.Where("booking_id = ? AND kind = ? AND status = ?", record.BookingID, TxnKindPayment, TxnStatusSuccess).
			Order("created_at desc").First(&original).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no successful payment to refund", apperrors.ErrNotFound)
			}
			return err
		}

		rspCode, err := gw.RequestRefund(original.TransactionCode, record.RefundAmount, adminEmail)
		if err != nil || rspCode != payments.ResponseCodeSuccess {
			log.Printf("🔥 Gateway refund for cancellation %s rejected (code %s): %v", record.ID, rspCode, err)
			return settleEscalation(tx, &record, CancelStatusRejected, nil)
		}
		return settleEscalation(tx, &record, CancelStatusRefunded, &original)
	})
	if err != nil {
		return nil, err
	}

	if record.Status == CancelStatusRefunded {
		log.Printf("✅ Gateway refund settled for cancellation %s (%.0f VND)", record.ID, record.RefundAmount)
	}
	return &record, nil
}

// settleEscalation moves a locked pending record to its terminal state. The
// conditional predicate backs up the row lock: a terminal record can never
// be rewritten, whichever path gets here.
func settleEscalation(tx *gorm.DB, record *models.CancellationRecord, status string, original *models.PaymentTransaction) error {
	res := tx.Model(&models.CancellationRecord{}).
		Where("id = ? AND status = ?", record.ID, CancelStatusPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: cancellation settled concurrently", apperrors.ErrConflict)
	}
	record.Status = status

	if status != CancelStatusRefunded {
		return nil
	}
	code, err := utils.GenerateTransactionCode(tx)
	if err != nil {
		return err
	}
	refundTxn := models.PaymentTransaction{
		BookingID:       &record.BookingID,
		TransactionCode: code,
		OrderCode:       original.OrderCode,
		Amount:          record.RefundAmount,
		Method:          payments.MethodVNPay,
		Kind:            TxnKindRefund,
		Status:          TxnStatusSuccess,
		OrderInfo:       payments.OrderDescriptor{Kind: payments.DescriptorBooking, BookingID: record.BookingID}.Encode(),
	}
	return tx.Create(&refundTxn).Error
}

// RejectCancellation lets an admin close a pending record without refunding.
func RejectCancellation(db *gorm.DB, recordID uuid.UUID) (*models.CancellationRecord, error) {
	var record models.CancellationRecord
	if err := db.First(&record, "id = ?", recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cancellation record", apperrors.ErrNotFound)
		}
		return nil, err
	}
	res := db.Model(&models.CancellationRecord{}).
		Where("id = ? AND status = ?", record.ID, CancelStatusPending).
		Update("status", CancelStatusRejected)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race; re-read so the error names the state it settled in.
		if err := db.First(&record, "id = ?", recordID).Error; err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cancellation already settled as %s", apperrors.ErrConflict, record.Status)
	}
	record.Status = CancelStatusRejected
	return &record, nil
}

func notifyCancellation(db *gorm.DB, record models.CancellationRecord) {
	var booking models.Booking
	if err := db.Preload("Guest").First(&booking, "id = ?", record.BookingID).Error; err != nil {
		log.Printf("Could not load booking %s for cancellation mail: %v", record.BookingID, err)
		return
	}
	body := fmt.Sprintf("<h1>Booking Cancelled</h1><p>Your booking has been cancelled. Refund: %.0f VND, penalty: %.0f VND.</p>",
		record.RefundAmount, record.PenaltyAmount)
	notifications.SendEmail(booking.Guest.FullName, booking.Guest.Email, "Your Booking Has Been Cancelled", body)
}
