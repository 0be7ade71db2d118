package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/payments"
	"github.com/minhvu2810/homestay_booking/utils"
)

// InitiateForBooking opens a payment session for the outstanding balance of
// an existing booking and returns the signed redirect URL. Any other pending
// transaction for the booking is superseded by explicit cancellation.
func InitiateForBooking(db *gorm.DB, gw *payments.Gateway, bookingID, requesterID uuid.UUID, isAdmin bool, clientIP string) (string, *models.PaymentTransaction, error) {
	var booking models.Booking
	if err := db.First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("%w: booking", apperrors.ErrNotFound)
		}
		return "", nil, err
	}
	if booking.GuestID != requesterID && !isAdmin {
		return "", nil, fmt.Errorf("%w: not your booking", apperrors.ErrForbidden)
	}
	if !acceptsPayment(booking.Status) {
		return "", nil, fmt.Errorf("%w: booking does not accept payments (status %s)", apperrors.ErrConflict, booking.Status)
	}

	paid, err := CumulativePaid(db, bookingID)
	if err != nil {
		return "", nil, err
	}
	amount := math.Round(booking.TotalAmount - paid)
	if amount <= 0 {
		return "", nil, fmt.Errorf("%w: booking is already fully paid", apperrors.ErrConflict)
	}

	descriptor := payments.OrderDescriptor{Kind: payments.DescriptorBooking, BookingID: booking.ID}
	txn, err := createPendingTransaction(db, &booking.ID, amount, descriptor)
	if err != nil {
		return "", nil, err
	}

	redirectURL, err := gw.BuildPaymentURL(payments.PaymentRequest{
		TxnRef:    txn.TransactionCode,
		Amount:    amount,
		OrderInfo: descriptor.Encode(),
		IPAddr:    clientIP,
	})
	if err != nil {
		return "", nil, err
	}
	return redirectURL, txn, nil
}

// InitiateDeferred opens a payment session for a booking that does not exist
// yet. The stay parameters travel through the gateway's opaque order-info
// field; the booking is materialized only when reconciliation sees a
// successful callback. With a hold token the stay is read from the hold,
// which must be live and owned by the caller.
func InitiateDeferred(db *gorm.DB, gw *payments.Gateway, userID, roomID uuid.UUID, checkIn, checkOut time.Time, holdToken, clientIP string) (string, *models.PaymentTransaction, error) {
	// Stale holds never block a fresh payment attempt.
	PurgeExpiredHolds(db, 0)

	descriptor := payments.OrderDescriptor{Kind: payments.DescriptorDirect, UserID: userID}

	if holdToken != "" {
		hold, err := FindLiveHold(db, holdToken)
		if err != nil {
			return "", nil, err
		}
		if hold.OwnerUserID != userID {
			return "", nil, fmt.Errorf("%w: hold belongs to another user", apperrors.ErrForbidden)
		}
		descriptor.Kind = payments.DescriptorHold
		descriptor.HoldToken = hold.Token
		descriptor.RoomID = hold.RoomID
		descriptor.CheckIn = hold.CheckIn
		descriptor.CheckOut = hold.CheckOut
	} else {
		if !checkIn.Before(checkOut) {
			return "", nil, fmt.Errorf("%w: check-in must be before check-out", apperrors.ErrValidation)
		}
		descriptor.RoomID = roomID
		descriptor.CheckIn = checkIn
		descriptor.CheckOut = checkOut
	}

	quote, nights, err := QuoteStayTotal(db, descriptor.RoomID, descriptor.CheckIn, descriptor.CheckOut)
	if err != nil {
		return "", nil, err
	}
	descriptor.Total = quote.Amount
	log.Printf("Deferred payment for room %s: %d night(s) at %s price, total %.0f VND", descriptor.RoomID, nights, quote.Source, quote.Amount)

	txn, err := createPendingTransaction(db, nil, quote.Amount, descriptor)
	if err != nil {
		return "", nil, err
	}

	redirectURL, err := gw.BuildPaymentURL(payments.PaymentRequest{
		TxnRef:    txn.TransactionCode,
		Amount:    quote.Amount,
		OrderInfo: descriptor.Encode(),
		IPAddr:    clientIP,
	})
	if err != nil {
		return "", nil, err
	}
	return redirectURL, txn, nil
}

func createPendingTransaction(db *gorm.DB, bookingID *uuid.UUID, amount float64, descriptor payments.OrderDescriptor) (*models.PaymentTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", apperrors.ErrValidation)
	}

	var txn models.PaymentTransaction
	err := db.Transaction(func(tx *gorm.DB) error {
		if bookingID != nil {
			if err := tx.Model(&models.PaymentTransaction{}).
				Where("booking_id = ? AND status = ? AND kind = ?", bookingID, TxnStatusPending, TxnKindPayment).
				Update("status", TxnStatusFailed).Error; err != nil {
				return err
			}
		}

		code, err := utils.GenerateTransactionCode(tx)
		if err != nil {
			return err
		}
		txn = models.PaymentTransaction{
			BookingID:       bookingID,
			TransactionCode: code,
			Amount:          amount,
			Method:          payments.MethodVNPay,
			Kind:            TxnKindPayment,
			Status:          TxnStatusPending,
			OrderInfo:       descriptor.Encode(),
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
