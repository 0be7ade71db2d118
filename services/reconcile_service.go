package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/notifications"
	"github.com/minhvu2810/homestay_booking/payments"
	"github.com/minhvu2810/homestay_booking/websocket"
)

// Gateway acknowledgment codes returned to the IPN channel.
const (
	RspConfirmed        = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
)

type ReconcileOutcome struct {
	TransactionCode string     `json:"transaction_code"`
	RspCode         string     `json:"rsp_code"`
	Message         string     `json:"message"`
	Applied         bool       `json:"applied"` // true when this delivery performed the terminal transition
	TxnStatus       string     `json:"txn_status,omitempty"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	BookingStatus   string     `json:"booking_status,omitempty"`
}

// ReconcileCallback applies a gateway-reported payment outcome to internal
// state. It is the single entry point for every callback channel (browser
// return, server IPN, client-relayed confirmation) and is idempotent per
// transaction code: a transaction only ever moves pending -> success/failed,
// and re-delivering the same code returns the same end state without
// creating a second booking or changing status again.
func ReconcileCallback(db *gorm.DB, gw *payments.Gateway, params map[string]string) (ReconcileOutcome, error) {
	result := gw.ParseCallback(params)
	out := ReconcileOutcome{TransactionCode: result.TxnRef}

	if !result.SignatureOK {
		log.Printf("🔥 [reconcile %s] signature mismatch, callback discarded", result.TxnRef)
		out.RspCode = RspInvalidSignature
		out.Message = "Invalid signature"
		return out, fmt.Errorf("%w: signature mismatch", apperrors.ErrGatewayInvalid)
	}

	var txn models.PaymentTransaction
	if err := db.Where("transaction_code = ?", result.TxnRef).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Abandoned or unknown attempt: nothing was ever persisted for
			// it, and nothing will be.
			log.Printf("[reconcile %s] no transaction recorded for callback", result.TxnRef)
			out.RspCode = RspOrderNotFound
			out.Message = "Order not found"
			return out, fmt.Errorf("%w: transaction", apperrors.ErrNotFound)
		}
		return out, err
	}

	if txn.Status != TxnStatusPending {
		return alreadyFinal(db, &txn, out), nil
	}

	// The gateway-reported amount must match what we recorded at initiation.
	// A mismatch is never trusted, success-shaped or not.
	if result.Amount != txn.Amount {
		log.Printf("🔥 [reconcile %s] amount mismatch: gateway=%v recorded=%v", txn.TransactionCode, result.Amount, txn.Amount)
		out.RspCode = RspInvalidAmount
		out.Message = "Invalid amount"
		return out, fmt.Errorf("%w: amount mismatch", apperrors.ErrGatewayInvalid)
	}

	if !result.Success {
		return applyFailure(db, &txn, result, out)
	}
	return applySuccess(db, &txn, result, out)
}

func alreadyFinal(db *gorm.DB, txn *models.PaymentTransaction, out ReconcileOutcome) ReconcileOutcome {
	out.RspCode = RspAlreadyConfirmed
	out.Message = "Order already confirmed"
	out.TxnStatus = txn.Status
	out.BookingID = txn.BookingID
	if txn.BookingID != nil {
		var booking models.Booking
		if err := db.First(&booking, "id = ?", txn.BookingID).Error; err == nil {
			out.BookingStatus = booking.Status
		}
	}
	return out
}

// applyFailure records a failed outcome. Booking state stays untouched; a
// hold that backed the attempt is released so the room frees up immediately.
func applyFailure(db *gorm.DB, txn *models.PaymentTransaction, result payments.CallbackResult, out ReconcileOutcome) (ReconcileOutcome, error) {
	res := db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", txn.ID, TxnStatusPending).
		Updates(map[string]interface{}{
			"status":       TxnStatusFailed,
			"order_code":   result.TransactionNo,
			"gateway_meta": result.Raw,
		})
	if res.Error != nil {
		return out, res.Error
	}
	if res.RowsAffected == 0 {
		// Concurrent delivery won the transition.
		if err := db.First(txn, "id = ?", txn.ID).Error; err != nil {
			return out, err
		}
		return alreadyFinal(db, txn, out), nil
	}

	if d, err := payments.ParseOrderDescriptor(txn.OrderInfo); err == nil && d.Kind == payments.DescriptorHold {
		ReleaseHold(db, d.HoldToken)
	}

	log.Printf("[reconcile %s] marked failed (gateway code %s)", txn.TransactionCode, result.ResponseCode)
	out.RspCode = RspConfirmed
	out.Message = "Confirm Success"
	out.Applied = true
	out.TxnStatus = TxnStatusFailed
	out.BookingID = txn.BookingID
	return out, nil
}

func applySuccess(db *gorm.DB, txn *models.PaymentTransaction, result payments.CallbackResult, out ReconcileOutcome) (ReconcileOutcome, error) {
	var booking models.Booking
	raced := false

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", txn.ID, TxnStatusPending).
			Updates(map[string]interface{}{
				"status":       TxnStatusSuccess,
				"order_code":   result.TransactionNo,
				"gateway_meta": result.Raw,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			raced = true
			return nil
		}

		d, err := payments.ParseOrderDescriptor(txn.OrderInfo)
		if err != nil {
			return err
		}

		switch {
		case txn.BookingID != nil:
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", txn.BookingID).Error; err != nil {
				return err
			}
		case d.Kind == payments.DescriptorBooking:
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", d.BookingID).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.PaymentTransaction{}).Where("id = ?", txn.ID).Update("booking_id", booking.ID).Error; err != nil {
				return err
			}
		default:
			// Deferred flow: the booking only exists now that money moved.
			// The room is re-checked under lock; a clash cannot be rejected
			// anymore (the guest already paid), so it is flagged for manual
			// resolution instead of silently double-booking.
			var room models.Room
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", d.RoomID).Error; err != nil {
				return err
			}
			var clash int64
			if err := tx.Model(&models.Booking{}).
				Where("room_id = ? AND status IN ? AND check_in < ? AND check_out > ?", d.RoomID, blockingStatuses, d.CheckOut, d.CheckIn).
				Count(&clash).Error; err != nil {
				return err
			}
			if clash == 0 {
				holdQuery := tx.Model(&models.RoomHold{}).
					Where("room_id = ? AND expires_at > ? AND check_in < ? AND check_out > ?", d.RoomID, time.Now(), d.CheckOut, d.CheckIn)
				if d.Kind == payments.DescriptorHold {
					holdQuery = holdQuery.Where("token <> ?", d.HoldToken)
				}
				if err := holdQuery.Count(&clash).Error; err != nil {
					return err
				}
			}
			if clash > 0 {
				log.Printf("⚠️ [reconcile %s] room %s already taken for %s - %s; booking created for settlement, needs manual resolution",
					txn.TransactionCode, d.RoomID, d.CheckIn.Format("2006-01-02"), d.CheckOut.Format("2006-01-02"))
			}
			booking = models.Booking{
				GuestID:     d.UserID,
				RoomID:      d.RoomID,
				CheckIn:     d.CheckIn,
				CheckOut:    d.CheckOut,
				TotalAmount: d.Total,
				Status:      StatusAwaitingDeposit,
			}
			if err := tx.Create(&booking).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.PaymentTransaction{}).Where("id = ?", txn.ID).Update("booking_id", booking.ID).Error; err != nil {
				return err
			}
		}

		if d.Kind == payments.DescriptorHold {
			tx.Where("token = ?", d.HoldToken).Delete(&models.RoomHold{})
		}

		if txn.Kind == TxnKindPayment {
			paid, err := CumulativePaid(tx, booking.ID)
			if err != nil {
				return err
			}
			if next := nextPaymentStatus(booking.Status, paid, booking.TotalAmount); next != booking.Status {
				booking.Status = next
				if err := tx.Save(&booking).Error; err != nil {
					return err
				}
			}
		}

		// Single-pending invariant: the winning transaction retires every
		// other pending one for the booking.
		return tx.Model(&models.PaymentTransaction{}).
			Where("booking_id = ? AND status = ? AND id <> ?", booking.ID, TxnStatusPending, txn.ID).
			Update("status", TxnStatusFailed).Error
	})
	if err != nil {
		log.Printf("🔥 CRITICAL: [reconcile %s] failed to apply successful callback: %v", txn.TransactionCode, err)
		return out, err
	}

	if raced {
		if err := db.First(txn, "id = ?", txn.ID).Error; err != nil {
			return out, err
		}
		return alreadyFinal(db, txn, out), nil
	}

	log.Printf("✅ [reconcile %s] payment confirmed, booking %s now %s", txn.TransactionCode, booking.ID, booking.Status)

	websocket.Publish(websocket.Event{
		Type:            "payment.confirmed",
		BookingID:       booking.ID.String(),
		BookingStatus:   booking.Status,
		TransactionCode: txn.TransactionCode,
	})
	go notifyPaymentConfirmed(db, booking)

	bookingID := booking.ID
	out.RspCode = RspConfirmed
	out.Message = "Confirm Success"
	out.Applied = true
	out.TxnStatus = TxnStatusSuccess
	out.BookingID = &bookingID
	out.BookingStatus = booking.Status
	return out, nil
}

func notifyPaymentConfirmed(db *gorm.DB, booking models.Booking) {
	var guest models.User
	if err := db.First(&guest, "id = ?", booking.GuestID).Error; err != nil {
		log.Printf("Could not load guest %s for confirmation mail: %v", booking.GuestID, err)
		return
	}
	notifications.SendEmail(guest.FullName, guest.Email, "Your Booking is Confirmed!",
		"<h1>Booking Confirmed</h1><p>Your payment was successful and your stay is confirmed. See you at check-in!</p>")
}
