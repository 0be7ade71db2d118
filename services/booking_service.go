package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/websocket"
)

// CreateBooking creates a booking up front (the non-deferred flow), starting
// in awaiting_deposit. A hold token lets the caller convert their own hold;
// the hold fixes the stay parameters and is consumed in the same transaction.
func CreateBooking(db *gorm.DB, guestID, roomID uuid.UUID, checkIn, checkOut time.Time, holdToken string) (*models.Booking, error) {
	var booking models.Booking

	err := db.Transaction(func(tx *gorm.DB) error {
		var ownHoldID *uuid.UUID

		if holdToken != "" {
			var hold models.RoomHold
			if err := tx.Where("token = ? AND expires_at > ?", holdToken, time.Now()).First(&hold).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: hold missing or expired", apperrors.ErrNotFound)
				}
				return err
			}
			if hold.OwnerUserID != guestID {
				return fmt.Errorf("%w: hold belongs to another user", apperrors.ErrForbidden)
			}
			roomID = hold.RoomID
			checkIn = hold.CheckIn
			checkOut = hold.CheckOut
			ownHoldID = &hold.ID
		}

		if !checkIn.Before(checkOut) {
			return fmt.Errorf("%w: check-in must be before check-out", apperrors.ErrValidation)
		}

		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: room", apperrors.ErrNotFound)
			}
			return err
		}

		now := time.Now()
		holdQuery := tx.Model(&models.RoomHold{}).
			Where("room_id = ? AND expires_at > ? AND check_in < ? AND check_out > ?", roomID, now, checkOut, checkIn)
		if ownHoldID != nil {
			holdQuery = holdQuery.Where("id <> ?", ownHoldID)
		}
		var holdCount int64
		if err := holdQuery.Count(&holdCount).Error; err != nil {
			return err
		}
		if holdCount > 0 {
			return fmt.Errorf("%w: room is held for an overlapping date range", apperrors.ErrConflict)
		}

		var bookingCount int64
		if err := tx.Model(&models.Booking{}).
			Where("room_id = ? AND status IN ? AND check_in < ? AND check_out > ?", roomID, blockingStatuses, checkOut, checkIn).
			Count(&bookingCount).Error; err != nil {
			return err
		}
		if bookingCount > 0 {
			return fmt.Errorf("%w: room is booked for an overlapping date range", apperrors.ErrConflict)
		}

		quote, _, err := QuoteStayTotal(tx, roomID, checkIn, checkOut)
		if err != nil {
			return err
		}

		booking = models.Booking{
			GuestID:     guestID,
			RoomID:      roomID,
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			TotalAmount: quote.Amount,
			Status:      RecomputeStatus(0, quote.Amount),
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		if ownHoldID != nil {
			tx.Where("id = ?", ownHoldID).Delete(&models.RoomHold{})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus applies a lifecycle transition requested by a host or
// admin. Admins may force any transition; everyone else goes through the
// state machine, and only the accommodation's host may operate check-in/out.
func UpdateBookingStatus(db *gorm.DB, bookingID, actorID uuid.UUID, role, newStatus string, force bool) (*models.Booking, error) {
	var booking models.Booking
	if err := db.Preload("Room.Accommodation").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking", apperrors.ErrNotFound)
		}
		return nil, err
	}

	isAdmin := role == "admin"
	if force && !isAdmin {
		return nil, fmt.Errorf("%w: only admins may force transitions", apperrors.ErrForbidden)
	}

	if !isAdmin {
		if booking.Room.Accommodation.HostID != actorID {
			return nil, fmt.Errorf("%w: not the host of this accommodation", apperrors.ErrForbidden)
		}
		if !CanTransition(booking.Status, newStatus) {
			return nil, fmt.Errorf("%w: cannot move booking from %s to %s", apperrors.ErrConflict, booking.Status, newStatus)
		}
	} else if !force && !CanTransition(booking.Status, newStatus) {
		return nil, fmt.Errorf("%w: cannot move booking from %s to %s", apperrors.ErrConflict, booking.Status, newStatus)
	}

	booking.Status = newStatus
	if err := db.Save(&booking).Error; err != nil {
		return nil, err
	}

	websocket.Publish(websocket.Event{
		Type:          "booking.status_changed",
		BookingID:     booking.ID.String(),
		BookingStatus: booking.Status,
	})
	return &booking, nil
}

// RecomputeBookingTotal is the explicit admin repair path: it re-derives the
// total from the current price chain and the status from recorded payments.
func RecomputeBookingTotal(db *gorm.DB, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking", apperrors.ErrNotFound)
			}
			return err
		}

		quote, _, err := QuoteStayTotal(tx, booking.RoomID, booking.CheckIn, booking.CheckOut)
		if err != nil {
			return err
		}
		booking.TotalAmount = quote.Amount

		paid, err := CumulativePaid(tx, booking.ID)
		if err != nil {
			return err
		}
		booking.Status = nextPaymentStatus(booking.Status, paid, booking.TotalAmount)
		return tx.Save(&booking).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
