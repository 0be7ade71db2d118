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
)

const (
	DefaultHoldTTLMinutes = 15
	MaxHoldTTLMinutes     = 60
)

// Overlaps reports whether two half-open [start, end) date ranges intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// AcquireHold reserves a room/date-range for ttlMinutes. The check-and-insert
// runs inside a transaction holding a FOR UPDATE lock on the room row, so two
// concurrent callers for overlapping ranges on the same room cannot both win.
func AcquireHold(db *gorm.DB, userID, roomID uuid.UUID, checkIn, checkOut time.Time, ttlMinutes int) (*models.RoomHold, error) {
	if !checkIn.Before(checkOut) {
		return nil, fmt.Errorf("%w: check-in must be before check-out", apperrors.ErrValidation)
	}
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultHoldTTLMinutes
	}
	if ttlMinutes > MaxHoldTTLMinutes {
		ttlMinutes = MaxHoldTTLMinutes
	}

	var hold models.RoomHold
	err := db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: room", apperrors.ErrNotFound)
			}
			return err
		}

		now := time.Now()

		var holdCount int64
		if err := tx.Model(&models.RoomHold{}).
			Where("room_id = ? AND expires_at > ? AND check_in < ? AND check_out > ?", roomID, now, checkOut, checkIn).
			Count(&holdCount).Error; err != nil {
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

		hold = models.RoomHold{
			Token:       uuid.NewString(),
			RoomID:      roomID,
			CheckIn:     checkIn,
			CheckOut:    checkOut,
			OwnerUserID: userID,
			ExpiresAt:   now.Add(time.Duration(ttlMinutes) * time.Minute),
		}
		return tx.Create(&hold).Error
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// RenewHold extends an unexpired hold to ttlMinutes from now. The expiry
// only ever moves forward: a renewal shorter than the time remaining leaves
// it where it is. Returns false when the token is unknown or already
// expired; it never errors for those.
func RenewHold(db *gorm.DB, token string, ttlMinutes int) bool {
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultHoldTTLMinutes
	}
	if ttlMinutes > MaxHoldTTLMinutes {
		ttlMinutes = MaxHoldTTLMinutes
	}

	now := time.Now()
	res := db.Model(&models.RoomHold{}).
		Where("token = ? AND expires_at > ?", token, now).
		Update("expires_at", gorm.Expr("GREATEST(expires_at, ?)", now.Add(time.Duration(ttlMinutes)*time.Minute)))
	if res.Error != nil {
		log.Printf("Error renewing hold %s: %v", token, res.Error)
		return false
	}
	return res.RowsAffected > 0
}

// ReleaseHold deletes a hold by token. Idempotent; returns whether a row was
// actually removed.
func ReleaseHold(db *gorm.DB, token string) bool {
	res := db.Where("token = ?", token).Delete(&models.RoomHold{})
	if res.Error != nil {
		log.Printf("Error releasing hold %s: %v", token, res.Error)
		return false
	}
	return res.RowsAffected > 0
}

// PurgeExpiredHolds deletes holds whose expiry plus grace has passed. Only
// already-expired rows are touched, so the sweep never conflicts with a
// concurrent acquire.
func PurgeExpiredHolds(db *gorm.DB, graceMinutes int) int64 {
	cutoff := time.Now().Add(-time.Duration(graceMinutes) * time.Minute)
	res := db.Where("expires_at < ?", cutoff).Delete(&models.RoomHold{})
	if res.Error != nil {
		log.Printf("Error purging expired holds: %v", res.Error)
		return 0
	}
	return res.RowsAffected
}

// FindLiveHold returns an unexpired hold by token.
func FindLiveHold(db *gorm.DB, token string) (*models.RoomHold, error) {
	var hold models.RoomHold
	err := db.Where("token = ? AND expires_at > ?", token, time.Now()).First(&hold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: hold missing or expired", apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &hold, nil
}
