package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/models"
)

const (
	PriceSourceRoom          = "room"
	PriceSourceAccommodation = "accommodation"
)

type PriceQuote struct {
	Amount float64 `json:"amount"`
	Source string  `json:"source"`
}

// QuoteRoomPrice resolves the nightly price of a room through an explicit
// fallback chain: the room's own price, then the accommodation base price.
// A room with neither is a data error surfaced to the caller, not skipped.
func QuoteRoomPrice(db *gorm.DB, roomID uuid.UUID) (PriceQuote, error) {
	var room models.Room
	if err := db.Preload("Accommodation").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PriceQuote{}, fmt.Errorf("%w: room", apperrors.ErrNotFound)
		}
		return PriceQuote{}, err
	}

	if room.PricePerNight != nil && *room.PricePerNight > 0 {
		return PriceQuote{Amount: *room.PricePerNight, Source: PriceSourceRoom}, nil
	}
	if room.Accommodation.BasePrice != nil && *room.Accommodation.BasePrice > 0 {
		return PriceQuote{Amount: *room.Accommodation.BasePrice, Source: PriceSourceAccommodation}, nil
	}
	return PriceQuote{}, fmt.Errorf("%w: no price configured for room %s", apperrors.ErrNotFound, roomID)
}

// QuoteStayTotal multiplies the nightly quote by the number of nights,
// rounded to whole currency units (amounts are VND, no minor unit).
func QuoteStayTotal(db *gorm.DB, roomID uuid.UUID, checkIn, checkOut time.Time) (PriceQuote, int, error) {
	if !checkIn.Before(checkOut) {
		return PriceQuote{}, 0, fmt.Errorf("%w: check-in must be before check-out", apperrors.ErrValidation)
	}
	nights := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if nights < 1 {
		nights = 1
	}

	quote, err := QuoteRoomPrice(db, roomID)
	if err != nil {
		return PriceQuote{}, 0, err
	}
	quote.Amount = math.Round(quote.Amount * float64(nights))
	return quote, nights, nil
}
