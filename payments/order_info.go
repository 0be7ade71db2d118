package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
)

// The gateway only round-trips a bounded set of fields, so everything needed
// to materialize a deferred booking is packed into the opaque order-info
// field as a tagged, pipe-delimited descriptor:
//
//	BOOKING|bookingId
//	DIRECT|roomId|checkInYYYYMMDD|checkOutYYYYMMDD|userId|total
//	HOLD|token|roomId|checkInYYYYMMDD|checkOutYYYYMMDD|userId|total
const (
	DescriptorBooking = "BOOKING"
	DescriptorDirect  = "DIRECT"
	DescriptorHold    = "HOLD"

	descriptorDateLayout = "20060102"
)

type OrderDescriptor struct {
	Kind      string
	BookingID uuid.UUID // BOOKING only
	HoldToken string    // HOLD only
	RoomID    uuid.UUID
	CheckIn   time.Time
	CheckOut  time.Time
	UserID    uuid.UUID
	Total     float64
}

func (d OrderDescriptor) Encode() string {
	switch d.Kind {
	case DescriptorBooking:
		return fmt.Sprintf("%s|%s", DescriptorBooking, d.BookingID)
	case DescriptorHold:
		return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
			DescriptorHold, d.HoldToken, d.RoomID,
			d.CheckIn.Format(descriptorDateLayout), d.CheckOut.Format(descriptorDateLayout),
			d.UserID, strconv.FormatFloat(d.Total, 'f', 0, 64))
	default:
		return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
			DescriptorDirect, d.RoomID,
			d.CheckIn.Format(descriptorDateLayout), d.CheckOut.Format(descriptorDateLayout),
			d.UserID, strconv.FormatFloat(d.Total, 'f', 0, 64))
	}
}

// ParseOrderDescriptor decodes and validates an order-info descriptor. Any
// malformed field is rejected outright; callers must never act on a
// descriptor this function did not accept.
func ParseOrderDescriptor(s string) (OrderDescriptor, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	if len(parts) == 0 {
		return OrderDescriptor{}, fmt.Errorf("%w: empty order descriptor", apperrors.ErrValidation)
	}

	switch parts[0] {
	case DescriptorBooking:
		if len(parts) != 2 {
			return OrderDescriptor{}, fmt.Errorf("%w: BOOKING descriptor wants 2 fields, got %d", apperrors.ErrValidation, len(parts))
		}
		id, err := uuid.Parse(parts[1])
		if err != nil {
			return OrderDescriptor{}, fmt.Errorf("%w: bad booking id %q", apperrors.ErrValidation, parts[1])
		}
		return OrderDescriptor{Kind: DescriptorBooking, BookingID: id}, nil

	case DescriptorDirect:
		if len(parts) != 6 {
			return OrderDescriptor{}, fmt.Errorf("%w: DIRECT descriptor wants 6 fields, got %d", apperrors.ErrValidation, len(parts))
		}
		d := OrderDescriptor{Kind: DescriptorDirect}
		if err := d.fillStay(parts[1], parts[2], parts[3], parts[4], parts[5]); err != nil {
			return OrderDescriptor{}, err
		}
		return d, nil

	case DescriptorHold:
		if len(parts) != 7 {
			return OrderDescriptor{}, fmt.Errorf("%w: HOLD descriptor wants 7 fields, got %d", apperrors.ErrValidation, len(parts))
		}
		if parts[1] == "" {
			return OrderDescriptor{}, fmt.Errorf("%w: empty hold token", apperrors.ErrValidation)
		}
		d := OrderDescriptor{Kind: DescriptorHold, HoldToken: parts[1]}
		if err := d.fillStay(parts[2], parts[3], parts[4], parts[5], parts[6]); err != nil {
			return OrderDescriptor{}, err
		}
		return d, nil
	}

	return OrderDescriptor{}, fmt.Errorf("%w: unknown descriptor tag %q", apperrors.ErrValidation, parts[0])
}

func (d *OrderDescriptor) fillStay(roomID, checkIn, checkOut, userID, total string) error {
	var err error
	if d.RoomID, err = uuid.Parse(roomID); err != nil {
		return fmt.Errorf("%w: bad room id %q", apperrors.ErrValidation, roomID)
	}
	if d.CheckIn, err = time.Parse(descriptorDateLayout, checkIn); err != nil {
		return fmt.Errorf("%w: bad check-in date %q", apperrors.ErrValidation, checkIn)
	}
	if d.CheckOut, err = time.Parse(descriptorDateLayout, checkOut); err != nil {
		return fmt.Errorf("%w: bad check-out date %q", apperrors.ErrValidation, checkOut)
	}
	if !d.CheckIn.Before(d.CheckOut) {
		return fmt.Errorf("%w: check-in must be before check-out", apperrors.ErrValidation)
	}
	if d.UserID, err = uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: bad user id %q", apperrors.ErrValidation, userID)
	}
	if d.Total, err = strconv.ParseFloat(total, 64); err != nil || d.Total <= 0 {
		return fmt.Errorf("%w: bad total amount %q", apperrors.ErrValidation, total)
	}
	return nil
}
