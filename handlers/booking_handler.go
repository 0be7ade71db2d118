package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/services"
)

type CreateBookingRequest struct {
	RoomID    string `json:"room_id" validate:"required_without=HoldToken,omitempty,uuid"`
	CheckIn   string `json:"check_in" validate:"required_without=HoldToken,omitempty,datetime=2006-01-02"`
	CheckOut  string `json:"check_out" validate:"required_without=HoldToken,omitempty,datetime=2006-01-02"`
	HoldToken string `json:"hold_token,omitempty"`
}

func CreateBooking(c *fiber.Ctx) error {
	guestID, _ := currentUser(c)

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	roomID, _ := uuid.Parse(req.RoomID)
	checkIn, _ := time.Parse("2006-01-02", req.CheckIn)
	checkOut, _ := time.Parse("2006-01-02", req.CheckOut)

	booking, err := services.CreateBooking(database.DB, guestID, roomID, checkIn, checkOut, req.HoldToken)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

func GetBooking(c *fiber.Ctx) error {
	userID, role := currentUser(c)
	bookingID := c.Params("bookingId")

	var booking models.Booking
	if err := database.DB.Preload("Room.Accommodation").First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.GuestID != userID && booking.Room.Accommodation.HostID != userID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}
	return c.JSON(booking)
}

func GetMyBookings(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var bookings []models.Booking
	database.DB.
		Preload("Room").
		Where("guest_id = ?", userID).
		Order("check_in desc").
		Find(&bookings)

	return c.JSON(bookings)
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=awaiting_deposit deposited awaiting_checkin fully_paid checked_in completed cancellation_requested cancelled no_show"`
	Force  bool   `json:"force,omitempty"`
}

func UpdateBookingStatus(c *fiber.Ctx) error {
	actorID, role := currentUser(c)
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req UpdateBookingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	booking, err := services.UpdateBookingStatus(database.DB, bookingID, actorID, role, req.Status, req.Force)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(booking)
}

func RecomputeBookingTotal(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	booking, err := services.RecomputeBookingTotal(database.DB, bookingID)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(booking)
}
