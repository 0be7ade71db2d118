package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/payments"
	"github.com/minhvu2810/homestay_booking/services"
)

type RequestCancellationRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// RequestCancellation cancels the caller's booking and settles the refund
// per policy.
func RequestCancellation(c *fiber.Ctx) error {
	userID, role := currentUser(c)
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req RequestCancellationRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	record, err := services.RequestCancellation(database.DB, payments.NewGatewayFromEnv(), bookingID, userID, role == "admin", req.Reason)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func GetCancellation(c *fiber.Ctx) error {
	userID, role := currentUser(c)
	bookingID := c.Params("bookingId")

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.GuestID != userID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}

	var record models.CancellationRecord
	if err := database.DB.
		Where("booking_id = ?", bookingID).
		Order("created_at desc").
		First(&record).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No cancellation on record for this booking"})
	}
	return c.JSON(record)
}

// EscalateRefund pushes a pending cancellation through the real gateway.
// Admin only.
func EscalateRefund(c *fiber.Ctx) error {
	adminID, _ := currentUser(c)
	recordID, err := uuid.Parse(c.Params("recordId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid record ID format"})
	}

	var admin models.User
	if err := database.DB.First(&admin, "id = ?", adminID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unknown admin account"})
	}

	record, err := services.EscalateRefund(database.DB, payments.NewGatewayFromEnv(), recordID, admin.Email)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(record)
}

// RejectCancellation closes a pending cancellation without refunding. Admin
// only.
func RejectCancellation(c *fiber.Ctx) error {
	recordID, err := uuid.Parse(c.Params("recordId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid record ID format"})
	}

	record, err := services.RejectCancellation(database.DB, recordID)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(record)
}

// ListPendingCancellations is the admin work queue for gateway-mode refunds.
func ListPendingCancellations(c *fiber.Ctx) error {
	var records []models.CancellationRecord
	database.DB.
		Where("status = ?", services.CancelStatusPending).
		Order("created_at asc").
		Find(&records)
	return c.JSON(records)
}
