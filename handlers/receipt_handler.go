package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/services"
)

// DownloadReceipt renders the booking's payment receipt as a PDF download.
func DownloadReceipt(c *fiber.Ctx) error {
	userID, role := currentUser(c)
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.GuestID != userID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}

	pdfBytes, err := services.GenerateReceiptPDF(database.DB, bookingID)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", bookingID))
	return c.Send(pdfBytes)
}
