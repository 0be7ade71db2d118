package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/services"
)

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// GetRevenueReport aggregates settled money movement: gross payments, total
// refunds, net revenue and the booking population per lifecycle status.
func GetRevenueReport(c *fiber.Ctx) error {
	var grossPaid float64
	database.DB.Model(&models.PaymentTransaction{}).
		Where("kind = ? AND status = ?", services.TxnKindPayment, services.TxnStatusSuccess).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&grossPaid)

	var refunded float64
	database.DB.Model(&models.PaymentTransaction{}).
		Where("kind = ? AND status = ?", services.TxnKindRefund, services.TxnStatusSuccess).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&refunded)

	var byStatus []statusCount
	database.DB.Model(&models.Booking{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Order("status").
		Scan(&byStatus)

	var pendingSessions int64
	database.DB.Model(&models.PaymentTransaction{}).
		Where("kind = ? AND status = ?", services.TxnKindPayment, services.TxnStatusPending).
		Count(&pendingSessions)

	return c.JSON(fiber.Map{
		"gross_paid":         grossPaid,
		"refunded":           refunded,
		"net_revenue":        grossPaid - refunded,
		"bookings_by_status": byStatus,
		"pending_sessions":   pendingSessions,
	})
}

// ListAllBookings gives admins the full booking table, optionally filtered
// by status.
func ListAllBookings(c *fiber.Ctx) error {
	query := database.DB.Preload("Room").Preload("Guest").Order("created_at desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var bookings []models.Booking
	query.Find(&bookings)
	return c.JSON(bookings)
}
