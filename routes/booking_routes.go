package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minhvu2810/homestay_booking/handlers"
	"github.com/minhvu2810/homestay_booking/middleware"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", handlers.GetMyBookings)
	booking.Post("", handlers.CreateBooking)
	booking.Get("/:bookingId", handlers.GetBooking)
	booking.Get("/:bookingId/payments", handlers.ListBookingPayments)
	booking.Get("/:bookingId/receipt", handlers.DownloadReceipt)
	booking.Post("/:bookingId/cancel", handlers.RequestCancellation)
	booking.Get("/:bookingId/cancellation", handlers.GetCancellation)

	hostBooking := api.Group("/host/bookings", middleware.Protected(), middleware.HostRequired())
	hostBooking.Put("/:bookingId/status", handlers.UpdateBookingStatus)
}
