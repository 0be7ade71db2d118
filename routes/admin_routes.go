package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/minhvu2810/homestay_booking/handlers"
	"github.com/minhvu2810/homestay_booking/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/reports/revenue", handlers.GetRevenueReport)
	admin.Get("/bookings", handlers.ListAllBookings)
	admin.Post("/bookings/:bookingId/recompute", handlers.RecomputeBookingTotal)

	admin.Get("/cancellations/pending", handlers.ListPendingCancellations)
	admin.Post("/cancellations/:recordId/escalate", handlers.EscalateRefund)
	admin.Post("/cancellations/:recordId/reject", handlers.RejectCancellation)

	admin.Post("/holds/purge", handlers.PurgeExpiredHolds)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/events", websocket.New(handlers.ServeEvents))
}
