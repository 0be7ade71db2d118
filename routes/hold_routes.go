package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minhvu2810/homestay_booking/handlers"
	"github.com/minhvu2810/homestay_booking/middleware"
)

func HoldRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	holds := api.Group("/holds", middleware.Protected())
	holds.Post("", handlers.AcquireHold)
	holds.Post("/:token/renew", handlers.RenewHold)
	holds.Delete("/:token", handlers.ReleaseHold)
}
