package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/minhvu2810/homestay_booking/handlers"
	"github.com/minhvu2810/homestay_booking/middleware"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Gateway callbacks are unauthenticated: the HMAC signature is the auth.
	api.Get("/payments/vnpay/return", handlers.PaymentReturn)
	api.Get("/payments/vnpay/ipn", handlers.PaymentIPN)
	api.Get("/payments/vnpay/confirm", handlers.ConfirmPaymentQuery)
	api.Post("/payments/vnpay/confirm", handlers.ConfirmPayment)

	payments := api.Group("/payments", middleware.Protected())
	payments.Post("/initiate", handlers.InitiatePayment)
	payments.Post("/initiate-direct", handlers.InitiateDirectPayment)
}
