package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/payments"
	"github.com/minhvu2810/homestay_booking/services"
)

type InitiatePaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// InitiatePayment opens a gateway session for the outstanding balance of an
// existing booking and returns the redirect URL.
func InitiatePayment(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	var req InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	bookingID, _ := uuid.Parse(req.BookingID)

	redirectURL, txn, err := services.InitiateForBooking(database.DB, payments.NewGatewayFromEnv(), bookingID, userID, role == "admin", c.IP())
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"redirect_url":     redirectURL,
		"transaction_code": txn.TransactionCode,
		"amount":           txn.Amount,
	})
}

type InitiateDirectPaymentRequest struct {
	RoomID    string `json:"room_id" validate:"required_without=HoldToken,omitempty,uuid"`
	CheckIn   string `json:"check_in" validate:"required_without=HoldToken,omitempty,datetime=2006-01-02"`
	CheckOut  string `json:"check_out" validate:"required_without=HoldToken,omitempty,datetime=2006-01-02"`
	HoldToken string `json:"hold_token,omitempty"`
}

// InitiateDirectPayment starts the deferred flow: pay first, and the booking
// is materialized only when the gateway confirms.
func InitiateDirectPayment(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var req InitiateDirectPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	roomID, _ := uuid.Parse(req.RoomID)
	checkIn, _ := time.Parse("2006-01-02", req.CheckIn)
	checkOut, _ := time.Parse("2006-01-02", req.CheckOut)

	redirectURL, txn, err := services.InitiateDeferred(database.DB, payments.NewGatewayFromEnv(), userID, roomID, checkIn, checkOut, req.HoldToken, c.IP())
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"redirect_url":     redirectURL,
		"transaction_code": txn.TransactionCode,
		"amount":           txn.Amount,
	})
}

// PaymentReturn handles the browser redirect back from the gateway.
func PaymentReturn(c *fiber.Ctx) error {
	outcome, _ := services.ReconcileCallback(database.DB, payments.NewGatewayFromEnv(), queryParams(c))
	return c.JSON(outcome)
}

// PaymentIPN handles the server-to-server notification. The gateway retries
// until it receives a well-formed acknowledgment, so this always answers 200
// with the RspCode/Message pair it expects.
func PaymentIPN(c *fiber.Ctx) error {
	outcome, _ := services.ReconcileCallback(database.DB, payments.NewGatewayFromEnv(), queryParams(c))
	return c.JSON(fiber.Map{"RspCode": outcome.RspCode, "Message": outcome.Message})
}

type ConfirmPaymentRequest struct {
	Params      map[string]string `json:"params,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
}

// ConfirmPayment is the client-relayed channel for environments where
// neither the redirect nor the IPN can reach us: the client posts either the
// structured callback parameters or the raw URL it landed on.
func ConfirmPayment(c *fiber.Ctx) error {
	var req ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	params := req.Params
	if len(params) == 0 && req.CallbackURL != "" {
		var err error
		params, err = payments.ParamsFromURL(req.CallbackURL)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if len(params) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Either params or callback_url is required"})
	}

	outcome, err := services.ReconcileCallback(database.DB, payments.NewGatewayFromEnv(), params)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(outcome)
	}
	return c.JSON(outcome)
}

// ConfirmPaymentQuery is ConfirmPayment for clients that can only issue GETs.
func ConfirmPaymentQuery(c *fiber.Ctx) error {
	outcome, err := services.ReconcileCallback(database.DB, payments.NewGatewayFromEnv(), queryParams(c))
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(outcome)
	}
	return c.JSON(outcome)
}

func ListBookingPayments(c *fiber.Ctx) error {
	userID, role := currentUser(c)
	bookingID := c.Params("bookingId")

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if booking.GuestID != userID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}

	var txns []models.PaymentTransaction
	database.DB.
		Where("booking_id = ?", bookingID).
		Order("created_at desc").
		Find(&txns)

	return c.JSON(txns)
}

// queryParams flattens the request query string into a plain map.
func queryParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params
}
