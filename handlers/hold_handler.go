package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/minhvu2810/homestay_booking/apperrors"
	"github.com/minhvu2810/homestay_booking/database"
	"github.com/minhvu2810/homestay_booking/services"
)

type AcquireHoldRequest struct {
	RoomID     string `json:"room_id" validate:"required,uuid"`
	CheckIn    string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"check_out" validate:"required,datetime=2006-01-02"`
	TTLMinutes int    `json:"ttl_minutes" validate:"omitempty,min=1,max=60"`
}

func AcquireHold(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	var req AcquireHoldRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	roomID, _ := uuid.Parse(req.RoomID)
	checkIn, _ := time.Parse("2006-01-02", req.CheckIn)
	checkOut, _ := time.Parse("2006-01-02", req.CheckOut)

	hold, err := services.AcquireHold(database.DB, userID, roomID, checkIn, checkOut, req.TTLMinutes)
	if err != nil {
		return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      hold.Token,
		"room_id":    hold.RoomID,
		"check_in":   hold.CheckIn.Format("2006-01-02"),
		"check_out":  hold.CheckOut.Format("2006-01-02"),
		"expires_at": hold.ExpiresAt,
	})
}

type RenewHoldRequest struct {
	TTLMinutes int `json:"ttl_minutes" validate:"omitempty,min=1,max=60"`
}

func RenewHold(c *fiber.Ctx) error {
	token := c.Params("token")

	var req RenewHoldRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	renewed := services.RenewHold(database.DB, token, req.TTLMinutes)
	return c.JSON(fiber.Map{"renewed": renewed})
}

func ReleaseHold(c *fiber.Ctx) error {
	token := c.Params("token")
	released := services.ReleaseHold(database.DB, token)
	return c.JSON(fiber.Map{"released": released})
}

type PurgeHoldsRequest struct {
	GraceMinutes int `json:"grace_minutes" validate:"omitempty,min=0,max=1440"`
}

func PurgeExpiredHolds(c *fiber.Ctx) error {
	var req PurgeHoldsRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	purged := services.PurgeExpiredHolds(database.DB, req.GraceMinutes)
	return c.JSON(fiber.Map{"purged": purged})
}
