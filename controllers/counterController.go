package controllers

import (
	"strconv"
	"time"

	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

func sequence() (*services.SequenceService, error) {
	if deps.Sequence == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "number sequence not configured")
	}
	return deps.Sequence, nil
}

// GET /api/counters
func GetCounters(c *fiber.Ctx) error {
	seq, err := sequence()
	if err != nil {
		return err
	}
	counters, err := seq.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(counters)
}

// GET /api/counters/:prefix/next
// Preview only; the number is not reserved.
func NextNumber(c *fiber.Ctx) error {
	seq, err := sequence()
	if err != nil {
		return err
	}
	next, err := seq.Next(c.UserContext(), c.Params("prefix"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"next": next})
}

// POST /api/counters/:prefix/reset?year=2026
func ResetCounter(c *fiber.Ctx) error {
	seq, err := sequence()
	if err != nil {
		return err
	}
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		if year, err = strconv.Atoi(raw); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid year")
		}
	}
	if err := seq.Reset(c.UserContext(), middlewares.AuthFrom(c), c.Params("prefix"), year); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "counter reset", "year": year})
}
