package middlewares

import (
	"costtrack-backend/logger"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Tx opens a per-request DB transaction, committed when the handler chain
// returns without error and rolled back otherwise.
// Order: run AFTER Authenticated() and AFTER Idempotency() (so idempotency
// records aren't tied to the handler TX).
func Tx(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so Fiber's handler can catch
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log := logger.WithComponent("http")
				log.Error().Err(e).Str("path", c.Path()).Msg("tx commit failed")
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		// Make the TX available to handlers via database.GetDB(c).
		c.Locals("tx", tx)

		err = c.Next()
		return err
	}
}
