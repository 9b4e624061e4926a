package controllers

import (
	"context"
	"time"

	"costtrack-backend/database"
	"costtrack-backend/middlewares"
	"costtrack-backend/models"
	"costtrack-backend/services"
	"costtrack-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ItemSyncer pushes a project's item records to an external spreadsheet.
type ItemSyncer interface {
	Sync(ctx context.Context, project models.Project, records []models.ItemRecord) error
}

// Deps are the shared services handlers need beyond the request DB.
type Deps struct {
	JWTSecret []byte
	JWTTTL    time.Duration
	// Sequence draws invoice numbers and payment references. Without it
	// clients must supply them.
	Sequence *services.SequenceService
	Sheets   ItemSyncer
}

var deps Deps

// Configure installs the handler dependencies; call before serving.
func Configure(d Deps) {
	deps = d
}

// numberer returns the configured sequence, or nil so that a nil
// *SequenceService never reaches services as a non-nil interface.
func numberer() services.Numberer {
	if deps.Sequence == nil {
		return nil
	}
	return deps.Sequence
}

// requestDB returns the request transaction and the caller.
func requestDB(c *fiber.Ctx) (*gorm.DB, services.AuthContext, error) {
	db, err := database.GetDB(c)
	if err != nil {
		return nil, services.AuthContext{}, fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
	}
	return db, middlewares.AuthFrom(c), nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := utils.ParseID(c.Params(name))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" in path")
	}
	return id, nil
}

func queryID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := utils.ParseID(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" query parameter")
	}
	return id, nil
}
