package controllers

import (
	"costtrack-backend/exports"
	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

// POST /api/projects/:id/items
func CreateItem(c *fiber.Ctx) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.ItemInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	item, err := services.CreateItem(c.UserContext(), db, auth, projectID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GET /api/projects/:id/items
func GetItems(c *fiber.Ctx) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	items, err := services.ListItemSummaries(c.UserContext(), db, auth, projectID)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// POST /api/projects/:id/items/import (multipart, field "file")
func ImportItems(c *fiber.Ctx) error {
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing upload field \"file\"")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not read upload")
	}
	defer f.Close()

	drafts, err := exports.ImportItems(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	items, err := services.ImportItems(c.UserContext(), db, auth, projectID, drafts)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(items)
}

// GET /api/items/:id
func GetItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	item, err := services.GetItemSummary(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// PUT /api/items/:id
func UpdateItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.ItemInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	item, err := services.UpdateItem(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// DELETE /api/items/:id
func DeleteItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteItem(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/items/:id/cost-details
func CreateCostDetail(c *fiber.Ctx) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.CostDetailInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	detail, err := services.CreateCostDetail(c.UserContext(), db, auth, itemID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

// GET /api/items/:id/cost-details
func GetCostDetails(c *fiber.Ctx) error {
	itemID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	details, err := services.ListCostDetails(c.UserContext(), db, auth, itemID)
	if err != nil {
		return err
	}
	return c.JSON(details)
}

// PUT /api/cost-details/:id
func UpdateCostDetail(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.CostDetailInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	detail, err := services.UpdateCostDetail(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(detail)
}

// DELETE /api/cost-details/:id
func DeleteCostDetail(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteCostDetail(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
