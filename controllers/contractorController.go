package controllers

import (
	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

// POST /api/contractors
func CreateContractor(c *fiber.Ctx) error {
	var in services.ContractorInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	contractor, err := services.CreateContractor(c.UserContext(), db, auth, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(contractor)
}

// GET /api/contractors?active=true
func GetContractors(c *fiber.Ctx) error {
	db, _, err := requestDB(c)
	if err != nil {
		return err
	}
	contractors, err := services.ListContractors(c.UserContext(), db, c.QueryBool("active", false))
	if err != nil {
		return err
	}
	return c.JSON(contractors)
}

// GET /api/contractors/:id
func GetContractor(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, _, err := requestDB(c)
	if err != nil {
		return err
	}
	contractor, err := services.GetContractor(c.UserContext(), db, id)
	if err != nil {
		return err
	}
	return c.JSON(contractor)
}

// PUT /api/contractors/:id
func UpdateContractor(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.ContractorPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	contractor, err := services.UpdateContractor(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(contractor)
}

// DELETE /api/contractors/:id
func DeleteContractor(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteContractor(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
