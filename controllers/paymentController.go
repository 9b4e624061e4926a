package controllers

import (
	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

// POST /api/invoices/:id/payments
// The reference is drawn from the PAY sequence when omitted.
func CreatePayment(c *fiber.Ctx) error {
	invoiceID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	payment, err := services.AddPayment(c.UserContext(), db, auth, invoiceID, in, numberer())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

// GET /api/invoices/:id/payments
func ListPayments(c *fiber.Ctx) error {
	invoiceID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	payments, err := services.ListPayments(c.UserContext(), db, auth, invoiceID)
	if err != nil {
		return err
	}
	return c.JSON(payments)
}

// GET /api/payments/:id
func GetPayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	payment, err := services.GetPayment(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	return c.JSON(payment)
}

// PUT /api/payments/:id
func UpdatePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	payment, err := services.EditPayment(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(payment)
}

// DELETE /api/payments/:id
func DeletePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeletePayment(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
