package controllers

import (
	"fmt"

	"costtrack-backend/exports"
	"costtrack-backend/middlewares"
	"costtrack-backend/models"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type InvoiceStatusDTO struct {
	Status string `json:"status" validate:"required"`
}

type LineQuantityDTO struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// POST /api/invoices
// The invoice number is drawn from the INV sequence when omitted.
func CreateInvoice(c *fiber.Ctx) error {
	var in services.InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.CreateInvoice(c.UserContext(), db, auth, in, numberer())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// GET /api/invoices?project_id=&contractor_id=&status=
func GetInvoices(c *fiber.Ctx) error {
	projectID, err := queryID(c, "project_id")
	if err != nil {
		return err
	}
	contractorID, err := queryID(c, "contractor_id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	invoices, err := services.ListInvoiceSummaries(c.UserContext(), db, auth, services.InvoiceFilter{
		ProjectID:    projectID,
		ContractorID: contractorID,
		Status:       models.InvoiceStatus(c.Query("status")),
	})
	if err != nil {
		return err
	}
	return c.JSON(invoices)
}

// GET /api/invoices/:id
func GetInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	summary, err := services.GetInvoiceSummary(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// PUT /api/invoices/:id
func UpdateInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.InvoicePatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.UpdateInvoice(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// PUT /api/invoices/:id/status
func SetInvoiceStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in InvoiceStatusDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	invoice, err := services.SetInvoiceStatus(c.UserContext(), db, auth, id, models.InvoiceStatus(in.Status))
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// DELETE /api/invoices/:id
func DeleteInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteInvoice(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/invoices/:id/export
func ExportInvoice(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	summary, err := services.GetInvoiceSummary(c.UserContext(), db, auth, id)
	if err != nil {
		return err
	}
	project, err := services.GetProject(c.UserContext(), db, auth, summary.ProjectID)
	if err != nil {
		return err
	}
	contractor, err := services.GetContractor(c.UserContext(), db, summary.ContractorID)
	if err != nil {
		return err
	}
	buf, err := exports.ExportInvoice(*summary, project.Name, contractor.Name)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, exports.ContentTypeXLSX)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, summary.InvoiceNumber))
	return c.Send(buf.Bytes())
}

// POST /api/invoices/:id/items
func AddInvoiceItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.LineInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	line, err := services.AddItemToInvoice(c.UserContext(), db, auth, id, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(line)
}

// PUT /api/invoice-items/:id
func UpdateInvoiceItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in LineQuantityDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	line, err := services.UpdateInvoiceItemQuantity(c.UserContext(), db, auth, id, in.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(line)
}

// DELETE /api/invoice-items/:id
func DeleteInvoiceItem(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	if err := services.DeleteInvoiceItem(c.UserContext(), db, auth, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
