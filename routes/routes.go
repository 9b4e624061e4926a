package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"costtrack-backend/controllers"
	"costtrack-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, jwtSecret []byte) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.Authenticated(jwtSecret))

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency(db))

	// Then the per-request transaction (commits/rolls back)
	protected.Use(middlewares.Tx(db))

	// Users
	protected.Get("/me", controllers.Me)
	protected.Post("/users", controllers.CreateUser)
	protected.Get("/users", controllers.GetUsers)
	protected.Put("/users/:id", controllers.UpdateUser)

	// Projects
	protected.Post("/projects", controllers.CreateProject)
	protected.Get("/projects", controllers.GetProjects)
	protected.Get("/projects/:id", controllers.GetProject)
	protected.Put("/projects/:id", controllers.UpdateProject)
	protected.Delete("/projects/:id", controllers.DeleteProject)
	protected.Get("/projects/:id/members", controllers.GetProjectMembers)
	protected.Post("/projects/:id/members", controllers.AddProjectMember)
	protected.Delete("/projects/:id/members/:userId", controllers.RemoveProjectMember)
	protected.Get("/projects/:id/export", controllers.ExportProject)
	protected.Post("/projects/:id/sheets-sync", controllers.SyncProjectSheet)

	// Items and cost details
	protected.Post("/projects/:id/items", controllers.CreateItem)
	protected.Get("/projects/:id/items", controllers.GetItems)
	protected.Post("/projects/:id/items/import", controllers.ImportItems)
	protected.Get("/items/:id", controllers.GetItem)
	protected.Put("/items/:id", controllers.UpdateItem)
	protected.Delete("/items/:id", controllers.DeleteItem)
	protected.Post("/items/:id/cost-details", controllers.CreateCostDetail)
	protected.Get("/items/:id/cost-details", controllers.GetCostDetails)
	protected.Put("/cost-details/:id", controllers.UpdateCostDetail)
	protected.Delete("/cost-details/:id", controllers.DeleteCostDetail)

	// Contractors
	protected.Post("/contractors", controllers.CreateContractor)
	protected.Get("/contractors", controllers.GetContractors)
	protected.Get("/contractors/:id", controllers.GetContractor)
	protected.Put("/contractors/:id", controllers.UpdateContractor)
	protected.Delete("/contractors/:id", controllers.DeleteContractor)

	// Invoices, lines and payments
	protected.Post("/invoices", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoices/:id", controllers.GetInvoice)
	protected.Put("/invoices/:id", controllers.UpdateInvoice)
	protected.Put("/invoices/:id/status", controllers.SetInvoiceStatus)
	protected.Delete("/invoices/:id", controllers.DeleteInvoice)
	protected.Get("/invoices/:id/export", controllers.ExportInvoice)
	protected.Post("/invoices/:id/items", controllers.AddInvoiceItem)
	protected.Put("/invoice-items/:id", controllers.UpdateInvoiceItem)
	protected.Delete("/invoice-items/:id", controllers.DeleteInvoiceItem)
	protected.Post("/invoices/:id/payments", controllers.CreatePayment)
	protected.Get("/invoices/:id/payments", controllers.ListPayments)
	protected.Get("/payments/:id", controllers.GetPayment)
	protected.Put("/payments/:id", controllers.UpdatePayment)
	protected.Delete("/payments/:id", controllers.DeletePayment)

	// Document number counters
	protected.Get("/counters", controllers.GetCounters)
	protected.Get("/counters/:prefix/next", controllers.NextNumber)
	protected.Post("/counters/:prefix/reset", controllers.ResetCounter)
}
