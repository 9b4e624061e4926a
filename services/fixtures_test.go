package services

import (
	"context"
	"path/filepath"
	"testing"

	"costtrack-backend/database"
	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	admin    = AuthContext{UserID: "admin-1", Role: models.RoleAdmin}
	subAdmin = AuthContext{UserID: "sub-1", Role: models.RoleSubAdmin}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "costtrack.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, ctx: context.Background(), db: newTestDB(t)}
}

func (f *fixture) project(name string) *models.Project {
	f.t.Helper()
	p, err := CreateProject(f.ctx, f.db, admin, ProjectInput{Name: name, Code: "P-" + name})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) contractor(name string) *models.Contractor {
	f.t.Helper()
	c, err := CreateContractor(f.ctx, f.db, admin, ContractorInput{Name: name})
	require.NoError(f.t, err)
	return c
}

// item creates an item whose actual quantity and unit cost are set.
func (f *fixture) item(projectID uint, actualQty, unitCost string) *models.Item {
	f.t.Helper()
	it, err := CreateItem(f.ctx, f.db, admin, projectID, ItemInput{
		Code:             "A.1",
		Description:      "Excavation",
		Unit:             "m3",
		ContractQuantity: dec(actualQty),
		ContractUnitCost: dec(unitCost),
		ActualQuantity:   nullDec(actualQty),
		ActualUnitCost:   nullDec(unitCost),
	})
	require.NoError(f.t, err)
	return it
}

func (f *fixture) invoice(projectID, contractorID uint, number string) *models.Invoice {
	f.t.Helper()
	inv, err := CreateInvoice(f.ctx, f.db, admin, InvoiceInput{
		ProjectID:     projectID,
		ContractorID:  contractorID,
		InvoiceNumber: number,
		InvoiceDate:   "2026-03-01",
	}, nil)
	require.NoError(f.t, err)
	return inv
}

func (f *fixture) line(invoiceID, itemID uint, qty string) *models.InvoiceItem {
	f.t.Helper()
	li, err := AddItemToInvoice(f.ctx, f.db, admin, invoiceID, LineInput{ItemID: &itemID, Quantity: dec(qty)})
	require.NoError(f.t, err)
	return li
}

func (f *fixture) pay(invoiceID uint, amounts map[uint]decimal.Decimal) (*models.Payment, error) {
	return AddPayment(f.ctx, f.db, admin, invoiceID, PaymentInput{PaymentDate: "2026-03-15", Amounts: amounts}, nil)
}

func (f *fixture) status(invoiceID uint) models.InvoiceStatus {
	f.t.Helper()
	var inv models.Invoice
	require.NoError(f.t, f.db.First(&inv, invoiceID).Error)
	return inv.Status
}

func (f *fixture) user(email string, role models.Role) *models.User {
	f.t.Helper()
	u, err := CreateUser(f.ctx, f.db, admin, UserInput{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  "correct horse",
		Role:      string(role),
	})
	require.NoError(f.t, err)
	return u
}

// invoiceSetup is one project with one item (actual 10 x 100) billed in full
// on a single line, giving an invoice total of 1000.
type invoiceSetup struct {
	project *models.Project
	item    *models.Item
	invoice *models.Invoice
	line    *models.InvoiceItem
}

func (f *fixture) billedInvoice() invoiceSetup {
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "10", "100")
	inv := f.invoice(p.ID, c.ID, "INV-2026-0001")
	li := f.line(inv.ID, it.ID, "10")
	return invoiceSetup{project: p, item: it, invoice: inv, line: li}
}
