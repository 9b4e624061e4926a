package exports

import (
	"bytes"
	"testing"
	"time"

	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExportProject(t *testing.T) {
	contractorID := uint(3)
	item := models.Item{
		ID:               1,
		Code:             "A.1",
		Description:      "Excavation",
		Unit:             "m3",
		ContractorID:     &contractorID,
		ContractQuantity: d("10"),
		ContractUnitCost: d("100"),
		ActualQuantity:   decimal.NewNullDecimal(d("8")),
		ActualUnitCost:   decimal.NewNullDecimal(d("100")),
	}
	details := []models.CostDetail{{Description: "Dewatering", Unit: "day", Quantity: d("2"), UnitCost: d("50"), VatPercent: d("20")}}
	items := []models.ItemSummary{models.NewItemSummary(item, details, d("300"), d("3"))}
	project := models.NewProjectSummary(models.Project{Name: "Depot", Code: "DEP"}, items)

	buf, err := ExportProject(project, items, map[uint]string{contractorID: "Acme Build"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetBOQ, SheetCostDetails}, f.GetSheetList())

	rows, err := f.GetRows(SheetBOQ)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 6)
	assert.Equal(t, "Depot", rows[0][0])
	assert.Equal(t, models.ItemRecordHeader, rows[2])
	assert.Equal(t, "A.1", rows[3][1])
	assert.Equal(t, "Acme Build", rows[3][4])
	assert.Equal(t, "920", rows[3][10]) // 800 actual + 120 details
	assert.Equal(t, "Total", rows[5][2])
	assert.Equal(t, "620", rows[5][12])

	detailRows, err := f.GetRows(SheetCostDetails)
	require.NoError(t, err)
	require.Len(t, detailRows, 2)
	assert.Equal(t, "Dewatering", detailRows[1][1])
	assert.Equal(t, "120", detailRows[1][9])
}

func TestExportInvoice(t *testing.T) {
	inv := models.Invoice{
		InvoiceNumber: "INV-2026-0004",
		InvoiceDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:        models.InvoicePartiallyPaid,
	}
	line := models.InvoiceItem{ID: 9, Description: "Excavation", Unit: "m3", UnitPrice: d("100")}
	line.SetQuantity(d("5"))
	inv.Payments = []models.Payment{{
		Reference:   "PAY-2026-0001",
		PaymentDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      d("200"),
	}}
	summary := models.NewInvoiceSummary(inv, d("500"), d("200"))
	summary.Lines = []models.InvoiceItemSummary{models.NewInvoiceItemSummary(line, d("200"))}

	buf, err := ExportInvoice(summary, "Depot", "Acme Build")
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	number, err := f.GetCellValue(SheetInvoice, "B1")
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0004", number)
	status, err := f.GetCellValue(SheetInvoice, "B5")
	require.NoError(t, err)
	assert.Equal(t, "partially_paid", status)
	remaining, err := f.GetCellValue(SheetInvoice, "H9")
	require.NoError(t, err)
	assert.Equal(t, "300", remaining)

	payments, err := f.GetRows(SheetPayments)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, []string{"2026-03-15", "PAY-2026-0001", "", "200"}, payments[1])
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		require.NoError(t, writeRow(f, "Sheet1", i+1, r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportItems(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Code", "Description", "Unit", "Contract Qty", "Contract Unit Cost", "Actual Qty", "Actual Unit Cost"},
		{"A.1", "Excavation", "m3", 10, "1,250.50", 8, 1200},
		{},
		{"A.2", "Backfill", "m3", "4", "30"},
	})

	drafts, err := ImportItems(buf)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "A.1", drafts[0].Code)
	assert.True(t, drafts[0].ContractUnitCost.Equal(d("1250.5")))
	require.True(t, drafts[0].ActualQuantity.Valid)
	assert.True(t, drafts[0].ActualQuantity.Decimal.Equal(d("8")))

	assert.Equal(t, "Backfill", drafts[1].Description)
	assert.False(t, drafts[1].ActualQuantity.Valid)
	assert.False(t, drafts[1].ActualUnitCost.Valid)
}

func TestImportItemsReportsRow(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Code", "Description", "Unit", "Contract Qty", "Contract Unit Cost"},
		{"A.1", "Excavation", "m3", "10", "100"},
		{"A.2", "Backfill", "m3", "ten", "30"},
	})

	_, err := ImportItems(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3: contract quantity")
}

func TestImportItemsRejectsGarbage(t *testing.T) {
	_, err := ImportItems(bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)
}
