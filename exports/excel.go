package exports

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"costtrack-backend/models"
	"costtrack-backend/services"
	"costtrack-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SheetBOQ         = "BOQ"
	SheetCostDetails = "Cost Details"
	SheetInvoice     = "Invoice"
	SheetPayments    = "Payments"
)

var costDetailHeader = []string{
	"Item Code", "Description", "Contractor", "Unit", "Quantity", "Unit Cost", "VAT %", "Base Cost", "VAT", "Total",
}

// ExportProject writes the project's bill of quantities and its cost
// breakdown as an xlsx workbook.
func ExportProject(project models.ProjectSummary, items []models.ItemSummary, contractors map[uint]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetBOQ); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetBOQ, 1, []interface{}{project.Name, project.Code, project.Location}); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetBOQ, 3, toRow(models.ItemRecordHeader)); err != nil {
		return nil, err
	}
	row := 4
	for _, it := range items {
		if err := writeRow(f, SheetBOQ, row, it.Record(contractorName(contractors, it.ContractorID)).Values()); err != nil {
			return nil, err
		}
		row++
	}
	totals := []interface{}{
		"", "", "Total", "", "",
		"", "", money(project.ContractTotalCost),
		"", "", money(project.ActualTotalCost),
		money(project.PaidAmount), money(project.RemainingAmount), money(project.CostVariance),
	}
	if err := writeRow(f, SheetBOQ, row+1, totals); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SheetCostDetails); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetCostDetails, 1, toRow(costDetailHeader)); err != nil {
		return nil, err
	}
	row = 2
	for _, it := range items {
		for i := range it.CostDetails {
			d := &it.CostDetails[i]
			values := []interface{}{
				it.Code, d.Description, contractorName(contractors, d.ContractorID), d.Unit,
				d.Quantity.InexactFloat64(), d.UnitCost.InexactFloat64(), d.VatPercent.InexactFloat64(),
				money(d.BaseCost()), money(d.VatAmount()), money(d.TotalCost()),
			}
			if err := writeRow(f, SheetCostDetails, row, values); err != nil {
				return nil, err
			}
			row++
		}
	}
	return f.WriteToBuffer()
}

var invoiceLineHeader = []string{"#", "Description", "Unit", "Quantity", "Unit Price", "Total", "Paid", "Remaining"}
var paymentHeader = []string{"Date", "Reference", "Description", "Amount"}

// ExportInvoice writes the invoice header, its lines and its payments.
func ExportInvoice(inv models.InvoiceSummary, project, contractor string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoice); err != nil {
		return nil, err
	}
	head := [][]interface{}{
		{"Invoice", inv.InvoiceNumber},
		{"Date", inv.InvoiceDate.Format(utils.DateLayout)},
		{"Project", project},
		{"Contractor", contractor},
		{"Status", string(inv.Status)},
		{"Description", inv.Description},
	}
	for i, r := range head {
		if err := writeRow(f, SheetInvoice, i+1, r); err != nil {
			return nil, err
		}
	}
	row := len(head) + 2
	if err := writeRow(f, SheetInvoice, row, toRow(invoiceLineHeader)); err != nil {
		return nil, err
	}
	for i, li := range inv.Lines {
		row++
		values := []interface{}{
			i + 1, li.Description, li.Unit, li.Quantity.InexactFloat64(), li.UnitPrice.InexactFloat64(),
			money(li.TotalPrice), money(li.PaidAmount), money(li.RemainingAmount),
		}
		if err := writeRow(f, SheetInvoice, row, values); err != nil {
			return nil, err
		}
	}
	row += 2
	summary := [][]interface{}{
		{"", "", "", "", "Total", money(inv.TotalAmount)},
		{"", "", "", "", "Paid", money(inv.PaidAmount)},
		{"", "", "", "", "Remaining", money(inv.RemainingAmount)},
	}
	for i, r := range summary {
		if err := writeRow(f, SheetInvoice, row+i, r); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(SheetPayments); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetPayments, 1, toRow(paymentHeader)); err != nil {
		return nil, err
	}
	for i, p := range inv.Payments {
		values := []interface{}{p.PaymentDate.Format(utils.DateLayout), p.Reference, p.Description, money(p.Amount)}
		if err := writeRow(f, SheetPayments, i+2, values); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

// ImportItems reads item drafts from the first sheet of an xlsx workbook.
// The first row is a header; columns are code, description, unit, contract
// quantity, contract unit cost, actual quantity, actual unit cost. Blank
// rows are skipped.
func ImportItems(r io.Reader) ([]services.ItemInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}

	var drafts []services.ItemInput
	for i, cols := range rows {
		if i == 0 || blank(cols) {
			continue
		}
		rowNo := i + 1
		cell := func(n int) string {
			if n < len(cols) {
				return strings.TrimSpace(cols[n])
			}
			return ""
		}
		in := services.ItemInput{
			Code:        cell(0),
			Description: cell(1),
			Unit:        cell(2),
		}
		if in.ContractQuantity, err = parseNumber(cell(3)); err != nil {
			return nil, fmt.Errorf("row %d: contract quantity: %w", rowNo, err)
		}
		if in.ContractUnitCost, err = parseNumber(cell(4)); err != nil {
			return nil, fmt.Errorf("row %d: contract unit cost: %w", rowNo, err)
		}
		if in.ActualQuantity, err = parseOptionalNumber(cell(5)); err != nil {
			return nil, fmt.Errorf("row %d: actual quantity: %w", rowNo, err)
		}
		if in.ActualUnitCost, err = parseOptionalNumber(cell(6)); err != nil {
			return nil, fmt.Errorf("row %d: actual unit cost: %w", rowNo, err)
		}
		drafts = append(drafts, in)
	}
	return drafts, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toRow(header []string) []interface{} {
	out := make([]interface{}, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func money(d decimal.Decimal) float64 {
	return utils.RoundMoney(d).InexactFloat64()
}

func contractorName(names map[uint]string, id *uint) string {
	if id == nil {
		return ""
	}
	return names[*id]
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func parseOptionalNumber(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseNumber(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
