package services

import (
	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Aggregates are computed on demand inside the caller's transaction so they
// always see the caller's own uncommitted writes.

type sumRow struct {
	Total decimal.Decimal
}

type groupedSumRow struct {
	GroupKey uint
	Total    decimal.Decimal
}

func sum(q *gorm.DB, expr string) (decimal.Decimal, error) {
	var row sumRow
	if err := q.Select("COALESCE(SUM(" + expr + "), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func groupedSum(q *gorm.DB, key, expr string) (map[uint]decimal.Decimal, error) {
	var rows []groupedSumRow
	if err := q.Select(key + " AS group_key, COALESCE(SUM(" + expr + "), 0) AS total").Group(key).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// InvoiceTotalAmount sums the invoice's line totals.
func InvoiceTotalAmount(db *gorm.DB, invoiceID uint) (decimal.Decimal, error) {
	return sum(db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", invoiceID), "total_price")
}

// InvoicePaidAmount sums the invoice's payments.
func InvoicePaidAmount(db *gorm.DB, invoiceID uint) (decimal.Decimal, error) {
	return sum(db.Model(&models.Payment{}).Where("invoice_id = ?", invoiceID), "amount")
}

// InvoiceItemPaidAmount sums the distributions allocated to one line.
func InvoiceItemPaidAmount(db *gorm.DB, invoiceItemID uint) (decimal.Decimal, error) {
	return sum(db.Model(&models.PaymentDistribution{}).Where("invoice_item_id = ?", invoiceItemID), "amount")
}

func invoiceItemPaidAmounts(db *gorm.DB, invoiceItemIDs []uint) (map[uint]decimal.Decimal, error) {
	if len(invoiceItemIDs) == 0 {
		return map[uint]decimal.Decimal{}, nil
	}
	return groupedSum(db.Model(&models.PaymentDistribution{}).Where("invoice_item_id IN ?", invoiceItemIDs),
		"invoice_item_id", "amount")
}

func invoiceTotals(db *gorm.DB, invoiceIDs []uint) (totals, paid map[uint]decimal.Decimal, err error) {
	if len(invoiceIDs) == 0 {
		return map[uint]decimal.Decimal{}, map[uint]decimal.Decimal{}, nil
	}
	totals, err = groupedSum(db.Model(&models.InvoiceItem{}).Where("invoice_id IN ?", invoiceIDs), "invoice_id", "total_price")
	if err != nil {
		return nil, nil, err
	}
	paid, err = groupedSum(db.Model(&models.Payment{}).Where("invoice_id IN ?", invoiceIDs), "invoice_id", "amount")
	if err != nil {
		return nil, nil, err
	}
	return totals, paid, nil
}

// ItemPaidAmount sums distributions over every invoice line sourced from the
// item, directly or through one of its cost details.
func ItemPaidAmount(db *gorm.DB, itemID uint) (decimal.Decimal, error) {
	return sum(itemDistributions(db).Where("invoice_items.item_id = ?", itemID), "payment_distributions.amount")
}

func itemPaidAmounts(db *gorm.DB, itemIDs []uint) (map[uint]decimal.Decimal, error) {
	if len(itemIDs) == 0 {
		return map[uint]decimal.Decimal{}, nil
	}
	return groupedSum(itemDistributions(db).Where("invoice_items.item_id IN ?", itemIDs),
		"invoice_items.item_id", "payment_distributions.amount")
}

func itemDistributions(db *gorm.DB) *gorm.DB {
	return db.Table("payment_distributions").
		Joins("JOIN invoice_items ON invoice_items.id = payment_distributions.invoice_item_id")
}

// ItemInvoicedQuantity is the quantity billed directly against the item over
// all invoices. Lines sourced from cost details are not counted. A non-zero
// excludeLineID leaves that line out.
func ItemInvoicedQuantity(db *gorm.DB, itemID, excludeLineID uint) (decimal.Decimal, error) {
	q := db.Model(&models.InvoiceItem{}).Where("item_id = ? AND cost_detail_id IS NULL", itemID)
	if excludeLineID != 0 {
		q = q.Where("id <> ?", excludeLineID)
	}
	return sum(q, "quantity")
}

func itemInvoicedQuantities(db *gorm.DB, itemIDs []uint) (map[uint]decimal.Decimal, error) {
	if len(itemIDs) == 0 {
		return map[uint]decimal.Decimal{}, nil
	}
	return groupedSum(db.Model(&models.InvoiceItem{}).Where("item_id IN ? AND cost_detail_id IS NULL", itemIDs),
		"item_id", "quantity")
}

// CostDetailInvoicedQuantity is the quantity billed against the cost detail
// over all invoices.
func CostDetailInvoicedQuantity(db *gorm.DB, costDetailID, excludeLineID uint) (decimal.Decimal, error) {
	q := db.Model(&models.InvoiceItem{}).Where("cost_detail_id = ?", costDetailID)
	if excludeLineID != 0 {
		q = q.Where("id <> ?", excludeLineID)
	}
	return sum(q, "quantity")
}

func costDetailInvoicedQuantities(db *gorm.DB, detailIDs []uint) (map[uint]decimal.Decimal, error) {
	if len(detailIDs) == 0 {
		return map[uint]decimal.Decimal{}, nil
	}
	return groupedSum(db.Model(&models.InvoiceItem{}).Where("cost_detail_id IN ?", detailIDs),
		"cost_detail_id", "quantity")
}
