package services

import (
	"context"
	"errors"
	"fmt"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceInput struct {
	ProjectID     uint   `json:"project_id" validate:"required"`
	ContractorID  uint   `json:"contractor_id" validate:"required"`
	InvoiceNumber string `json:"invoice_number" validate:"max=50"`
	InvoiceDate   string `json:"invoice_date" validate:"required"`
	Description   string `json:"description"`
}

type InvoicePatch struct {
	InvoiceDate *string `json:"invoice_date"`
	Description *string `json:"description"`
}

type InvoiceFilter struct {
	ProjectID    uint
	ContractorID uint
	Status       models.InvoiceStatus
}

// LineInput names the source of a new invoice line: a cost detail when
// CostDetailID is set, otherwise the item.
type LineInput struct {
	ItemID       *uint           `json:"item_id"`
	CostDetailID *uint           `json:"cost_detail_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// CreateInvoice opens an invoice in status new. Without a client-supplied
// number one is drawn from numbers under the INV prefix, but only once every
// other check has passed.
func CreateInvoice(ctx context.Context, db *gorm.DB, auth AuthContext, in InvoiceInput, numbers Numberer) (*models.Invoice, error) {
	const op = "CreateInvoice"
	utils.NormalizeDTO(&in)
	if in.InvoiceNumber == "" && numbers == nil {
		return nil, invalid(op, "invoice number is required")
	}
	date, err := utils.ParseDate(in.InvoiceDate)
	if err != nil {
		return nil, invalid(op, "invoice_date: %v", err)
	}
	if _, err := loadProject(ctx, db, in.ProjectID); err != nil {
		return nil, err
	}
	if err := requireProject(ctx, db, auth, in.ProjectID); err != nil {
		return nil, err
	}
	if err := checkContractorRef(ctx, db, op, &in.ContractorID); err != nil {
		return nil, err
	}
	if in.InvoiceNumber != "" {
		if err := checkInvoiceNumberFree(ctx, db, op, in.InvoiceNumber); err != nil {
			return nil, err
		}
	} else {
		if in.InvoiceNumber, err = numbers.Generate(ctx, PrefixInvoice); err != nil {
			return nil, err
		}
		if err := checkInvoiceNumberFree(ctx, db, op, in.InvoiceNumber); err != nil {
			return nil, err
		}
	}
	invoice := models.Invoice{
		ProjectID:     in.ProjectID,
		ContractorID:  in.ContractorID,
		InvoiceNumber: in.InvoiceNumber,
		InvoiceDate:   date,
		Description:   in.Description,
		Status:        models.InvoiceNew,
	}
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &invoice, nil
}

func checkInvoiceNumberFree(ctx context.Context, db *gorm.DB, op, number string) error {
	var taken int64
	if err := db.WithContext(ctx).Model(&models.Invoice{}).Where("invoice_number = ?", number).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return invalid(op, "invoice number %s is already in use", number)
	}
	return nil
}

func UpdateInvoice(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, patch InvoicePatch) (*models.Invoice, error) {
	const op = "UpdateInvoice"
	invoice, err := loadInvoice(ctx, db, auth, id)
	if err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&patch)
	updates := map[string]any{}
	if patch.InvoiceDate != nil {
		date, err := utils.ParseDate(*patch.InvoiceDate)
		if err != nil {
			return nil, invalid(op, "invoice_date: %v", err)
		}
		updates["invoice_date"] = date
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if len(updates) == 0 {
		return invoice, nil
	}
	if err := db.WithContext(ctx).Model(invoice).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", id, err)
	}
	return loadInvoice(ctx, db, auth, id)
}

// SetInvoiceStatus applies a manual status change. Only the review states and
// cancelled can be chosen; the payment states are derived.
func SetInvoiceStatus(ctx context.Context, db *gorm.DB, auth AuthContext, id uint, status models.InvoiceStatus) (*models.Invoice, error) {
	const op = "SetInvoiceStatus"
	if !status.Valid() {
		return nil, invalid(op, "unknown invoice status %q", status)
	}
	if status == models.InvoicePartiallyPaid || status == models.InvoiceFullyPaid {
		return nil, invalid(op, "status %s is derived from payments and cannot be set", status)
	}
	var invoice models.Invoice
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&invoice, id).Error; err != nil {
			return lookup(err, "invoice", id)
		}
		if err := requireProject(ctx, tx, auth, invoice.ProjectID); err != nil {
			return err
		}
		if invoice.Status == status {
			return nil
		}
		if invoice.Status == models.InvoiceCancelled {
			return invalid(op, "invoice %s is cancelled", invoice.InvoiceNumber)
		}
		if status != models.InvoiceCancelled {
			paid, err := InvoicePaidAmount(tx, id)
			if err != nil {
				return err
			}
			if paid.IsPositive() {
				return invalid(op, "invoice %s already has payments", invoice.InvoiceNumber)
			}
		}
		invoice.Status = status
		return tx.Model(&invoice).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// DeleteInvoice removes the invoice with its payments and lines.
func DeleteInvoice(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) error {
	if err := auth.require(PermDeleteInvoices); err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := forUpdate(tx).First(&invoice, id).Error; err != nil {
			return lookup(err, "invoice", id)
		}
		payments := tx.Model(&models.Payment{}).Select("id").Where("invoice_id = ?", id)
		if err := tx.Where("payment_id IN (?)", payments).Delete(&models.PaymentDistribution{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
}

// GetInvoiceSummary loads the invoice with lines, payments and balances.
func GetInvoiceSummary(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) (*models.InvoiceSummary, error) {
	invoice, err := loadInvoice(ctx, db, auth, id)
	if err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Order("id").Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Distributions").Where("invoice_id = ?", id).Order("payment_date, id").Find(&invoice.Payments).Error; err != nil {
		return nil, err
	}
	lineIDs := make([]uint, len(invoice.Items))
	total := decimal.Zero
	for i, li := range invoice.Items {
		lineIDs[i] = li.ID
		total = total.Add(li.TotalPrice)
	}
	paid := decimal.Zero
	for i := range invoice.Payments {
		paid = paid.Add(invoice.Payments[i].Amount)
	}
	linePaid, err := invoiceItemPaidAmounts(db, lineIDs)
	if err != nil {
		return nil, err
	}
	summary := models.NewInvoiceSummary(*invoice, total, paid)
	summary.Lines = make([]models.InvoiceItemSummary, len(invoice.Items))
	for i, li := range invoice.Items {
		summary.Lines[i] = models.NewInvoiceItemSummary(li, linePaid[li.ID])
	}
	summary.Items = nil
	return &summary, nil
}

// ListInvoiceSummaries returns invoices visible to the caller, newest first,
// with balances but without lines.
func ListInvoiceSummaries(ctx context.Context, db *gorm.DB, auth AuthContext, f InvoiceFilter) ([]models.InvoiceSummary, error) {
	q := db.WithContext(ctx).Model(&models.Invoice{}).Order("invoice_date DESC, id DESC")
	if f.ProjectID != 0 {
		if err := requireProject(ctx, db, auth, f.ProjectID); err != nil {
			return nil, err
		}
		q = q.Where("project_id = ?", f.ProjectID)
	} else if !auth.Role.Elevated() {
		q = q.Where("project_id IN (?)", db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", auth.UserID))
	}
	if f.ContractorID != 0 {
		q = q.Where("contractor_id = ?", f.ContractorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var invoices []models.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	totals, paid, err := invoiceTotals(db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.InvoiceSummary, len(invoices))
	for i, inv := range invoices {
		out[i] = models.NewInvoiceSummary(inv, totals[inv.ID], paid[inv.ID])
	}
	return out, nil
}

// AddItemToInvoice bills quantity of an item or cost detail on the invoice.
// The source row is locked so concurrent additions cannot both pass the
// pooled quantity ceiling.
func AddItemToInvoice(ctx context.Context, db *gorm.DB, auth AuthContext, invoiceID uint, in LineInput) (*models.InvoiceItem, error) {
	const op = "AddItemToInvoice"
	if !in.Quantity.IsPositive() {
		return nil, invalid(op, "quantity must be greater than zero")
	}
	if in.ItemID == nil && in.CostDetailID == nil {
		return nil, invalid(op, "either item_id or cost_detail_id is required")
	}
	var line *models.InvoiceItem
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.First(&invoice, invoiceID).Error; err != nil {
			return lookup(err, "invoice", invoiceID)
		}
		if err := requireProject(ctx, tx, auth, invoice.ProjectID); err != nil {
			return err
		}
		if invoice.Status == models.InvoiceCancelled {
			return invalid(op, "invoice %s is cancelled", invoice.InvoiceNumber)
		}

		item, detail, err := lockLineSource(tx, op, invoice.ProjectID, in.ItemID, in.CostDetailID)
		if err != nil {
			return err
		}
		if err := checkQuantityCeiling(tx, op, item, detail, in.Quantity, 0); err != nil {
			return err
		}
		line, err = models.NewInvoiceItem(item, detail, in.Quantity)
		if err != nil {
			if errors.Is(err, models.ErrSourceMismatch) || errors.Is(err, models.ErrCostDetailNoQuantity) {
				return invalid(op, "%v", err)
			}
			return err
		}
		line.InvoiceID = invoice.ID
		return tx.Create(line).Error
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// lockLineSource loads and locks the billing source. With a cost detail the
// owning item is read too; an explicit item id must then match it.
func lockLineSource(tx *gorm.DB, op string, projectID uint, itemID, detailID *uint) (*models.Item, *models.CostDetail, error) {
	var detail *models.CostDetail
	if detailID != nil {
		detail = &models.CostDetail{}
		if err := forUpdate(tx).First(detail, *detailID).Error; err != nil {
			return nil, nil, lookup(err, "cost detail", *detailID)
		}
		if itemID != nil && *itemID != detail.ItemID {
			return nil, nil, invalid(op, "cost detail %d does not belong to item %d", detail.ID, *itemID)
		}
		itemID = &detail.ItemID
	}
	item := &models.Item{}
	q := tx
	if detail == nil {
		q = forUpdate(tx)
	}
	if err := q.First(item, *itemID).Error; err != nil {
		return nil, nil, lookup(err, "item", *itemID)
	}
	if item.ProjectID != projectID {
		return nil, nil, invalid(op, "item %d belongs to another project", item.ID)
	}
	return item, detail, nil
}

// checkQuantityCeiling rejects billing more than the source allows, pooled
// over all invoices. excludeLineID leaves a line being edited out of the sum.
func checkQuantityCeiling(tx *gorm.DB, op string, item *models.Item, detail *models.CostDetail, quantity decimal.Decimal, excludeLineID uint) error {
	if detail != nil {
		invoiced, err := CostDetailInvoicedQuantity(tx, detail.ID, excludeLineID)
		if err != nil {
			return err
		}
		if invoiced.Add(quantity).GreaterThan(detail.Quantity) {
			return invalid(op, "cost detail %d: %s already invoiced, %s requested, only %s available",
				detail.ID, invoiced, quantity, detail.Quantity.Sub(invoiced))
		}
		return nil
	}
	ceiling := item.BillableQuantity()
	if !ceiling.IsPositive() {
		return invalid(op, "item %d has no actual quantity to invoice", item.ID)
	}
	invoiced, err := ItemInvoicedQuantity(tx, item.ID, excludeLineID)
	if err != nil {
		return err
	}
	if invoiced.Add(quantity).GreaterThan(ceiling) {
		return invalid(op, "item %d: %s already invoiced, %s requested, only %s available",
			item.ID, invoiced, quantity, ceiling.Sub(invoiced))
	}
	return nil
}

// UpdateInvoiceItemQuantity changes the billed quantity of an unpaid line.
// The invoice row is locked first, as payments do, so no allocation can land
// on the line while its total changes.
func UpdateInvoiceItemQuantity(ctx context.Context, db *gorm.DB, auth AuthContext, lineID uint, quantity decimal.Decimal) (*models.InvoiceItem, error) {
	const op = "UpdateInvoiceItemQuantity"
	if !quantity.IsPositive() {
		return nil, invalid(op, "quantity must be greater than zero")
	}
	var line models.InvoiceItem
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := lockLineInvoice(ctx, tx, auth, lineID, &line)
		if err != nil {
			return err
		}
		if invoice.Status == models.InvoiceCancelled {
			return invalid(op, "invoice %s is cancelled", invoice.InvoiceNumber)
		}
		paid, err := InvoiceItemPaidAmount(tx, lineID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return invalid(op, "invoice line %d already has payments of %s", lineID, paid)
		}
		itemID := &line.ItemID
		if line.FromCostDetail() {
			itemID = nil
		}
		item, detail, err := lockLineSource(tx, op, invoice.ProjectID, itemID, line.CostDetailID)
		if err != nil {
			return err
		}
		if err := checkQuantityCeiling(tx, op, item, detail, quantity, lineID); err != nil {
			return err
		}
		line.SetQuantity(quantity)
		return tx.Model(&line).Updates(map[string]any{
			"quantity":    line.Quantity,
			"total_price": line.TotalPrice,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// DeleteInvoiceItem removes a line that no payment has been allocated to.
func DeleteInvoiceItem(ctx context.Context, db *gorm.DB, auth AuthContext, lineID uint) error {
	const op = "DeleteInvoiceItem"
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line models.InvoiceItem
		if _, err := lockLineInvoice(ctx, tx, auth, lineID, &line); err != nil {
			return err
		}
		var distributions int64
		if err := tx.Model(&models.PaymentDistribution{}).Where("invoice_item_id = ?", lineID).Count(&distributions).Error; err != nil {
			return err
		}
		if distributions > 0 {
			return conflict(op, "invoice line %d has %d payment allocation(s)", lineID, distributions)
		}
		return tx.Delete(&line).Error
	})
}

// lockLineInvoice locks the invoice owning the line, then loads the line
// into dst as it stands under that lock.
func lockLineInvoice(ctx context.Context, tx *gorm.DB, auth AuthContext, lineID uint, dst *models.InvoiceItem) (*models.Invoice, error) {
	var head models.InvoiceItem
	if err := tx.Select("id", "invoice_id").First(&head, lineID).Error; err != nil {
		return nil, lookup(err, "invoice line", lineID)
	}
	invoice, err := lockInvoice(ctx, tx, auth, head.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := forUpdate(tx).First(dst, lineID).Error; err != nil {
		return nil, lookup(err, "invoice line", lineID)
	}
	return invoice, nil
}

func loadInvoice(ctx context.Context, db *gorm.DB, auth AuthContext, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := db.WithContext(ctx).First(&invoice, id).Error; err != nil {
		return nil, lookup(err, "invoice", id)
	}
	if err := requireProject(ctx, db, auth, invoice.ProjectID); err != nil {
		return nil, err
	}
	return &invoice, nil
}
