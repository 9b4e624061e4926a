package services

import (
	"context"
	"fmt"
	"sort"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentInput carries a payment and its split over invoice lines, keyed by
// invoice line id. Zero or negative amounts are ignored; positive amounts
// below one cent are rejected.
type PaymentInput struct {
	PaymentDate string                   `json:"payment_date" validate:"required"`
	Description string                   `json:"description"`
	Reference   string                   `json:"reference" validate:"max=50"`
	Amounts     map[uint]decimal.Decimal `json:"amounts"`
}

type allocation struct {
	lineID uint
	amount decimal.Decimal
}

// allocations keeps the positive amounts, rounded to cents, in line order.
func (in PaymentInput) allocations(op string) ([]allocation, error) {
	out := make([]allocation, 0, len(in.Amounts))
	for id, amt := range in.Amounts {
		if !amt.IsPositive() {
			continue
		}
		rounded := utils.RoundMoney(amt)
		if !rounded.IsPositive() {
			return nil, invalid(op, "amount %s on line %d is less than one cent", amt, id)
		}
		out = append(out, allocation{lineID: id, amount: rounded})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lineID < out[j].lineID })
	return out, nil
}

// AddPayment records a payment on the invoice and recomputes its status. Every
// allocation must fit the line's remaining balance or nothing is written.
// An empty reference is drawn from numbers under the PAY prefix once the
// allocations have been accepted; with numbers nil it stays empty.
func AddPayment(ctx context.Context, db *gorm.DB, auth AuthContext, invoiceID uint, in PaymentInput, numbers Numberer) (*models.Payment, error) {
	const op = "AddPayment"
	utils.NormalizeDTO(&in)
	date, err := utils.ParseDate(in.PaymentDate)
	if err != nil {
		return nil, invalid(op, "payment_date: %v", err)
	}
	allocs, err := in.allocations(op)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, invalid(op, "nothing to pay")
	}

	var payment models.Payment
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := lockInvoice(ctx, tx, auth, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == models.InvoiceCancelled {
			return invalid(op, "invoice %s is cancelled", invoice.InvoiceNumber)
		}
		if err := checkAllocations(tx, op, invoice, allocs, nil); err != nil {
			return err
		}
		if in.Reference == "" && numbers != nil {
			if in.Reference, err = numbers.Generate(ctx, PrefixPayment); err != nil {
				return err
			}
		}

		payment = models.Payment{
			InvoiceID:   invoice.ID,
			Reference:   in.Reference,
			PaymentDate: date,
			Description: in.Description,
		}
		for _, a := range allocs {
			payment.Distributions = append(payment.Distributions, models.PaymentDistribution{
				InvoiceItemID: a.lineID,
				Amount:        a.amount,
			})
		}
		payment.Amount = payment.DistributedTotal()
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return RecalculateInvoiceStatus(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// EditPayment replaces the payment's allocations with in.Amounts. Lines left
// out lose their allocation. A line may take its remaining balance plus what
// this payment already gave it.
func EditPayment(ctx context.Context, db *gorm.DB, auth AuthContext, paymentID uint, in PaymentInput) (*models.Payment, error) {
	const op = "EditPayment"
	utils.NormalizeDTO(&in)
	date, err := utils.ParseDate(in.PaymentDate)
	if err != nil {
		return nil, invalid(op, "payment_date: %v", err)
	}
	allocs, err := in.allocations(op)
	if err != nil {
		return nil, err
	}
	if len(allocs) == 0 {
		return nil, invalid(op, "nothing to pay; delete the payment instead")
	}

	var payment models.Payment
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head models.Payment
		if err := tx.Select("id", "invoice_id").First(&head, paymentID).Error; err != nil {
			return lookup(err, "payment", paymentID)
		}
		invoice, err := lockInvoice(ctx, tx, auth, head.InvoiceID)
		if err != nil {
			return err
		}
		if err := tx.Preload("Distributions").First(&payment, paymentID).Error; err != nil {
			return lookup(err, "payment", paymentID)
		}
		prior := make(map[uint]decimal.Decimal, len(payment.Distributions))
		existing := make(map[uint]models.PaymentDistribution, len(payment.Distributions))
		for _, d := range payment.Distributions {
			prior[d.InvoiceItemID] = d.Amount
			existing[d.InvoiceItemID] = d
		}
		if err := checkAllocations(tx, op, invoice, allocs, prior); err != nil {
			return err
		}

		keep := make(map[uint]bool, len(allocs))
		var distributions []models.PaymentDistribution
		for _, a := range allocs {
			keep[a.lineID] = true
			d, ok := existing[a.lineID]
			switch {
			case !ok:
				d = models.PaymentDistribution{PaymentID: payment.ID, InvoiceItemID: a.lineID, Amount: a.amount}
				if err := tx.Create(&d).Error; err != nil {
					return err
				}
			case !d.Amount.Equal(a.amount):
				d.Amount = a.amount
				if err := tx.Model(&d).Update("amount", a.amount).Error; err != nil {
					return err
				}
			}
			distributions = append(distributions, d)
		}
		for lineID, d := range existing {
			if keep[lineID] {
				continue
			}
			if err := tx.Delete(&models.PaymentDistribution{}, d.ID).Error; err != nil {
				return err
			}
		}

		payment.Distributions = distributions
		payment.Amount = payment.DistributedTotal()
		payment.PaymentDate = date
		payment.Description = in.Description
		updates := map[string]any{
			"amount":       payment.Amount,
			"payment_date": payment.PaymentDate,
			"description":  payment.Description,
		}
		if in.Reference != "" {
			payment.Reference = in.Reference
			updates["reference"] = in.Reference
		}
		if err := tx.Model(&models.Payment{ID: payment.ID}).Updates(updates).Error; err != nil {
			return fmt.Errorf("update payment %d: %w", paymentID, err)
		}
		return RecalculateInvoiceStatus(tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment removes the payment with its allocations and recomputes the
// invoice status.
func DeletePayment(ctx context.Context, db *gorm.DB, auth AuthContext, paymentID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Select("id", "invoice_id").First(&payment, paymentID).Error; err != nil {
			return lookup(err, "payment", paymentID)
		}
		invoice, err := lockInvoice(ctx, tx, auth, payment.InvoiceID)
		if err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", paymentID).Delete(&models.PaymentDistribution{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Payment{}, paymentID).Error; err != nil {
			return err
		}
		return RecalculateInvoiceStatus(tx, invoice)
	})
}

func GetPayment(ctx context.Context, db *gorm.DB, auth AuthContext, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := db.WithContext(ctx).Preload("Distributions").First(&payment, paymentID).Error; err != nil {
		return nil, lookup(err, "payment", paymentID)
	}
	if _, err := loadInvoice(ctx, db, auth, payment.InvoiceID); err != nil {
		return nil, err
	}
	return &payment, nil
}

func ListPayments(ctx context.Context, db *gorm.DB, auth AuthContext, invoiceID uint) ([]models.Payment, error) {
	if _, err := loadInvoice(ctx, db, auth, invoiceID); err != nil {
		return nil, err
	}
	var payments []models.Payment
	err := db.WithContext(ctx).Preload("Distributions").
		Where("invoice_id = ?", invoiceID).
		Order("payment_date, id").
		Find(&payments).Error
	return payments, err
}

// RecalculateInvoiceStatus derives the status from the invoice's current
// totals and stores it when it changed. Cancelled invoices are left alone.
func RecalculateInvoiceStatus(tx *gorm.DB, invoice *models.Invoice) error {
	if invoice.Status == models.InvoiceCancelled {
		return nil
	}
	total, err := InvoiceTotalAmount(tx, invoice.ID)
	if err != nil {
		return err
	}
	paid, err := InvoicePaidAmount(tx, invoice.ID)
	if err != nil {
		return err
	}
	next := models.NextInvoiceStatus(invoice.Status, paid, total)
	if next == invoice.Status {
		return nil
	}
	if err := tx.Model(&models.Invoice{ID: invoice.ID}).Update("status", next).Error; err != nil {
		return fmt.Errorf("update status of invoice %d: %w", invoice.ID, err)
	}
	invoice.Status = next
	return nil
}

// checkAllocations verifies every allocation targets a line of the invoice
// and fits that line's remaining balance, plus prior[line] when editing.
func checkAllocations(tx *gorm.DB, op string, invoice *models.Invoice, allocs []allocation, prior map[uint]decimal.Decimal) error {
	ids := make([]uint, len(allocs))
	for i, a := range allocs {
		ids[i] = a.lineID
	}
	var lines []models.InvoiceItem
	if err := tx.Where("invoice_id = ? AND id IN ?", invoice.ID, ids).Find(&lines).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.InvoiceItem, len(lines))
	for _, li := range lines {
		byID[li.ID] = li
	}
	paid, err := invoiceItemPaidAmounts(tx, ids)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		li, ok := byID[a.lineID]
		if !ok {
			return invalid(op, "invoice line %d does not belong to invoice %s", a.lineID, invoice.InvoiceNumber)
		}
		ceiling := li.TotalPrice.Sub(paid[a.lineID]).Add(prior[a.lineID])
		if a.amount.GreaterThan(ceiling.Add(models.AllocationTolerance)) {
			return invalid(op, "%s exceeds the remaining %s on line %d (%s)",
				a.amount.StringFixed(2), ceiling.StringFixed(2), li.ID, li.Description)
		}
	}
	return nil
}

func lockInvoice(ctx context.Context, tx *gorm.DB, auth AuthContext, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := forUpdate(tx).First(&invoice, id).Error; err != nil {
		return nil, lookup(err, "invoice", id)
	}
	if err := requireProject(ctx, tx, auth, invoice.ProjectID); err != nil {
		return nil, err
	}
	return &invoice, nil
}
