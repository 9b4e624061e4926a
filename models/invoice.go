package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	// AllocationTolerance absorbs rounding when comparing allocations with ceilings.
	AllocationTolerance = decimal.New(1, -3)
	// FullyPaidThreshold is the remaining balance below which an invoice counts as settled.
	FullyPaidThreshold = decimal.New(1, -2)
)

var (
	ErrNoInvoiceItemSource  = errors.New("invoice item needs an item or a cost detail as its source")
	ErrSourceMismatch       = errors.New("cost detail does not belong to the given item")
	ErrCostDetailNoQuantity = errors.New("cost detail has no quantity to derive a unit price from")
)

type InvoiceStatus string

const (
	InvoiceNew           InvoiceStatus = "new"
	InvoiceUnderReview   InvoiceStatus = "under_review"
	InvoiceApproved      InvoiceStatus = "approved"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceFullyPaid     InvoiceStatus = "fully_paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceNew, InvoiceUnderReview, InvoiceApproved, InvoicePartiallyPaid, InvoiceFullyPaid, InvoiceCancelled:
		return true
	}
	return false
}

// PrePayment reports whether s belongs to the review group that payments
// leave untouched while nothing is paid.
func (s InvoiceStatus) PrePayment() bool {
	return s == InvoiceNew || s == InvoiceUnderReview || s == InvoiceApproved
}

// NextInvoiceStatus derives an invoice status from its payment totals.
// Cancelled is absorbing.
func NextInvoiceStatus(current InvoiceStatus, paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case current == InvoiceCancelled:
		return InvoiceCancelled
	case !paid.IsPositive():
		if current.PrePayment() {
			return current
		}
		return InvoiceApproved
	case paid.LessThan(total):
		return InvoicePartiallyPaid
	default:
		return InvoiceFullyPaid
	}
}

// Invoice is a billing document of a contractor against a project.
type Invoice struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	ProjectID     uint          `json:"project_id" gorm:"not null;index"`
	ContractorID  uint          `json:"contractor_id" gorm:"not null;index"`
	InvoiceNumber string        `json:"invoice_number" gorm:"size:50;not null;uniqueIndex"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	Description   string        `json:"description"`
	Status        InvoiceStatus `json:"status" gorm:"size:20;not null;index"`
	Items         []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID"`
	Payments      []Payment     `json:"payments,omitempty" gorm:"foreignKey:InvoiceID"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// InvoiceItem is a billable line copied from an Item or a CostDetail. Its unit
// price is frozen at creation.
type InvoiceItem struct {
	ID             uint                  `json:"id" gorm:"primaryKey"`
	InvoiceID      uint                  `json:"invoice_id" gorm:"not null;index"`
	ItemID         uint                  `json:"item_id" gorm:"not null;index"`
	CostDetailID   *uint                 `json:"cost_detail_id" gorm:"index"`
	Description    string                `json:"description"`
	Unit           string                `json:"unit" gorm:"size:20"`
	Quantity       decimal.Decimal       `json:"quantity" gorm:"type:numeric(20,4);not null"`
	UnitPrice      decimal.Decimal       `json:"unit_price" gorm:"type:numeric(20,6);not null"`
	TotalPrice     decimal.Decimal       `json:"total_price" gorm:"type:numeric(20,4);not null"`
	SourceSnapshot datatypes.JSON        `json:"source_snapshot,omitempty"`
	Distributions  []PaymentDistribution `json:"-" gorm:"foreignKey:InvoiceItemID"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// UnitPricePlaces is the scale of the unit_price column.
const UnitPricePlaces = 6

// NewInvoiceItem builds a line from detail when given, otherwise from item.
// item may be nil for a detail-sourced line; when both are given they must
// agree on the owning item.
func NewInvoiceItem(item *Item, detail *CostDetail, quantity decimal.Decimal) (*InvoiceItem, error) {
	switch {
	case detail != nil:
		if item != nil && item.ID != detail.ItemID {
			return nil, ErrSourceMismatch
		}
		if !detail.Quantity.IsPositive() {
			return nil, ErrCostDetailNoQuantity
		}
		snapshot, err := json.Marshal(detail)
		if err != nil {
			return nil, err
		}
		id := detail.ID
		line := &InvoiceItem{
			ItemID:         detail.ItemID,
			CostDetailID:   &id,
			Description:    detail.Description,
			Unit:           detail.Unit,
			UnitPrice:      detail.TotalCost().Div(detail.Quantity).Round(UnitPricePlaces),
			SourceSnapshot: datatypes.JSON(snapshot),
		}
		line.SetQuantity(quantity)
		return line, nil
	case item != nil:
		src := *item
		src.CostDetails = nil
		snapshot, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		line := &InvoiceItem{
			ItemID:         item.ID,
			Description:    item.Description,
			Unit:           item.Unit,
			UnitPrice:      item.InvoiceUnitPrice().Round(UnitPricePlaces),
			SourceSnapshot: datatypes.JSON(snapshot),
		}
		line.SetQuantity(quantity)
		return line, nil
	}
	return nil, ErrNoInvoiceItemSource
}

// SetQuantity changes the billed quantity and recomputes the line total.
func (li *InvoiceItem) SetQuantity(q decimal.Decimal) {
	li.Quantity = q
	li.TotalPrice = q.Mul(li.UnitPrice).Round(2)
}

func (li *InvoiceItem) FromCostDetail() bool {
	return li.CostDetailID != nil
}

// Payment is money received against an invoice, split over its lines.
type Payment struct {
	ID            uint                  `json:"id" gorm:"primaryKey"`
	InvoiceID     uint                  `json:"invoice_id" gorm:"not null;index:idx_payments_invoice_date,priority:1"`
	Reference     string                `json:"reference" gorm:"size:50;index"`
	Amount        decimal.Decimal       `json:"amount" gorm:"type:numeric(20,4);not null"`
	PaymentDate   time.Time             `json:"payment_date" gorm:"not null;index:idx_payments_invoice_date,priority:2"`
	Description   string                `json:"description"`
	Distributions []PaymentDistribution `json:"distributions,omitempty" gorm:"foreignKey:PaymentID"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// DistributedTotal sums the loaded distributions.
func (p *Payment) DistributedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range p.Distributions {
		total = total.Add(d.Amount)
	}
	return total
}

// PaymentDistribution allocates part of a payment to one invoice line.
type PaymentDistribution struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	PaymentID     uint            `json:"payment_id" gorm:"not null;uniqueIndex:idx_payment_distributions_payment_line,priority:1"`
	InvoiceItemID uint            `json:"invoice_item_id" gorm:"not null;index;uniqueIndex:idx_payment_distributions_payment_line,priority:2"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(20,4);not null"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InvoiceSummary is an invoice with its aggregated balances.
type InvoiceSummary struct {
	Invoice
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
	IsFullyPaid     bool                 `json:"is_fully_paid"`
	Lines           []InvoiceItemSummary `json:"lines,omitempty"`
}

func NewInvoiceSummary(inv Invoice, total, paid decimal.Decimal) InvoiceSummary {
	remaining := total.Sub(paid)
	return InvoiceSummary{
		Invoice:         inv,
		TotalAmount:     total,
		PaidAmount:      paid,
		RemainingAmount: remaining,
		IsFullyPaid:     remaining.LessThan(FullyPaidThreshold),
	}
}

type InvoiceItemSummary struct {
	InvoiceItem
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

func NewInvoiceItemSummary(li InvoiceItem, paid decimal.Decimal) InvoiceItemSummary {
	return InvoiceItemSummary{
		InvoiceItem:     li,
		PaidAmount:      paid,
		RemainingAmount: li.TotalPrice.Sub(paid),
	}
}
