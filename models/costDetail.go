package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CostDetail is a finer cost breakdown under a BOQ item, optionally VAT-bearing
// and attributed to a contractor.
type CostDetail struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	ItemID       uint            `json:"item_id" gorm:"not null;index"`
	ContractorID *uint           `json:"contractor_id" gorm:"index"`
	Description  string          `json:"description" gorm:"not null"`
	Unit         string          `json:"unit" gorm:"size:20"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:numeric(20,4);not null"`
	UnitCost     decimal.Decimal `json:"unit_cost" gorm:"type:numeric(20,4);not null"`
	VatPercent   decimal.Decimal `json:"vat_percent" gorm:"type:numeric(7,4);not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (d *CostDetail) BaseCost() decimal.Decimal {
	return d.Quantity.Mul(d.UnitCost)
}

func (d *CostDetail) VatAmount() decimal.Decimal {
	return d.BaseCost().Mul(d.VatPercent).Div(hundred)
}

func (d *CostDetail) TotalCost() decimal.Decimal {
	return d.BaseCost().Add(d.VatAmount())
}

// CostDetailView is the API shape of a cost detail with its derived figures.
type CostDetailView struct {
	CostDetail
	BaseCost         decimal.Decimal `json:"base_cost"`
	VatAmount        decimal.Decimal `json:"vat_amount"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	InvoicedQuantity decimal.Decimal `json:"invoiced_quantity"`
}

func NewCostDetailView(d CostDetail, invoiced decimal.Decimal) CostDetailView {
	return CostDetailView{
		CostDetail:       d,
		BaseCost:         d.BaseCost(),
		VatAmount:        d.VatAmount(),
		TotalCost:        d.TotalCost(),
		InvoicedQuantity: invoiced,
	}
}
