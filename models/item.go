package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a bill-of-quantities line of a project.
type Item struct {
	ID               uint                `json:"id" gorm:"primaryKey"`
	ProjectID        uint                `json:"project_id" gorm:"not null;index"`
	ContractorID     *uint               `json:"contractor_id" gorm:"index"`
	Code             string              `json:"code" gorm:"size:50"`
	Description      string              `json:"description" gorm:"not null"`
	Unit             string              `json:"unit" gorm:"size:20"`
	ContractQuantity decimal.Decimal     `json:"contract_quantity" gorm:"type:numeric(20,4);not null"`
	ContractUnitCost decimal.Decimal     `json:"contract_unit_cost" gorm:"type:numeric(20,4);not null"`
	ActualQuantity   decimal.NullDecimal `json:"actual_quantity" gorm:"type:numeric(20,4)"`
	ActualUnitCost   decimal.NullDecimal `json:"actual_unit_cost" gorm:"type:numeric(20,4)"`
	CostDetails      []CostDetail        `json:"cost_details,omitempty" gorm:"foreignKey:ItemID"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (i *Item) ContractTotalCost() decimal.Decimal {
	return i.ContractQuantity.Mul(i.ContractUnitCost)
}

// ActualBaseCost is actual_quantity*actual_unit_cost, or zero unless both are set.
func (i *Item) ActualBaseCost() decimal.Decimal {
	if !i.ActualQuantity.Valid || !i.ActualUnitCost.Valid {
		return decimal.Zero
	}
	return i.ActualQuantity.Decimal.Mul(i.ActualUnitCost.Decimal)
}

// BillableQuantity is the ceiling for lines billed directly against the item.
func (i *Item) BillableQuantity() decimal.Decimal {
	if !i.ActualQuantity.Valid {
		return decimal.Zero
	}
	return i.ActualQuantity.Decimal
}

// InvoiceUnitPrice is the unit price frozen onto an item-sourced invoice line.
func (i *Item) InvoiceUnitPrice() decimal.Decimal {
	if i.ActualUnitCost.Valid && i.ActualUnitCost.Decimal.IsPositive() {
		return i.ActualUnitCost.Decimal
	}
	return i.ContractUnitCost
}

// ItemSummary carries an item together with its aggregated figures.
type ItemSummary struct {
	Item
	ContractTotalCost decimal.Decimal `json:"contract_total_cost"`
	ActualDetailsCost decimal.Decimal `json:"actual_details_cost"`
	ActualTotalCost   decimal.Decimal `json:"actual_total_cost"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	CostVariance      decimal.Decimal `json:"cost_variance"`
	InvoicedQuantity  decimal.Decimal `json:"invoiced_quantity"`
}

// NewItemSummary derives the computed figures. details are the item's cost
// details, paid the distributions over every invoice line sourced from it.
func NewItemSummary(item Item, details []CostDetail, paid, invoiced decimal.Decimal) ItemSummary {
	detailsCost := decimal.Zero
	for i := range details {
		detailsCost = detailsCost.Add(details[i].TotalCost())
	}
	actual := item.ActualBaseCost().Add(detailsCost)
	contract := item.ContractTotalCost()
	item.CostDetails = details
	return ItemSummary{
		Item:              item,
		ContractTotalCost: contract,
		ActualDetailsCost: detailsCost,
		ActualTotalCost:   actual,
		PaidAmount:        paid,
		RemainingAmount:   actual.Sub(paid),
		CostVariance:      contract.Sub(actual),
		InvoicedQuantity:  invoiced,
	}
}

// ItemRecord is the flat, read-only snapshot handed to exporters and the
// spreadsheet sync.
type ItemRecord struct {
	ID                uint
	Code              string
	Description       string
	Unit              string
	Contractor        string
	ContractQuantity  decimal.Decimal
	ContractUnitCost  decimal.Decimal
	ContractTotalCost decimal.Decimal
	ActualQuantity    decimal.Decimal
	ActualUnitCost    decimal.Decimal
	ActualTotalCost   decimal.Decimal
	PaidAmount        decimal.Decimal
	RemainingAmount   decimal.Decimal
	CostVariance      decimal.Decimal
}

var ItemRecordHeader = []string{
	"ID", "Code", "Description", "Unit", "Contractor",
	"Contract Qty", "Contract Unit Cost", "Contract Total",
	"Actual Qty", "Actual Unit Cost", "Actual Total",
	"Paid", "Remaining", "Variance",
}

func (s ItemSummary) Record(contractor string) ItemRecord {
	return ItemRecord{
		ID:                s.ID,
		Code:              s.Code,
		Description:       s.Description,
		Unit:              s.Unit,
		Contractor:        contractor,
		ContractQuantity:  s.ContractQuantity,
		ContractUnitCost:  s.ContractUnitCost,
		ContractTotalCost: s.ContractTotalCost,
		ActualQuantity:    s.ActualQuantity.Decimal,
		ActualUnitCost:    s.ActualUnitCost.Decimal,
		ActualTotalCost:   s.ActualTotalCost,
		PaidAmount:        s.PaidAmount,
		RemainingAmount:   s.RemainingAmount,
		CostVariance:      s.CostVariance,
	}
}

// Values returns the record in ItemRecordHeader order.
func (r ItemRecord) Values() []interface{} {
	return []interface{}{
		r.ID, r.Code, r.Description, r.Unit, r.Contractor,
		r.ContractQuantity.InexactFloat64(), r.ContractUnitCost.InexactFloat64(), r.ContractTotalCost.Round(2).InexactFloat64(),
		r.ActualQuantity.InexactFloat64(), r.ActualUnitCost.InexactFloat64(), r.ActualTotalCost.Round(2).InexactFloat64(),
		r.PaidAmount.Round(2).InexactFloat64(), r.RemainingAmount.Round(2).InexactFloat64(), r.CostVariance.Round(2).InexactFloat64(),
	}
}
