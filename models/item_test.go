package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCostDetailFigures(t *testing.T) {
	cd := CostDetail{Quantity: d("12.5"), UnitCost: d("8"), VatPercent: d("15")}
	assert.True(t, cd.BaseCost().Equal(d("100")))
	assert.True(t, cd.VatAmount().Equal(d("15")))
	assert.True(t, cd.TotalCost().Equal(d("115")))
}

func TestItemActualBaseCostNeedsBothFields(t *testing.T) {
	item := Item{ActualQuantity: decimal.NewNullDecimal(d("10"))}
	assert.True(t, item.ActualBaseCost().IsZero())
	assert.True(t, item.BillableQuantity().Equal(d("10")))

	item.ActualUnitCost = decimal.NewNullDecimal(d("7"))
	assert.True(t, item.ActualBaseCost().Equal(d("70")))
}

func TestNewItemSummary(t *testing.T) {
	item := Item{
		ID:               1,
		ContractQuantity: d("10"),
		ContractUnitCost: d("100"),
		ActualQuantity:   decimal.NewNullDecimal(d("8")),
		ActualUnitCost:   decimal.NewNullDecimal(d("110")),
	}
	details := []CostDetail{
		{Quantity: d("1"), UnitCost: d("100"), VatPercent: d("20")},
	}
	s := NewItemSummary(item, details, d("500"), d("5"))

	assert.True(t, s.ContractTotalCost.Equal(d("1000")))
	assert.True(t, s.ActualDetailsCost.Equal(d("120")))
	assert.True(t, s.ActualTotalCost.Equal(d("1000"))) // 880 + 120
	assert.True(t, s.RemainingAmount.Equal(d("500")))
	assert.True(t, s.CostVariance.IsZero())
	assert.True(t, s.InvoicedQuantity.Equal(d("5")))
	assert.Len(t, s.CostDetails, 1)
}

func TestProjectSummaryRollsUpItems(t *testing.T) {
	items := []ItemSummary{
		{ContractTotalCost: d("1000"), ActualTotalCost: d("900"), PaidAmount: d("400")},
		{ContractTotalCost: d("500"), ActualTotalCost: d("650"), PaidAmount: d("650")},
	}
	s := NewProjectSummary(Project{Name: "Depot"}, items)
	assert.Equal(t, 2, s.ItemCount)
	assert.True(t, s.ContractTotalCost.Equal(d("1500")))
	assert.True(t, s.ActualTotalCost.Equal(d("1550")))
	assert.True(t, s.RemainingAmount.Equal(d("500")))
	assert.True(t, s.CostVariance.Equal(d("-50")))
}

func TestItemRecordValuesFollowHeader(t *testing.T) {
	s := NewItemSummary(Item{ID: 4, Code: "A.1", ContractQuantity: d("2"), ContractUnitCost: d("3")}, nil, decimal.Zero, decimal.Zero)
	rec := s.Record("Acme Build")
	values := rec.Values()
	assert.Len(t, values, len(ItemRecordHeader))
	assert.Equal(t, "Acme Build", values[4])
	assert.Equal(t, 6.0, values[7])
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, RoleSubAdmin.Elevated())
	assert.False(t, RoleUser.Elevated())
	assert.False(t, Role("owner").Valid())
}
