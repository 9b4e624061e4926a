package services

import (
	"testing"

	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateItemKeepsInvoicedQuantity(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "10", "100")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	f.line(inv.ID, it.ID, "6")

	in := ItemInput{
		Code:             "A.1",
		Description:      "Excavation",
		ContractQuantity: dec("10"),
		ContractUnitCost: dec("100"),
		ActualQuantity:   nullDec("5"),
		ActualUnitCost:   nullDec("100"),
	}
	_, err := UpdateItem(f.ctx, f.db, admin, it.ID, in)
	assert.True(t, IsValidation(err))

	in.ActualQuantity = decimal.NullDecimal{}
	_, err = UpdateItem(f.ctx, f.db, admin, it.ID, in)
	assert.True(t, IsValidation(err), "clearing the actual quantity counts as zero")

	in.ActualQuantity = nullDec("6")
	in.Description = "Excavation, rock"
	updated, err := UpdateItem(f.ctx, f.db, admin, it.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Excavation, rock", updated.Description)
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")

	_, err := CreateItem(f.ctx, f.db, admin, p.ID, ItemInput{Description: "  "})
	assert.True(t, IsValidation(err))

	_, err = CreateItem(f.ctx, f.db, admin, p.ID, ItemInput{Description: "Fill", ContractQuantity: dec("-1")})
	assert.True(t, IsValidation(err))

	missing := uint(77)
	_, err = CreateItem(f.ctx, f.db, admin, p.ID, ItemInput{Description: "Fill", ContractorID: &missing})
	assert.True(t, IsValidation(err))

	_, err = CreateItem(f.ctx, f.db, admin, 404, ItemInput{Description: "Fill"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteItemGuards(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "10", "100")
	detail, err := CreateCostDetail(f.ctx, f.db, admin, it.ID, CostDetailInput{
		Description: "Formwork", Quantity: dec("2"), UnitCost: dec("25"),
	})
	require.NoError(t, err)
	inv := f.invoice(p.ID, c.ID, "INV-1")
	li, err := AddItemToInvoice(f.ctx, f.db, admin, inv.ID, LineInput{CostDetailID: &detail.ID, Quantity: dec("1")})
	require.NoError(t, err)

	err = DeleteItem(f.ctx, f.db, admin, it.ID)
	require.Error(t, err)
	assert.True(t, IsIntegrity(err), "a detail-sourced line also blocks the item")

	err = DeleteCostDetail(f.ctx, f.db, admin, detail.ID)
	assert.True(t, IsIntegrity(err))

	require.NoError(t, DeleteInvoiceItem(f.ctx, f.db, admin, li.ID))
	require.NoError(t, DeleteItem(f.ctx, f.db, admin, it.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.CostDetail{}).Where("item_id = ?", it.ID).Count(&n).Error)
	assert.Zero(t, n, "cost details go with the item")
}

func TestCostDetailUpdateKeepsInvoicedQuantity(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "10", "100")
	in := CostDetailInput{Description: "Rebar", Quantity: dec("4"), UnitCost: dec("50"), VatPercent: dec("20")}
	detail, err := CreateCostDetail(f.ctx, f.db, admin, it.ID, in)
	require.NoError(t, err)
	inv := f.invoice(p.ID, c.ID, "INV-1")
	_, err = AddItemToInvoice(f.ctx, f.db, admin, inv.ID, LineInput{CostDetailID: &detail.ID, Quantity: dec("3")})
	require.NoError(t, err)

	in.Quantity = dec("2")
	_, err = UpdateCostDetail(f.ctx, f.db, admin, detail.ID, in)
	assert.True(t, IsValidation(err))

	in.Quantity = dec("3")
	in.VatPercent = dec("101")
	_, err = UpdateCostDetail(f.ctx, f.db, admin, detail.ID, in)
	assert.True(t, IsValidation(err))

	in.VatPercent = dec("0")
	updated, err := UpdateCostDetail(f.ctx, f.db, admin, detail.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.TotalCost().Equal(dec("150")))
}

func TestImportItemsIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")

	_, err := ImportItems(f.ctx, f.db, admin, p.ID, []ItemInput{
		{Code: "1", Description: "Site clearance", ContractQuantity: dec("1"), ContractUnitCost: dec("900")},
		{Code: "2", Description: ""},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	items, err := ListItemSummaries(f.ctx, f.db, admin, p.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	created, err := ImportItems(f.ctx, f.db, admin, p.ID, []ItemInput{
		{Code: "1", Description: "Site clearance", ContractQuantity: dec("1"), ContractUnitCost: dec("900")},
		{Code: "2", Description: "Topsoil", ContractQuantity: dec("20"), ContractUnitCost: dec("12.5")},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestProjectItemRecords(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	_, err := CreateItem(f.ctx, f.db, admin, p.ID, ItemInput{
		Code:             "B.2",
		Description:      "Drainage",
		ContractorID:     &c.ID,
		ContractQuantity: dec("4"),
		ContractUnitCost: dec("250"),
	})
	require.NoError(t, err)

	records, err := ProjectItemRecords(f.ctx, f.db, admin, p.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Acme Build", records[0].Contractor)
	assert.True(t, records[0].ContractTotalCost.Equal(dec("1000")))
	assert.True(t, records[0].CostVariance.Equal(dec("1000")))
}
