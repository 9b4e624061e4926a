package services

import (
	"testing"

	"costtrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatusFollowsPayments(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()
	assert.Equal(t, models.InvoiceNew, f.status(s.invoice.ID))

	first, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("600")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartiallyPaid, f.status(s.invoice.ID))

	second, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("400")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceFullyPaid, f.status(s.invoice.ID))

	summary, err := GetInvoiceSummary(f.ctx, f.db, admin, s.invoice.ID)
	require.NoError(t, err)
	assert.True(t, summary.TotalAmount.Equal(dec("1000")))
	assert.True(t, summary.PaidAmount.Equal(dec("1000")))
	assert.True(t, summary.IsFullyPaid)

	require.NoError(t, DeletePayment(f.ctx, f.db, admin, first.ID))
	assert.Equal(t, models.InvoicePartiallyPaid, f.status(s.invoice.ID))
	require.NoError(t, DeletePayment(f.ctx, f.db, admin, second.ID))
	assert.Equal(t, models.InvoiceApproved, f.status(s.invoice.ID))
}

func TestPaymentAmountEqualsDistributions(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	a := f.item(p.ID, "10", "100")
	b := f.item(p.ID, "4", "50")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	la := f.line(inv.ID, a.ID, "10")
	lb := f.line(inv.ID, b.ID, "4")

	payment, err := f.pay(inv.ID, map[uint]decimal.Decimal{
		la.ID: dec("250"),
		lb.ID: dec("75.5"),
		999:   dec("0"),
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(dec("325.5")))
	assert.Len(t, payment.Distributions, 2)

	stored, err := GetPayment(f.ctx, f.db, admin, payment.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(stored.DistributedTotal()))
}

func TestPaymentDistributionCeiling(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "5", "100")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	li := f.line(inv.ID, it.ID, "5")

	_, err := f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("300")})
	require.NoError(t, err)

	_, err = f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("250")})
	assert.True(t, IsValidation(err), "got %v", err)

	payments, err := ListPayments(f.ctx, f.db, admin, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "rejected payment must leave nothing behind")

	_, err = f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("200")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceFullyPaid, f.status(inv.ID))

	paid, err := InvoiceItemPaidAmount(f.db, li.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", paid.String())
}

func TestPaymentRejectsWholeBatchOnOneBadLine(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	a := f.item(p.ID, "1", "100")
	b := f.item(p.ID, "1", "100")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	la := f.line(inv.ID, a.ID, "1")
	lb := f.line(inv.ID, b.ID, "1")

	_, err := f.pay(inv.ID, map[uint]decimal.Decimal{la.ID: dec("50"), lb.ID: dec("150")})
	assert.True(t, IsValidation(err))

	paid, err := InvoicePaidAmount(f.db, inv.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	assert.Equal(t, models.InvoiceNew, f.status(inv.ID))
}

func TestPaymentAmountsRoundToCents(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "3", "33.333")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	li := f.line(inv.ID, it.ID, "3")
	require.True(t, li.TotalPrice.Equal(dec("100")), li.TotalPrice.String())

	_, err := f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("100.001")})
	require.NoError(t, err, "amounts are rounded to cents before the ceiling check")
}

func TestPaymentRejectsForeignLine(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "10", "100")
	mine := f.invoice(p.ID, c.ID, "INV-1")
	theirs := f.invoice(p.ID, c.ID, "INV-2")
	f.line(mine.ID, it.ID, "5")
	foreign := f.line(theirs.ID, it.ID, "5")

	_, err := f.pay(mine.ID, map[uint]decimal.Decimal{foreign.ID: dec("100")})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "does not belong")
}

func TestPaymentNothingToPay(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()

	for _, amounts := range []map[uint]decimal.Decimal{
		nil,
		{s.line.ID: dec("0")},
		{s.line.ID: dec("-10")},
		{s.line.ID: dec("0.001")},
	} {
		_, err := f.pay(s.invoice.ID, amounts)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "nothing to pay")
	}
}

func TestPaymentRequiresDate(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()
	_, err := AddPayment(f.ctx, f.db, admin, s.invoice.ID, PaymentInput{
		PaymentDate: "15/03/2026",
		Amounts:     map[uint]decimal.Decimal{s.line.ID: dec("10")},
	}, nil)
	assert.True(t, IsValidation(err))
}

func TestEditPaymentAddsBackPriorAllocation(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	it := f.item(p.ID, "5", "100")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	li := f.line(inv.ID, it.ID, "5")

	a, err := f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("300")})
	require.NoError(t, err)
	b, err := f.pay(inv.ID, map[uint]decimal.Decimal{li.ID: dec("200")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceFullyPaid, f.status(inv.ID))

	edit := func(id uint, amount string) error {
		_, err := EditPayment(f.ctx, f.db, admin, id, PaymentInput{
			PaymentDate: "2026-04-01",
			Description: "corrected",
			Amounts:     map[uint]decimal.Decimal{li.ID: dec(amount)},
		})
		return err
	}

	require.NoError(t, edit(a.ID, "300"), "re-saving the same allocation fits the ceiling")
	assert.True(t, IsValidation(edit(a.ID, "301")))

	require.NoError(t, edit(b.ID, "100"))
	assert.Equal(t, models.InvoicePartiallyPaid, f.status(inv.ID))
	require.NoError(t, edit(a.ID, "400"))
	assert.Equal(t, models.InvoiceFullyPaid, f.status(inv.ID))

	stored, err := GetPayment(f.ctx, f.db, admin, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("400")))
	assert.True(t, stored.Amount.Equal(stored.DistributedTotal()))
	assert.Equal(t, "corrected", stored.Description)
}

func TestEditPaymentRemovesAbsentLines(t *testing.T) {
	f := newFixture(t)
	p := f.project("Depot")
	c := f.contractor("Acme Build")
	a := f.item(p.ID, "1", "100")
	b := f.item(p.ID, "1", "100")
	inv := f.invoice(p.ID, c.ID, "INV-1")
	la := f.line(inv.ID, a.ID, "1")
	lb := f.line(inv.ID, b.ID, "1")

	payment, err := f.pay(inv.ID, map[uint]decimal.Decimal{la.ID: dec("50"), lb.ID: dec("50")})
	require.NoError(t, err)

	edited, err := EditPayment(f.ctx, f.db, admin, payment.ID, PaymentInput{
		PaymentDate: "2026-03-20",
		Amounts:     map[uint]decimal.Decimal{la.ID: dec("80"), lb.ID: dec("0")},
	})
	require.NoError(t, err)
	assert.True(t, edited.Amount.Equal(dec("80")))
	require.Len(t, edited.Distributions, 1)
	assert.Equal(t, la.ID, edited.Distributions[0].InvoiceItemID)

	var n int64
	require.NoError(t, f.db.Model(&models.PaymentDistribution{}).Where("invoice_item_id = ?", lb.ID).Count(&n).Error)
	assert.Zero(t, n)

	_, err = EditPayment(f.ctx, f.db, admin, payment.ID, PaymentInput{
		PaymentDate: "2026-03-20",
		Amounts:     map[uint]decimal.Decimal{la.ID: dec("0")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to pay")
}

func TestCancelledInvoiceIsSticky(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()

	payment, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("600")})
	require.NoError(t, err)

	_, err = SetInvoiceStatus(f.ctx, f.db, admin, s.invoice.ID, models.InvoiceCancelled)
	require.NoError(t, err)

	_, err = f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("100")})
	assert.True(t, IsValidation(err))

	require.NoError(t, DeletePayment(f.ctx, f.db, admin, payment.ID))
	assert.Equal(t, models.InvoiceCancelled, f.status(s.invoice.ID))

	_, err = SetInvoiceStatus(f.ctx, f.db, admin, s.invoice.ID, models.InvoiceApproved)
	assert.True(t, IsValidation(err))

	itemID := s.item.ID
	_, err = AddItemToInvoice(f.ctx, f.db, admin, s.invoice.ID, LineInput{ItemID: &itemID, Quantity: dec("1")})
	assert.True(t, IsValidation(err))
}

func TestRecalculateInvoiceStatusSkipsCancelled(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()
	_, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("1000")})
	require.NoError(t, err)

	inv := models.Invoice{ID: s.invoice.ID, Status: models.InvoiceCancelled}
	require.NoError(t, RecalculateInvoiceStatus(f.db, &inv))
	assert.Equal(t, models.InvoiceCancelled, inv.Status)
	assert.Equal(t, models.InvoiceFullyPaid, f.status(s.invoice.ID))
}

func TestPaymentReferenceDrawnOnlyWhenAccepted(t *testing.T) {
	f := newFixture(t)
	seq := newTestSequence(t)
	s := f.billedInvoice()
	pay := func(amount, reference string) (*models.Payment, error) {
		return AddPayment(f.ctx, f.db, admin, s.invoice.ID, PaymentInput{
			PaymentDate: "2026-03-15",
			Reference:   reference,
			Amounts:     map[uint]decimal.Decimal{s.line.ID: dec(amount)},
		}, seq)
	}

	_, err := pay("5000", "")
	assert.True(t, IsValidation(err), "over the line balance")
	_, err = pay("0", "")
	assert.True(t, IsValidation(err), "nothing to pay")

	next, err := seq.Next(f.ctx, PrefixPayment)
	require.NoError(t, err)
	assert.Equal(t, "PAY-2026-0001", next, "rejected payments leave the counter alone")

	payment, err := pay("600", "")
	require.NoError(t, err)
	assert.Equal(t, "PAY-2026-0001", payment.Reference)

	payment, err = pay("100", "BANK-7")
	require.NoError(t, err)
	assert.Equal(t, "BANK-7", payment.Reference)

	next, err = seq.Next(f.ctx, PrefixPayment)
	require.NoError(t, err)
	assert.Equal(t, "PAY-2026-0002", next)
}

func TestPaymentRejectsSubCentAmounts(t *testing.T) {
	f := newFixture(t)
	s := f.billedInvoice()

	_, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("0.004")})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "less than one cent")

	_, err = f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("-5")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to pay", "non-positive amounts are skipped")

	payment, err := f.pay(s.invoice.ID, map[uint]decimal.Decimal{s.line.ID: dec("0.006")})
	require.NoError(t, err)
	assert.Equal(t, "0.01", payment.Amount.String())
}
