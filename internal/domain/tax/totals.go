package tax

import "github.com/shopspring/decimal"

// Totals are the invoice-level amounts.
type Totals struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TaxableAmount decimal.Decimal
	DualAmount1   decimal.Decimal
	DualAmount2   decimal.Decimal
	SingleAmount  decimal.Decimal
	TotalTax      decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Breakdown is the full tax computation for one invoice
type Breakdown struct {
	Context TransactionContext
	Items   []ComputedLineItem
	Totals  Totals
}

// Aggregate sums the full-precision line amounts and rounds each total once.
// It is the only place amounts are rounded.
//
// Under the dual split the first channel is the rounded sum of halves and
// the second channel takes the remainder, so DualAmount1 + DualAmount2
// always equals TotalTax. GrandTotal is TaxableAmount + TotalTax.
func Aggregate(items []ComputedLineItem, ctx TransactionContext) Totals {
	var base, discount, taxable, tax, dual1 decimal.Decimal
	for _, item := range items {
		base = base.Add(item.BaseAmount)
		discount = discount.Add(item.DiscountAmount)
		taxable = taxable.Add(item.TaxableAmount)
		tax = tax.Add(item.TaxAmount)
		dual1 = dual1.Add(item.DualAmount1)
	}

	totals := Totals{
		Subtotal:      base.Round(MoneyScale),
		TotalDiscount: discount.Round(MoneyScale),
		TaxableAmount: taxable.Round(MoneyScale),
		TotalTax:      tax.Round(MoneyScale),
		DualAmount1:   decimal.Zero,
		DualAmount2:   decimal.Zero,
		SingleAmount:  decimal.Zero,
	}

	if ctx.Split == SplitSingle {
		totals.SingleAmount = totals.TotalTax
	} else {
		totals.DualAmount1 = dual1.Round(MoneyScale)
		totals.DualAmount2 = totals.TotalTax.Sub(totals.DualAmount1)
	}

	totals.GrandTotal = totals.TaxableAmount.Add(totals.TotalTax)
	return totals
}
