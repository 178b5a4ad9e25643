package tax

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sellerMH = "27AAPFU0939F1ZV"
	buyerMH  = "27AAACR5055K1Z7"
	buyerTN  = "33AAPFU0939F1Z2"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func simpleItem(qty, rate, taxRate string) LineItem {
	return LineItem{
		Description:        "Steel bracket",
		ClassificationCode: "7326",
		Quantity:           dec(qty),
		Unit:               "NOS",
		UnitRate:           dec(rate),
		TaxRatePercent:     dec(taxRate),
	}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), append([]any{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func TestCalculator_Compute_Scenarios(t *testing.T) {
	calc := NewCalculator()
	item := simpleItem("1", "1000", "18")

	t.Run("same jurisdiction splits into equal halves", func(t *testing.T) {
		b, err := calc.Compute(sellerMH, strPtr(buyerMH), []LineItem{item})
		require.NoError(t, err)
		assert.Equal(t, KindSameRegionB2B, b.Context.Kind)
		assertDecimal(t, "90.00", b.Totals.DualAmount1)
		assertDecimal(t, "90.00", b.Totals.DualAmount2)
		assertDecimal(t, "0", b.Totals.SingleAmount)
		assertDecimal(t, "180.00", b.Totals.TotalTax)
		assertDecimal(t, "1180.00", b.Totals.GrandTotal)
	})

	t.Run("cross jurisdiction uses the single channel", func(t *testing.T) {
		b, err := calc.Compute(sellerMH, strPtr(buyerTN), []LineItem{item})
		require.NoError(t, err)
		assert.Equal(t, KindCrossRegionB2B, b.Context.Kind)
		assertDecimal(t, "180.00", b.Totals.SingleAmount)
		assertDecimal(t, "0", b.Totals.DualAmount1)
		assertDecimal(t, "0", b.Totals.DualAmount2)
		assertDecimal(t, "180.00", b.Totals.TotalTax)
	})

	t.Run("unregistered buyer uses the dual split", func(t *testing.T) {
		b, err := calc.Compute(sellerMH, nil, []LineItem{item})
		require.NoError(t, err)
		assert.Equal(t, KindUnregisteredConsumer, b.Context.Kind)
		assert.Equal(t, SplitDual, b.Context.Split)
		assert.Equal(t, UnregisteredRegion, b.Context.BuyerRegion)
		assertDecimal(t, "90.00", b.Totals.DualAmount1)
		assertDecimal(t, "90.00", b.Totals.DualAmount2)
	})
}

func TestCalculator_ComputeItem_Discounts(t *testing.T) {
	calc := NewCalculator()
	ctx, err := Classify(sellerMH, strPtr(buyerMH))
	require.NoError(t, err)

	tests := []struct {
		name          string
		discountType  DiscountType
		discountValue string
		qty, rate     string
		base          string
		discount      string
		taxable       string
		tax           string
	}{
		{"no discount", "", "0", "2", "500", "1000", "0", "1000", "180"},
		{"percentage", DiscountPercentage, "10", "2", "500", "1000", "100", "900", "162"},
		{"fixed", DiscountFixed, "250", "2", "500", "1000", "250", "750", "135"},
		{"fixed clamped to base", DiscountFixed, "1500", "2", "500", "1000", "1000", "0", "0"},
		{"percentage above 100 clamped", DiscountPercentage, "120", "1", "100", "100", "100", "0", "0"},
		{"zero quantity", DiscountFixed, "10", "0", "500", "0", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := simpleItem(tt.qty, tt.rate, "18")
			item.DiscountType = tt.discountType
			item.DiscountValue = dec(tt.discountValue)

			line, err := calc.ComputeItem(item, ctx)
			require.NoError(t, err)
			assertDecimal(t, tt.base, line.BaseAmount)
			assertDecimal(t, tt.discount, line.DiscountAmount)
			assertDecimal(t, tt.taxable, line.TaxableAmount)
			assertDecimal(t, tt.tax, line.TaxAmount)
			assert.False(t, line.TaxableAmount.IsNegative())
			assert.True(t, line.TaxableAmount.LessThanOrEqual(line.BaseAmount))
			assertDecimal(t, tt.taxable, line.TotalAmount.Sub(line.TaxAmount))
		})
	}
}

func TestCalculator_ComputeItem_KeepsFullPrecision(t *testing.T) {
	calc := NewCalculator()
	ctx, err := Classify(sellerMH, nil)
	require.NoError(t, err)

	line, err := calc.ComputeItem(simpleItem("1", "0.03", "18"), ctx)
	require.NoError(t, err)
	assertDecimal(t, "0.0054", line.TaxAmount)
	assertDecimal(t, "0.0027", line.DualAmount1)
	assertDecimal(t, "0.0027", line.DualAmount2)

	rounded := line.Rounded()
	assertDecimal(t, "0.01", rounded.TaxAmount)
	assertDecimal(t, "0.00", rounded.DualAmount1)
	assertDecimal(t, "0.01", rounded.DualAmount2)
	assertDecimal(t, "0.03", rounded.BaseAmount)
}

func TestComputedLineItem_RoundedDualChannelsAddUpToTax(t *testing.T) {
	calc := NewCalculator()
	ctx, err := Classify(sellerMH, nil)
	require.NoError(t, err)

	line, err := calc.ComputeItem(simpleItem("1", "0.5", "18"), ctx)
	require.NoError(t, err)
	assertDecimal(t, "0.045", line.DualAmount1)

	rounded := line.Rounded()
	assertDecimal(t, "0.09", rounded.TaxAmount)
	assertDecimal(t, "0.05", rounded.DualAmount1)
	assertDecimal(t, "0.04", rounded.DualAmount2)
	assert.True(t, rounded.DualAmount1.Add(rounded.DualAmount2).Equal(rounded.TaxAmount))
	assertDecimal(t, "0", rounded.SingleAmount)
}

func TestComputedLineItem_RoundedSingleChannel(t *testing.T) {
	calc := NewCalculator()
	ctx, err := Classify(sellerMH, strPtr(buyerTN))
	require.NoError(t, err)
	require.Equal(t, SplitSingle, ctx.Split)

	line, err := calc.ComputeItem(simpleItem("1", "0.5", "18"), ctx)
	require.NoError(t, err)
	rounded := line.Rounded()
	assertDecimal(t, "0.09", rounded.SingleAmount)
	assertDecimal(t, "0", rounded.DualAmount1)
	assertDecimal(t, "0", rounded.DualAmount2)
}

func TestCalculator_ComputeItem_Validation(t *testing.T) {
	calc := NewCalculator()
	ctx, err := Classify(sellerMH, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*LineItem)
		target error
	}{
		{"negative quantity", func(i *LineItem) { i.Quantity = dec("-1") }, ErrInvalidLineItem},
		{"negative rate", func(i *LineItem) { i.UnitRate = dec("-0.01") }, ErrInvalidLineItem},
		{"negative discount", func(i *LineItem) {
			i.DiscountType = DiscountFixed
			i.DiscountValue = dec("-5")
		}, ErrInvalidLineItem},
		{"discount value without type", func(i *LineItem) { i.DiscountValue = dec("5") }, ErrInvalidLineItem},
		{"unknown discount type", func(i *LineItem) { i.DiscountType = "BOGO" }, ErrInvalidLineItem},
		{"unsupported rate", func(i *LineItem) { i.TaxRatePercent = dec("7") }, ErrUnsupportedTaxRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := simpleItem("1", "100", "18")
			tt.mutate(&item)
			_, err := calc.ComputeItem(item, ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
		})
	}

	t.Run("every default rate is accepted", func(t *testing.T) {
		for _, r := range DefaultPermittedRates {
			_, err := calc.ComputeItem(simpleItem("1", "100", r), ctx)
			assert.NoError(t, err, "rate %s", r)
		}
	})

	t.Run("rate comparison is numeric", func(t *testing.T) {
		_, err := calc.ComputeItem(simpleItem("1", "100", "18.00"), ctx)
		assert.NoError(t, err)
	})
}

func TestCalculator_Compute_FailsOnFirstBadItem(t *testing.T) {
	calc := NewCalculator()
	items := []LineItem{simpleItem("1", "100", "18"), simpleItem("1", "100", "13")}

	b, err := calc.Compute(sellerMH, nil, items)
	assert.Nil(t, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedTaxRate))
}

func TestCalculator_WithRatePolicy(t *testing.T) {
	policy, err := ParseRatePolicy([]string{"5", "40"})
	require.NoError(t, err)
	calc := NewCalculator(WithRatePolicy(policy))
	assert.Len(t, calc.RatePolicy().Rates(), 2)

	_, err = calc.Compute(sellerMH, nil, []LineItem{simpleItem("1", "100", "40")})
	assert.NoError(t, err)

	_, err = calc.Compute(sellerMH, nil, []LineItem{simpleItem("1", "100", "18")})
	assert.True(t, errors.Is(err, ErrUnsupportedTaxRate))
}

func TestParseRatePolicy_Errors(t *testing.T) {
	_, err := ParseRatePolicy([]string{"abc"})
	assert.Error(t, err)

	_, err = ParseRatePolicy([]string{"-1"})
	assert.Error(t, err)

	_, err = ParseRatePolicy([]string{"101"})
	assert.Error(t, err)

	_, err = ParseRatePolicy(nil)
	assert.True(t, errors.Is(err, ErrUnsupportedTaxRate))

	policy, err := ParseRatePolicy(DefaultPermittedRates)
	require.NoError(t, err)
	assert.Equal(t, DefaultRatePolicy().Rates(), policy.Rates())
}

func TestSplitModesAreTaxEquivalent(t *testing.T) {
	calc := NewCalculator()
	dual, err := Classify(sellerMH, strPtr(buyerMH))
	require.NoError(t, err)
	single, err := Classify(sellerMH, strPtr(buyerTN))
	require.NoError(t, err)

	items := []LineItem{
		simpleItem("3", "333.33", "0.25"),
		simpleItem("7", "19.99", "12"),
		simpleItem("1", "0.05", "18"),
		simpleItem("12.5", "80.4", "28"),
		simpleItem("4", "10", "0"),
	}
	for _, item := range items {
		d, err := calc.ComputeItem(item, dual)
		require.NoError(t, err)
		s, err := calc.ComputeItem(item, single)
		require.NoError(t, err)
		assert.True(t, d.DualAmount1.Add(d.DualAmount2).Equal(s.SingleAmount), "item %s x %s", item.Quantity, item.UnitRate)
		assert.True(t, d.DualAmount1.Equal(d.DualAmount2))
	}
}
