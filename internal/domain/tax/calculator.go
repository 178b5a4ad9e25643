package tax

import (
	"github.com/shopspring/decimal"
)

// DiscountType selects how DiscountValue is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// IsValid reports whether the discount type is recognized
func (t DiscountType) IsValid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// MoneyScale is the number of decimal places reported amounts are rounded to
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// LineItem is a single taxable line on an invoice
type LineItem struct {
	Description        string
	ClassificationCode string // HSN/SAC code, informational
	Quantity           decimal.Decimal
	Unit               string
	UnitRate           decimal.Decimal
	TaxRatePercent     decimal.Decimal
	DiscountType       DiscountType
	DiscountValue      decimal.Decimal
}

// ComputedLineItem is a line item together with its derived amounts.
// Amounts are kept at full precision; Aggregate is the single point of
// rounding. Use Rounded for presentation.
type ComputedLineItem struct {
	LineItem

	BaseAmount     decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	DualAmount1    decimal.Decimal
	DualAmount2    decimal.Decimal
	SingleAmount   decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Rounded returns a copy with every amount rounded to MoneyScale. As in
// Aggregate, the second dual channel is the rounded tax less the rounded
// first channel, so the two channels always add up to TaxAmount.
func (c ComputedLineItem) Rounded() ComputedLineItem {
	dual := !c.DualAmount1.IsZero() || !c.DualAmount2.IsZero()
	c.BaseAmount = c.BaseAmount.Round(MoneyScale)
	c.DiscountAmount = c.DiscountAmount.Round(MoneyScale)
	c.TaxableAmount = c.TaxableAmount.Round(MoneyScale)
	c.TaxAmount = c.TaxAmount.Round(MoneyScale)
	c.DualAmount1 = c.DualAmount1.Round(MoneyScale)
	c.DualAmount2 = c.DualAmount2.Round(MoneyScale)
	if dual {
		c.DualAmount2 = c.TaxAmount.Sub(c.DualAmount1)
	}
	c.SingleAmount = c.SingleAmount.Round(MoneyScale)
	c.TotalAmount = c.TotalAmount.Round(MoneyScale)
	return c
}

// RatePolicy is the set of tax rates a line item may carry
type RatePolicy struct {
	rates []decimal.Decimal
}

// DefaultPermittedRates are the statutory slabs in percent
var DefaultPermittedRates = []string{"0", "0.25", "3", "5", "12", "18", "28"}

// NewRatePolicy creates a policy permitting exactly the given rates
func NewRatePolicy(rates ...decimal.Decimal) RatePolicy {
	copied := make([]decimal.Decimal, len(rates))
	copy(copied, rates)
	return RatePolicy{rates: copied}
}

// DefaultRatePolicy returns the policy for DefaultPermittedRates
func DefaultRatePolicy() RatePolicy {
	rates := make([]decimal.Decimal, 0, len(DefaultPermittedRates))
	for _, r := range DefaultPermittedRates {
		rates = append(rates, decimal.RequireFromString(r))
	}
	return NewRatePolicy(rates...)
}

// ParseRatePolicy builds a policy from decimal strings such as "0.25"
func ParseRatePolicy(values []string) (RatePolicy, error) {
	if len(values) == 0 {
		return RatePolicy{}, newError(CodeUnsupportedTaxRate, "at least one permitted rate is required")
	}
	rates := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return RatePolicy{}, newError(CodeUnsupportedTaxRate, "permitted rate %q is not a number", v)
		}
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return RatePolicy{}, newError(CodeUnsupportedTaxRate, "permitted rate %s is out of range", v)
		}
		rates = append(rates, rate)
	}
	return NewRatePolicy(rates...), nil
}

// Permits reports whether rate is in the policy. Comparison is numeric,
// so 5 and 5.00 are the same rate.
func (p RatePolicy) Permits(rate decimal.Decimal) bool {
	for _, r := range p.rates {
		if r.Equal(rate) {
			return true
		}
	}
	return false
}

// Rates returns the permitted rates
func (p RatePolicy) Rates() []decimal.Decimal {
	copied := make([]decimal.Decimal, len(p.rates))
	copy(copied, p.rates)
	return copied
}

// Calculator computes per-line and aggregate tax for an invoice
type Calculator struct {
	rates          RatePolicy
	strictChecksum bool
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithRatePolicy replaces the default permitted rates
func WithRatePolicy(policy RatePolicy) CalculatorOption {
	return func(c *Calculator) {
		c.rates = policy
	}
}

// WithStrictChecksum rejects identifiers whose check character does not verify
func WithStrictChecksum(strict bool) CalculatorOption {
	return func(c *Calculator) {
		c.strictChecksum = strict
	}
}

// NewCalculator creates a calculator with the default rate policy
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{rates: DefaultRatePolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RatePolicy returns the calculator's permitted rates
func (c *Calculator) RatePolicy() RatePolicy {
	return c.rates
}

// Classify classifies a transaction honoring the calculator's checksum setting
func (c *Calculator) Classify(seller string, buyer *string) (TransactionContext, error) {
	return classify(seller, buyer, c.strictChecksum)
}

// ComputeItem derives the amounts for one line item under the given context.
//
// base = quantity * unitRate; the discount is clamped to the base so the
// taxable amount is never negative. Under the dual split the tax is halved
// into two equal channels; under the single split it is reported whole.
func (c *Calculator) ComputeItem(item LineItem, ctx TransactionContext) (ComputedLineItem, error) {
	if err := c.validateItem(item); err != nil {
		return ComputedLineItem{}, err
	}

	base := item.Quantity.Mul(item.UnitRate)

	var discount decimal.Decimal
	switch item.DiscountType {
	case DiscountPercentage:
		discount = base.Mul(item.DiscountValue).Div(hundred)
	case DiscountFixed:
		discount = item.DiscountValue
	default:
		discount = decimal.Zero
	}
	if discount.GreaterThan(base) {
		discount = base
	}

	taxable := base.Sub(discount)
	tax := taxable.Mul(item.TaxRatePercent).Div(hundred)

	computed := ComputedLineItem{
		LineItem:       item,
		BaseAmount:     base,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		TaxAmount:      tax,
		DualAmount1:    decimal.Zero,
		DualAmount2:    decimal.Zero,
		SingleAmount:   decimal.Zero,
		TotalAmount:    taxable.Add(tax),
	}

	if ctx.Split == SplitSingle {
		computed.SingleAmount = tax
	} else {
		half := tax.Div(decimal.NewFromInt(2))
		computed.DualAmount1 = half
		computed.DualAmount2 = half
	}

	return computed, nil
}

func (c *Calculator) validateItem(item LineItem) error {
	if item.Quantity.IsNegative() {
		return newError(CodeInvalidLineItem, "line item %q has negative quantity %s", item.Description, item.Quantity.String())
	}
	if item.UnitRate.IsNegative() {
		return newError(CodeInvalidLineItem, "line item %q has negative unit rate %s", item.Description, item.UnitRate.String())
	}
	if item.DiscountValue.IsNegative() {
		return newError(CodeInvalidLineItem, "line item %q has negative discount %s", item.Description, item.DiscountValue.String())
	}
	if item.DiscountType == "" && !item.DiscountValue.IsZero() {
		return newError(CodeInvalidLineItem, "line item %q has a discount value without a discount type", item.Description)
	}
	if item.DiscountType != "" && !item.DiscountType.IsValid() {
		return newError(CodeInvalidLineItem, "line item %q has unknown discount type %s", item.Description, item.DiscountType)
	}
	if !c.rates.Permits(item.TaxRatePercent) {
		return newError(CodeUnsupportedTaxRate, "line item %q has unsupported tax rate %s%%", item.Description, item.TaxRatePercent.String())
	}
	return nil
}

// Compute classifies the parties, computes every line item and aggregates
// the totals in one pass.
func (c *Calculator) Compute(seller string, buyer *string, items []LineItem) (*Breakdown, error) {
	ctx, err := c.Classify(seller, buyer)
	if err != nil {
		return nil, err
	}

	computed := make([]ComputedLineItem, 0, len(items))
	for _, item := range items {
		line, err := c.ComputeItem(item, ctx)
		if err != nil {
			return nil, err
		}
		computed = append(computed, line)
	}

	return &Breakdown{
		Context: ctx,
		Items:   computed,
		Totals:  Aggregate(computed, ctx),
	}, nil
}
