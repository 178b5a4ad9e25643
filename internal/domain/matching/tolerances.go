package matching

import (
	"github.com/shopspring/decimal"
)

// Tolerances are the thresholds the matcher applies. Percentages are
// expressed in percent (5 means 5%).
type Tolerances struct {
	QuantityTolerance           decimal.Decimal // absolute units
	RateTolerancePercent        decimal.Decimal // per-item rate variance
	AmountTolerancePercent      decimal.Decimal // per-item amount variance
	TotalTolerancePercent       decimal.Decimal // document total variance
	QuantityHighSeverityPercent decimal.Decimal // of received quantity
	RateHighSeverityPercent     decimal.Decimal
	TotalHighSeverityPercent    decimal.Decimal
	PartialMatchRatio           decimal.Decimal // 0..1 share of items for PARTIALLY_MATCHED
}

// DefaultTolerances returns the standard matching policy
func DefaultTolerances() Tolerances {
	return Tolerances{
		QuantityTolerance:           decimal.RequireFromString("0.01"),
		RateTolerancePercent:        decimal.RequireFromString("0.1"),
		AmountTolerancePercent:      decimal.NewFromInt(1),
		TotalTolerancePercent:       decimal.NewFromInt(5),
		QuantityHighSeverityPercent: decimal.NewFromInt(10),
		RateHighSeverityPercent:     decimal.NewFromInt(5),
		TotalHighSeverityPercent:    decimal.NewFromInt(10),
		PartialMatchRatio:           decimal.RequireFromString("0.5"),
	}
}

// Validate checks that every threshold is usable
func (t Tolerances) Validate() error {
	nonNegative := []struct {
		name  string
		value decimal.Decimal
	}{
		{"quantity tolerance", t.QuantityTolerance},
		{"rate tolerance", t.RateTolerancePercent},
		{"amount tolerance", t.AmountTolerancePercent},
		{"total tolerance", t.TotalTolerancePercent},
		{"quantity high severity", t.QuantityHighSeverityPercent},
		{"rate high severity", t.RateHighSeverityPercent},
		{"total high severity", t.TotalHighSeverityPercent},
	}
	for _, f := range nonNegative {
		if f.value.IsNegative() {
			return newError(CodeInvalidTolerances, "%s cannot be negative", f.name)
		}
	}
	if t.PartialMatchRatio.IsNegative() || t.PartialMatchRatio.GreaterThan(decimal.NewFromInt(1)) {
		return newError(CodeInvalidTolerances, "partial match ratio must be between 0 and 1")
	}
	return nil
}
