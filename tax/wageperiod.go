/*
wageperiod.go - Wage-period (loontijdvak) normalization

PURPOSE:
  Converts a statutory wage-period type into the canonical day count and
  annual fraction used for proration. Every full-period configuration
  figure (annual allowances, annual caps) is scaled by the fraction
  before use.

CANONICAL DAY COUNTS:
  yearly  = 364
  monthly = 30.33
  weekly  = 7
  daily   = 1

  The statutory year is 364 days (52 weeks), not 365; 30.33 is the
  statutory month (364/12). Other period lengths derive their annual
  fraction as PeriodsCovered * DaysInPeriod / 364.
*/
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WAGE-PERIOD TYPE
// =============================================================================

type WagePeriodType string

const (
	PeriodYearly  WagePeriodType = "yearly"
	PeriodMonthly WagePeriodType = "monthly"
	PeriodWeekly  WagePeriodType = "weekly"
	PeriodDaily   WagePeriodType = "daily"
)

// canonical statutory day counts
var canonicalDays = map[WagePeriodType]decimal.Decimal{
	PeriodYearly:  decimal.NewFromInt(364),
	PeriodMonthly: decimal.NewFromFloat(30.33),
	PeriodWeekly:  decimal.NewFromInt(7),
	PeriodDaily:   decimal.NewFromInt(1),
}

var annualDayCount = decimal.NewFromInt(364)

// ParseWagePeriodType validates a wage-period type string.
// A malformed type is an input error, rejected before any calculation.
func ParseWagePeriodType(s string) (WagePeriodType, error) {
	t := WagePeriodType(s)
	if _, ok := canonicalDays[t]; !ok {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidWagePeriod, s)
	}
	return t, nil
}

// =============================================================================
// WAGE PERIOD - Canonical day count + proration fraction
// =============================================================================

type WagePeriod struct {
	Type WagePeriodType

	// PeriodsCovered supports fractional and multi-period paychecks
	// (e.g. 0.5 for a mid-month start, 2 for a double period). Default 1.
	PeriodsCovered decimal.Decimal

	// DaysInPeriod is the canonical day count for Type.
	DaysInPeriod decimal.Decimal
}

// NewWagePeriod builds a single full period of the given type.
func NewWagePeriod(t WagePeriodType) (WagePeriod, error) {
	return NewWagePeriodCovering(t, decimal.NewFromInt(1))
}

// NewWagePeriodCovering builds a period covering a fractional count of the
// canonical period length.
func NewWagePeriodCovering(t WagePeriodType, periodsCovered decimal.Decimal) (WagePeriod, error) {
	days, ok := canonicalDays[t]
	if !ok {
		return WagePeriod{}, fmt.Errorf("%w: unknown type %q", ErrInvalidWagePeriod, t)
	}
	if !periodsCovered.IsPositive() {
		return WagePeriod{}, fmt.Errorf("%w: periods covered must be positive, got %s",
			ErrInvalidWagePeriod, periodsCovered)
	}
	return WagePeriod{Type: t, PeriodsCovered: periodsCovered, DaysInPeriod: days}, nil
}

// AnnualFraction is the share of the statutory year this period represents:
// PeriodsCovered * DaysInPeriod / 364. Annual figures are multiplied by this
// fraction to prorate them to the period.
func (wp WagePeriod) AnnualFraction() decimal.Decimal {
	return wp.PeriodsCovered.Mul(wp.DaysInPeriod).Div(annualDayCount)
}

// Prorate scales a full-period (annual) amount down to this wage period.
// The result is unrounded; rounding happens once on the consuming total.
func (wp WagePeriod) Prorate(annual Money) Money {
	return annual.Mul(wp.AnnualFraction())
}

func (wp WagePeriod) String() string {
	return fmt.Sprintf("%s x %s (%s days)", wp.Type, wp.PeriodsCovered, wp.DaysInPeriod)
}
