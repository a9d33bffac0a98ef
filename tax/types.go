/*
Package tax provides the core payroll tax calculation engine.

PURPOSE:
  This package contains the jurisdiction-agnostic types and algorithms that
  turn a gross wage amount, an employee's residency profile, and a set of
  effective-dated tax rules into tax amounts: progressive bracket taxation,
  wage-period proration of tax-free allowances, smoothed bonus taxation, and
  tiered overtime rates.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal (never float64)
  - Jurisdiction/TaxType: Keys that select which rule set applies
  - RuleSetID/AllowanceID/EmployeeID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Rule sets and allowances are versioned, never mutated
  2. Precision: decimal.Decimal everywhere; ONE rounding point per total
  3. Purity: Calculators are side-effect-free given their inputs
  4. Auditability: Every result records which rule versions were applied

ROUNDING POLICY:
  Intermediate values (per-bracket tax, per-period incremental tax, proration
  fractions) are carried at full decimal precision. Round-half-up to 2
  fractional digits is applied exactly once, on a final total, via
  Money.Round(). Rounding per bracket would compound error across steps.

USAGE:
  income := tax.NewMoney(5000)
  rs, err := resolver.Resolve(ctx, "NL", tax.TaxIncome, payDate)
  result, err := tax.CalculateBracketTax(rs, income)

SEE ALSO:
  - ruleset.go: Effective-dated rule sets and brackets
  - bracket.go: Progressive bracket calculation
  - bonus.go: Smoothed bonus taxation
*/
package tax

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount with decimal precision
// =============================================================================

// Money is a monetary amount in the paycheck's currency.
// All arithmetic stays in decimal; Round() is applied once on final totals.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// MustParseMoney parses a decimal string, returning zero on malformed input.
// Intended for constants and configuration parsing.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money              { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money              { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool       { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool          { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool             { return m.Value.Equal(b.Value) }
func (m Money) Min(b Money) Money              { if m.LessThan(b) { return m }; return b }
func (m Money) Max(b Money) Money              { if m.GreaterThan(b) { return m }; return b }
func (m Money) String() string                 { return m.Value.String() }

// FloorZero clamps negative amounts to zero.
// Taxable income and per-bracket slices are never negative.
func (m Money) FloorZero() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// Round applies the single rounding point: round-half-up to 2 fractional
// digits of the currency. Call this once per final total, never per step.
func (m Money) Round() Money {
	return Money{Value: m.Value.Round(2)}
}

// Percent applies a rate expressed as a percentage (e.g. 36.93 for 36.93%).
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(rate).Div(decimal.NewFromInt(100))}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RuleSetID string
type AllowanceID string

// Jurisdiction identifies the tax authority (e.g. "NL", "US-CA").
type Jurisdiction string

// =============================================================================
// TAX TYPES - Which levy a rule set describes
// =============================================================================

type TaxType string

const (
	TaxIncome         TaxType = "income_tax"
	TaxSocialSecurity TaxType = "social_security"
	TaxMedicare       TaxType = "medicare" // or jurisdiction equivalent
	TaxOvertime       TaxType = "overtime_special_rate"
)

// =============================================================================
// RESIDENCY & FILING
// =============================================================================

type ResidencyStatus string

const (
	ResidencyResident    ResidencyStatus = "resident"
	ResidencyNonResident ResidencyStatus = "non_resident"
)

type FilingStatus string

const (
	FilingSingle  FilingStatus = "single"
	FilingJoint   FilingStatus = "joint"
	FilingUnknown FilingStatus = ""
)
