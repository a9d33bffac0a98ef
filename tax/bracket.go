/*
bracket.go - Progressive bracket tax calculation

PURPOSE:
  The pure function at the heart of the engine: taxable income plus an
  ordered bracket table in, tax amount plus per-bracket breakdown out.

ALGORITHM:
  For each bracket in ascending order, the amount taxed within it is
  min(income, bracketMax) - bracketMin, floored at zero, times the
  bracket's marginal rate. The top bracket is open-ended and absorbs all
  remaining income. Negative taxable income is treated as zero.

FAST PATH:
  Graduated tables carry a precomputed FixedAmount (cumulative tax below
  each bracket), so tax = FixedAmount + (income - IncomeMin) * rate of
  the bracket the income falls into. Both paths are implemented; the
  per-bracket sum is canonical and the fast path must agree with it
  within rounding tolerance (the rule-set validator enforces the
  FixedAmount column, and bracket_test.go cross-checks the two paths).

ROUNDING:
  The per-bracket amounts in the breakdown are unrounded. Round-half-up
  is applied once, on the final total.
*/
package tax

import "github.com/shopspring/decimal"

// =============================================================================
// RESULT TYPES
// =============================================================================

// BracketLine is the tax attributable to a single bracket.
type BracketLine struct {
	Order            int
	TaxableInBracket Money
	Rate             decimal.Decimal // percentage, carried for the audit trail
	Tax              Money           // unrounded
}

// BracketResult is the outcome of one bracket calculation.
type BracketResult struct {
	RuleSetID RuleSetID
	Taxable   Money // the (floored) income the table was applied to
	Tax       Money // rounded once, half-up
	Breakdown []BracketLine
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateBracketTax applies a rule set's bracket table to taxable income.
// Pure: no I/O, deterministic for identical inputs.
func CalculateBracketTax(rs RuleSet, income Money) (BracketResult, error) {
	if err := rs.Validate(); err != nil {
		return BracketResult{}, err
	}

	taxable := income.FloorZero()
	result := BracketResult{RuleSetID: rs.ID, Taxable: taxable}

	total := ZeroMoney()
	for _, b := range rs.Brackets {
		inBracket := taxableWithin(b, taxable)
		if inBracket.IsZero() && !taxable.GreaterThan(b.IncomeMin) {
			break
		}
		line := BracketLine{
			Order:            b.Order,
			TaxableInBracket: inBracket,
			Rate:             b.Rate,
			Tax:              inBracket.Percent(b.Rate),
		}
		total = total.Add(line.Tax)
		result.Breakdown = append(result.Breakdown, line)
	}

	result.Tax = total.Round()
	return result, nil
}

// CalculateBracketTaxFixed is the graduated fast path: cumulative FixedAmount
// of the bracket the income falls into, plus the marginal slice above its
// floor. Must agree with CalculateBracketTax within rounding tolerance.
func CalculateBracketTaxFixed(rs RuleSet, income Money) (Money, error) {
	if err := rs.Validate(); err != nil {
		return Money{}, err
	}

	taxable := income.FloorZero()
	for _, b := range rs.Brackets {
		if b.IncomeMax != nil && taxable.GreaterThan(*b.IncomeMax) {
			continue
		}
		slice := taxable.Sub(b.IncomeMin).FloorZero()
		return b.FixedAmount.Add(slice.Percent(b.Rate)).Round(), nil
	}

	// Unreachable for a validated table (top bracket is open-ended).
	return ZeroMoney(), nil
}

// taxableWithin returns min(income, bracketMax) - bracketMin, floored at 0.
func taxableWithin(b Bracket, income Money) Money {
	upper := income
	if b.IncomeMax != nil {
		upper = income.Min(*b.IncomeMax)
	}
	return upper.Sub(b.IncomeMin).FloorZero()
}

// UnroundedBracketTax sums per-bracket tax without the final rounding.
// The bonus calculator composes incremental taxes across periods and must
// defer rounding to its own final total.
func UnroundedBracketTax(rs RuleSet, income Money) (Money, error) {
	if err := rs.Validate(); err != nil {
		return Money{}, err
	}
	taxable := income.FloorZero()
	total := ZeroMoney()
	for _, b := range rs.Brackets {
		total = total.Add(taxableWithin(b, taxable).Percent(b.Rate))
	}
	return total, nil
}
