/*
overtime.go - Tiered special rates for opted-in overtime income

PURPOSE:
  Employees may opt in to a special overtime regime: overtime income is
  split into jurisdiction-configured tiers and taxed at flat tier rates
  (e.g. first tier 5%, next 15%, remainder 25%) instead of being folded
  into the progressive brackets. Without the opt-in, overtime is
  ordinary wage income.

REPRESENTATION:
  A tier table IS a bracket table with flat marginal rates and no
  cumulative bases, so tiers are stored as an effective-dated RuleSet
  with TaxType TaxOvertime and the same resolution, versioning, and
  ambiguity rules as every other levy. No parallel table machinery.

OPT-IN:
  The opt-in is a standing, effective-dated flag on the employee profile,
  evaluated on the paycheck's PAY date. It may not be toggled
  retroactively for a finalized paycheck - enforced at the paycheck
  layer via void-and-recreate.
*/
package tax

import "context"

// =============================================================================
// RESULT
// =============================================================================

// OvertimeResult is the outcome of the special-rate path.
type OvertimeResult struct {
	// Applied is false when the employee has not opted in as of the pay
	// date; the caller must fold overtime into ordinary income instead.
	Applied bool

	RuleSetID RuleSetID
	Income    Money
	Tax       Money // rounded once, half-up
	Tiers     []BracketLine
}

// =============================================================================
// CALCULATOR
// =============================================================================

type OvertimeCalculator struct {
	Rules *Resolver
}

func NewOvertimeCalculator(rules *Resolver) *OvertimeCalculator {
	return &OvertimeCalculator{Rules: rules}
}

// Calculate applies the tier table to overtime income if, and only if, the
// employee has opted in as of payDate.
func (c *OvertimeCalculator) Calculate(ctx context.Context, profile EmployeeProfile, overtimeIncome Money, payDate Date) (OvertimeResult, error) {
	if !profile.OvertimeOptedInAsOf(payDate) {
		return OvertimeResult{Applied: false}, nil
	}

	rs, err := c.Rules.Resolve(ctx, profile.Jurisdiction, TaxOvertime, payDate)
	if err != nil {
		return OvertimeResult{}, err
	}

	bracketed, err := CalculateBracketTax(rs, overtimeIncome)
	if err != nil {
		return OvertimeResult{}, err
	}

	return OvertimeResult{
		Applied:   true,
		RuleSetID: rs.ID,
		Income:    bracketed.Taxable,
		Tax:       bracketed.Tax,
		Tiers:     bracketed.Breakdown,
	}, nil
}
