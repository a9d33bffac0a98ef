/*
allowance.go - Tax-free allowance resolution and proration

PURPOSE:
  Resolves the allowance an employee is entitled to for one paycheck.
  Two gates apply, in order:

  1. Residency: only tax residents receive an allowance. Status is
     evaluated on the wage-period's END date, so a mid-period residency
     change uses the status in effect when the period closes.
  2. Effective dating: allowances are versioned like rule sets - zero
     matching versions or overlapping versions are configuration errors
     (for residents; non-residents short-circuit to zero without
     touching configuration).

PRORATION:
  Allowance amounts are full-period (annual) figures and are ALWAYS
  prorated by the wage-period's annual fraction before use. Percentage
  allowances are a share of period income and need no proration.
*/
package tax

import "context"

// =============================================================================
// ALLOWANCE - Versioned tax-free amount
// =============================================================================

type Allowance struct {
	ID           AllowanceID
	Type         string // e.g. "general", "labour"
	Jurisdiction Jurisdiction

	// Amount is a full-period (annual) figure unless IsPercentage, in
	// which case it is a percentage of period income.
	Amount       Money
	IsPercentage bool

	EffectiveFrom Date
	EffectiveTo   *Date
}

func (a Allowance) InEffect(asOf Date) bool {
	return InEffect(a.EffectiveFrom, a.EffectiveTo, asOf)
}

// AllowanceSource supplies all allowance versions for a jurisdiction.
type AllowanceSource interface {
	AllowancesFor(ctx context.Context, jurisdiction Jurisdiction) ([]Allowance, error)
}

// =============================================================================
// RESOLUTION RESULT
// =============================================================================

// AllowanceResult is the allowance applied to one paycheck.
type AllowanceResult struct {
	// Applied version, nil for non-residents (zero allowance, by rule).
	Allowance *Allowance

	Resident bool

	// Prorated amount for fixed allowances (unrounded). Zero for
	// percentage allowances; use AmountFor with the period income.
	Prorated Money
}

// AmountFor returns the tax-free amount for the paycheck, given the period's
// taxable income (needed only for percentage allowances).
func (r AllowanceResult) AmountFor(periodIncome Money) Money {
	if r.Allowance == nil {
		return ZeroMoney()
	}
	if r.Allowance.IsPercentage {
		return periodIncome.Percent(r.Allowance.Amount.Value)
	}
	return r.Prorated
}

// =============================================================================
// RESOLVER
// =============================================================================

type AllowanceResolver struct {
	Source AllowanceSource
}

func NewAllowanceResolver(source AllowanceSource) *AllowanceResolver {
	return &AllowanceResolver{Source: source}
}

// Resolve returns the allowance for one paycheck.
//
// periodEnd is the wage-period's end date (residency gate); asOf is the date
// used to select the configuration version, normally the same date.
func (r *AllowanceResolver) Resolve(ctx context.Context, profile EmployeeProfile, period WagePeriod, periodEnd Date) (AllowanceResult, error) {
	if !profile.ResidentAsOf(periodEnd) {
		// Non-residents receive no tax-free allowance. Not an error.
		return AllowanceResult{Resident: false, Prorated: ZeroMoney()}, nil
	}

	versions, err := r.Source.AllowancesFor(ctx, profile.Jurisdiction)
	if err != nil {
		return AllowanceResult{}, err
	}

	var matches []Allowance
	for _, a := range versions {
		if a.InEffect(periodEnd) {
			matches = append(matches, a)
		}
	}

	if len(matches) != 1 {
		ids := make([]AllowanceID, len(matches))
		for i, a := range matches {
			ids[i] = a.ID
		}
		return AllowanceResult{}, &AllowanceResolutionError{
			Jurisdiction: profile.Jurisdiction,
			AsOf:         periodEnd,
			Matches:      ids,
		}
	}

	applied := matches[0]
	result := AllowanceResult{Allowance: &applied, Resident: true}
	if !applied.IsPercentage {
		result.Prorated = period.Prorate(applied.Amount)
	}
	return result, nil
}
