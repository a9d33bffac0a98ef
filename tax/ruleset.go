/*
ruleset.go - Effective-dated tax rule sets and their resolution

PURPOSE:
  A RuleSet is the versioned configuration record for one levy in one
  jurisdiction: its calculation method, its bracket table, and the date
  range in which it applies. Historical paychecks stay reproducible
  because published versions are never mutated - a change is a new
  version with a later EffectiveFrom that supersedes the old one.

VERSIONING CONTRACT:
  - A version applies for [EffectiveFrom, EffectiveTo). Nil EffectiveTo
    means open-ended (the current version).
  - Exactly one version may cover any given date. Zero matches and
    multiple matches are both configuration errors, reported distinctly.
  - Published versions are immutable. Corrections append a new version.

BRACKET INVARIANTS:
  - Brackets are ordered ascending and contiguous: IncomeMin of bracket
    N+1 equals IncomeMax of bracket N.
  - The top bracket is open-ended (nil IncomeMax) and absorbs all
    remaining income.
  - FixedAmount is the cumulative tax below IncomeMin, a precomputed
    base for the fast path in bracket.go. Validate() checks it agrees
    with direct integration of the lower brackets.

SEE ALSO:
  - bracket.go: The calculation over a resolved rule set
  - allowance.go: The same versioning contract for allowances
*/
package tax

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATION METHOD
// =============================================================================

type CalculationMethod string

const (
	// MethodBracket: progressive marginal brackets, tax summed per bracket.
	MethodBracket CalculationMethod = "bracket"

	// MethodFlatRate: a single rate over the full amount. Represented as a
	// one-bracket table; kept as a distinct method for configuration clarity.
	MethodFlatRate CalculationMethod = "flat_rate"

	// MethodGraduated: brackets with precomputed cumulative FixedAmount
	// bases. Calculation may use the fast path but must agree with the
	// per-bracket sum within rounding tolerance.
	MethodGraduated CalculationMethod = "graduated"
)

// =============================================================================
// RULE SET - Immutable, versioned by effective date
// =============================================================================

type RuleSet struct {
	ID            RuleSetID
	Jurisdiction  Jurisdiction
	TaxType       TaxType
	Method        CalculationMethod
	EffectiveFrom Date
	EffectiveTo   *Date // nil = open-ended (current version)

	// AnnualCap bounds the income subject to this levy over a full year
	// (e.g. social-security wage base). Prorated by the wage-period
	// fraction before application; see payroll pipeline.
	AnnualCap *Money

	// Brackets ordered ascending by IncomeMin. For MethodFlatRate this is
	// a single open-ended bracket.
	Brackets []Bracket
}

// Bracket is one contiguous income range taxed at a single marginal rate.
type Bracket struct {
	Order     int
	IncomeMin Money
	IncomeMax *Money // nil = open-ended top bracket

	// Rate as a percentage (36.93 means 36.93%).
	Rate decimal.Decimal

	// FixedAmount is the cumulative tax for all income below IncomeMin.
	FixedAmount Money
}

// InEffect reports whether this version covers asOf.
func (rs RuleSet) InEffect(asOf Date) bool {
	return InEffect(rs.EffectiveFrom, rs.EffectiveTo, asOf)
}

// Validate checks the bracket-table invariants: non-empty, ordered,
// contiguous, non-overlapping, open-ended top bracket, and FixedAmount
// consistent with direct integration of the lower brackets.
func (rs RuleSet) Validate() error {
	if len(rs.Brackets) == 0 {
		return &BracketTableError{RuleSetID: rs.ID, Reason: "no brackets"}
	}

	cumulative := ZeroMoney()
	for i, b := range rs.Brackets {
		if i == 0 {
			if !b.IncomeMin.IsZero() {
				return &BracketTableError{RuleSetID: rs.ID,
					Reason: fmt.Sprintf("first bracket starts at %s, want 0", b.IncomeMin)}
			}
		} else {
			prev := rs.Brackets[i-1]
			if prev.IncomeMax == nil {
				return &BracketTableError{RuleSetID: rs.ID,
					Reason: fmt.Sprintf("bracket %d is open-ended but not last", prev.Order)}
			}
			// Contiguity: no gaps, no overlaps.
			if !b.IncomeMin.Equal(*prev.IncomeMax) {
				return &BracketTableError{RuleSetID: rs.ID,
					Reason: fmt.Sprintf("bracket %d starts at %s, previous ends at %s",
						b.Order, b.IncomeMin, *prev.IncomeMax)}
			}
			width := prev.IncomeMax.Sub(prev.IncomeMin)
			cumulative = cumulative.Add(width.Percent(prev.Rate))
		}

		if b.IncomeMax != nil && !b.IncomeMax.GreaterThan(b.IncomeMin) {
			return &BracketTableError{RuleSetID: rs.ID,
				Reason: fmt.Sprintf("bracket %d has max %s <= min %s", b.Order, *b.IncomeMax, b.IncomeMin)}
		}

		// FixedAmount must match integration of everything below, within
		// a cent of rounding tolerance.
		if cumulative.Sub(b.FixedAmount).Value.Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
			return &BracketTableError{RuleSetID: rs.ID,
				Reason: fmt.Sprintf("bracket %d fixed amount %s disagrees with integrated %s",
					b.Order, b.FixedAmount, cumulative)}
		}
	}

	top := rs.Brackets[len(rs.Brackets)-1]
	if top.IncomeMax != nil {
		return &BracketTableError{RuleSetID: rs.ID, Reason: "top bracket must be open-ended"}
	}
	return nil
}

// =============================================================================
// RULE SET SOURCE - Read-only repository of versioned rule sets
// =============================================================================

// RuleSetSource supplies all versions for a jurisdiction and tax type.
// The resolver selects the one in effect; the source does not filter by date
// so that overlapping configuration can be detected rather than masked.
type RuleSetSource interface {
	RuleSetsFor(ctx context.Context, jurisdiction Jurisdiction, taxType TaxType) ([]RuleSet, error)
}

// =============================================================================
// RESOLVER - Which version applies on a date
// =============================================================================

// Resolver selects the rule-set version in effect on a date.
type Resolver struct {
	Source RuleSetSource
}

func NewResolver(source RuleSetSource) *Resolver {
	return &Resolver{Source: source}
}

// Resolve returns the single rule set covering asOf.
// Zero matches fail with ErrNoApplicableRuleSet, multiple matches with
// ErrAmbiguousRuleSet - both fatal for the paycheck, never defaulted.
func (r *Resolver) Resolve(ctx context.Context, jurisdiction Jurisdiction, taxType TaxType, asOf Date) (RuleSet, error) {
	versions, err := r.Source.RuleSetsFor(ctx, jurisdiction, taxType)
	if err != nil {
		return RuleSet{}, err
	}

	var matches []RuleSet
	for _, rs := range versions {
		if rs.InEffect(asOf) {
			matches = append(matches, rs)
		}
	}

	if len(matches) != 1 {
		ids := make([]RuleSetID, len(matches))
		for i, rs := range matches {
			ids[i] = rs.ID
		}
		return RuleSet{}, &RuleSetResolutionError{
			Jurisdiction: jurisdiction,
			TaxType:      taxType,
			AsOf:         asOf,
			Matches:      ids,
		}
	}

	rs := matches[0]
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}
