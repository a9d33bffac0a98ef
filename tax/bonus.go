/*
bonus.go - Smoothed taxation of special remuneration (bijzondere beloning)

PURPOSE:
  A bonus is legally taxed by the method it WOULD have been taxed under
  had it been spread evenly over the wage periods it covers - not at the
  marginal rate of the single period it is paid in.

ALGORITHM:
  1. averagePerPeriod = bonusAmount / periodsCovered
  2. For each historical period: tax(periodIncome + averagePerPeriod)
     minus tax(periodIncome), using the rule-set version in effect for
     THAT period (history may straddle a version boundary; each period
     resolves its own version).
  3. The sum of the incremental amounts is the tax attributable to the
     bonus. It REPLACES what a naive marginal calculation on the bonus
     alone would have produced.

INSUFFICIENT HISTORY:
  A newly hired employee may have fewer historical periods than the
  bonus covers. The documented fallback: spread the bonus over the
  periods that exist (averagePerPeriod = bonusAmount / available). This
  is an explicit policy, surfaced in the result metadata - never a
  silent error and never a failure.

EDGE CASES:
  bonusAmount <= 0     -> zero additional tax, short-circuit
  periodsCovered < 1   -> InvalidBonusConfiguration (input error)
  history > covered    -> InvalidBonusConfiguration (input error)
*/
package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BONUS CONTEXT - Input for the smoothed method
// =============================================================================

// PeriodIncome is one historical wage period and its regular income.
type PeriodIncome struct {
	PeriodEnd Date
	Income    Money
}

// BonusContext describes a bonus and the wage periods it covers.
type BonusContext struct {
	Amount Money
	Type   string // e.g. "annual_bonus", "thirteenth_month", "holiday_pay"

	// PeriodsCovered is the statutory loontijdvak count the bonus is
	// smoothed over. Must be >= 1.
	PeriodsCovered int

	// RegularIncomePeriods is the ordered income history, at most
	// PeriodsCovered entries. Fewer entries trigger the documented
	// insufficient-history fallback.
	RegularIncomePeriods []PeriodIncome
}

// =============================================================================
// RESULT
// =============================================================================

// BonusPeriodLine is the incremental tax attributed to one covered period.
type BonusPeriodLine struct {
	PeriodEnd      Date
	RuleSetID      RuleSetID
	RegularIncome  Money
	IncrementalTax Money // unrounded
}

// BonusResult is the outcome of smoothing a bonus.
type BonusResult struct {
	Tax              Money // rounded once, half-up
	AveragePerPeriod Money
	PeriodsCovered   int
	PeriodsUsed      int

	// UsedFallback is true when fewer historical periods existed than
	// PeriodsCovered and the bonus was spread over the available ones.
	UsedFallback bool

	PerPeriod []BonusPeriodLine
}

// =============================================================================
// CALCULATOR
// =============================================================================

// BonusCalculator applies the smoothed method using per-period rule-set
// resolution.
type BonusCalculator struct {
	Rules *Resolver
}

func NewBonusCalculator(rules *Resolver) *BonusCalculator {
	return &BonusCalculator{Rules: rules}
}

// Calculate returns the tax attributable to the bonus under the smoothed
// method for the given jurisdiction and levy.
func (c *BonusCalculator) Calculate(ctx context.Context, jurisdiction Jurisdiction, taxType TaxType, bonus BonusContext) (BonusResult, error) {
	if bonus.PeriodsCovered < 1 {
		return BonusResult{}, &BonusConfigurationError{
			PeriodsCovered: bonus.PeriodsCovered,
			HistoryLength:  len(bonus.RegularIncomePeriods),
			Reason:         "covered periods must be at least 1",
		}
	}
	if len(bonus.RegularIncomePeriods) > bonus.PeriodsCovered {
		return BonusResult{}, &BonusConfigurationError{
			PeriodsCovered: bonus.PeriodsCovered,
			HistoryLength:  len(bonus.RegularIncomePeriods),
			Reason:         "income history longer than covered periods",
		}
	}

	result := BonusResult{
		PeriodsCovered: bonus.PeriodsCovered,
		Tax:            ZeroMoney(),
	}

	if !bonus.Amount.IsPositive() {
		// Nothing to smooth.
		return result, nil
	}

	periods := bonus.RegularIncomePeriods
	if len(periods) == 0 {
		return BonusResult{}, &BonusConfigurationError{
			PeriodsCovered: bonus.PeriodsCovered,
			HistoryLength:  0,
			Reason:         "no income history supplied",
		}
	}

	used := len(periods)
	result.PeriodsUsed = used
	result.UsedFallback = used < bonus.PeriodsCovered

	// Spread the bonus over the periods actually used. With full history
	// this is amount/covered; the fallback prorates over the available
	// count so each period still carries an even share.
	average := bonus.Amount.Div(decimal.NewFromInt(int64(used)))
	result.AveragePerPeriod = average

	total := ZeroMoney()
	for _, p := range periods {
		rs, err := c.Rules.Resolve(ctx, jurisdiction, taxType, p.PeriodEnd)
		if err != nil {
			return BonusResult{}, err
		}

		withBonus, err := UnroundedBracketTax(rs, p.Income.Add(average))
		if err != nil {
			return BonusResult{}, err
		}
		without, err := UnroundedBracketTax(rs, p.Income)
		if err != nil {
			return BonusResult{}, err
		}

		incremental := withBonus.Sub(without)
		total = total.Add(incremental)
		result.PerPeriod = append(result.PerPeriod, BonusPeriodLine{
			PeriodEnd:      p.PeriodEnd,
			RuleSetID:      rs.ID,
			RegularIncome:  p.Income,
			IncrementalTax: incremental,
		})
	}

	result.Tax = total.Round()
	return result, nil
}
