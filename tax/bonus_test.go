package tax_test

import (
	"context"
	"errors"
	"testing"

	"github.com/warp/payroll-engine/tax"
)

// progressiveRule: 0-3000 at 10%, 3000+ at 40%, open-ended from 2024.
func progressiveRule() tax.RuleSet {
	return tax.RuleSet{
		ID:            "prog",
		Jurisdiction:  "XX",
		TaxType:       tax.TaxIncome,
		Method:        tax.MethodGraduated,
		EffectiveFrom: on("2024-01-01"),
		Brackets: []tax.Bracket{
			{Order: 1, IncomeMin: m("0"), IncomeMax: mp("3000"), Rate: pct("10"), FixedAmount: m("0")},
			{Order: 2, IncomeMin: m("3000"), Rate: pct("40"), FixedAmount: m("300")},
		},
	}
}

func newBonusCalculator(sets ...tax.RuleSet) *tax.BonusCalculator {
	return tax.NewBonusCalculator(tax.NewResolver(stubRules{sets: sets}))
}

func history(income string, ends ...string) []tax.PeriodIncome {
	out := make([]tax.PeriodIncome, len(ends))
	for i, end := range ends {
		out[i] = tax.PeriodIncome{PeriodEnd: on(end), Income: m(income)}
	}
	return out
}

func monthEnds2024(n int) []string {
	all := []string{
		"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30",
		"2024-05-31", "2024-06-30", "2024-07-31", "2024-08-31",
		"2024-09-30", "2024-10-31", "2024-11-30", "2024-12-31",
	}
	return all[:n]
}

// =============================================================================
// SMOOTHED METHOD
// =============================================================================

func TestBonus_SmoothedOverCoveredPeriods(t *testing.T) {
	// GIVEN: A 1200 bonus over 12 periods, each with 3000 regular income
	//        (the top of the 10% bracket)
	// WHEN: Smoothing
	// THEN: Each period's 100 share is taxed at the 40% marginal rate it
	//       WOULD have faced: 12 * 40 = 480. A naive calculation on the
	//       bonus alone (all in the 10% bracket) would give 120.

	calc := newBonusCalculator(progressiveRule())
	result, err := calc.Calculate(context.Background(), "XX", tax.TaxIncome, tax.BonusContext{
		Amount:               m("1200"),
		PeriodsCovered:       12,
		RegularIncomePeriods: history("3000", monthEnds2024(12)...),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !moneyEq(result.Tax, "480") {
		t.Errorf("smoothed tax = %s, want 480", result.Tax)
	}
	if !moneyEq(result.AveragePerPeriod, "100") {
		t.Errorf("average per period = %s, want 100", result.AveragePerPeriod)
	}
	if result.UsedFallback {
		t.Error("full history should not flag the fallback")
	}
	if result.PeriodsUsed != 12 {
		t.Errorf("periods used = %d, want 12", result.PeriodsUsed)
	}
	if len(result.PerPeriod) != 12 {
		t.Fatalf("expected 12 per-period lines, got %d", len(result.PerPeriod))
	}
	for _, line := range result.PerPeriod {
		if !moneyEq(line.IncrementalTax, "40") {
			t.Errorf("period %s: incremental %s, want 40", line.PeriodEnd, line.IncrementalTax)
		}
	}
}

func TestBonus_SinglePeriodEqualsMarginalCalculation(t *testing.T) {
	// GIVEN: A 2000 bonus covering exactly 1 period with 2500 regular
	//        income, so the bonus straddles the 3000 bracket boundary
	// WHEN: Smoothing
	// THEN: Degenerates to the direct marginal calculation in that
	//       period: tax(4500) - tax(2500) = 900 - 250 = 650

	calc := newBonusCalculator(progressiveRule())
	result, err := calc.Calculate(context.Background(), "XX", tax.TaxIncome, tax.BonusContext{
		Amount:               m("2000"),
		PeriodsCovered:       1,
		RegularIncomePeriods: history("2500", "2024-01-31"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !moneyEq(result.Tax, "650") {
		t.Errorf("single-period tax = %s, want 650", result.Tax)
	}
	if !moneyEq(result.AveragePerPeriod, "2000") {
		t.Errorf("average per period = %s, want the full bonus 2000", result.AveragePerPeriod)
	}
	if result.UsedFallback {
		t.Error("a fully covered single period is not the fallback")
	}
	if result.PeriodsUsed != 1 || result.PeriodsCovered != 1 {
		t.Errorf("periods used/covered = %d/%d, want 1/1", result.PeriodsUsed, result.PeriodsCovered)
	}
	if len(result.PerPeriod) != 1 {
		t.Fatalf("expected 1 per-period line, got %d", len(result.PerPeriod))
	}
	if !moneyEq(result.PerPeriod[0].IncrementalTax, "650") {
		t.Errorf("incremental = %s, want 650", result.PerPeriod[0].IncrementalTax)
	}
}

func TestBonus_InsufficientHistory_DocumentedFallback(t *testing.T) {
	// GIVEN: A 1200 bonus over 12 periods but only 6 historical periods
	//        (newly hired employee), each with 2900 income
	// WHEN: Smoothing
	// THEN: The bonus spreads over the 6 available periods (200 each);
	//       flagged in the result, never an error

	calc := newBonusCalculator(progressiveRule())
	result, err := calc.Calculate(context.Background(), "XX", tax.TaxIncome, tax.BonusContext{
		Amount:               m("1200"),
		PeriodsCovered:       12,
		RegularIncomePeriods: history("2900", monthEnds2024(6)...),
	})
	if err != nil {
		t.Fatalf("fallback must not be an error: %v", err)
	}

	if !result.UsedFallback {
		t.Error("expected the fallback flag")
	}
	if result.PeriodsUsed != 6 || result.PeriodsCovered != 12 {
		t.Errorf("periods used/covered = %d/%d, want 6/12", result.PeriodsUsed, result.PeriodsCovered)
	}
	if !moneyEq(result.AveragePerPeriod, "200") {
		t.Errorf("average per period = %s, want 200", result.AveragePerPeriod)
	}
	// tax(3100) - tax(2900) = 340 - 290 = 50 per period, 6 periods.
	if !moneyEq(result.Tax, "300") {
		t.Errorf("smoothed tax = %s, want 300", result.Tax)
	}
}

func TestBonus_HistoryStraddlesVersionBoundary(t *testing.T) {
	// GIVEN: A flat 10% version through 2024 and a flat 20% version from
	//        2025, with history on both sides of the boundary
	// WHEN: Smoothing a 200 bonus over the 2 periods
	// THEN: Each period resolves its OWN version: 10 + 20 = 30

	calc := newBonusCalculator(
		flatRule("flat-2024", "10", "2024-01-01", datePtr("2025-01-01")),
		flatRule("flat-2025", "20", "2025-01-01", nil),
	)
	result, err := calc.Calculate(context.Background(), "XX", tax.TaxIncome, tax.BonusContext{
		Amount:         m("200"),
		PeriodsCovered: 2,
		RegularIncomePeriods: []tax.PeriodIncome{
			{PeriodEnd: on("2024-12-31"), Income: m("1000")},
			{PeriodEnd: on("2025-01-31"), Income: m("1000")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !moneyEq(result.Tax, "30") {
		t.Errorf("smoothed tax = %s, want 30", result.Tax)
	}
	if result.PerPeriod[0].RuleSetID != "flat-2024" || result.PerPeriod[1].RuleSetID != "flat-2025" {
		t.Errorf("per-period versions = %s, %s; want flat-2024, flat-2025",
			result.PerPeriod[0].RuleSetID, result.PerPeriod[1].RuleSetID)
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestBonus_NonPositiveAmount_ZeroTax(t *testing.T) {
	calc := newBonusCalculator(progressiveRule())
	for _, amount := range []string{"0", "-100"} {
		result, err := calc.Calculate(context.Background(), "XX", tax.TaxIncome, tax.BonusContext{
			Amount:               m(amount),
			PeriodsCovered:       12,
			RegularIncomePeriods: history("3000", monthEnds2024(12)...),
		})
		if err != nil {
			t.Fatalf("amount %s: %v", amount, err)
		}
		if !result.Tax.IsZero() {
			t.Errorf("amount %s: expected zero tax, got %s", amount, result.Tax)
		}
		if len(result.PerPeriod) != 0 {
			t.Errorf("amount %s: expected no per-period lines", amount)
		}
	}
}

func TestBonus_InvalidConfiguration_InputErrors(t *testing.T) {
	calc := newBonusCalculator(progressiveRule())
	ctx := context.Background()

	cases := []struct {
		name  string
		bonus tax.BonusContext
	}{
		{"covered periods below one", tax.BonusContext{
			Amount: m("1200"), PeriodsCovered: 0,
		}},
		{"history longer than covered", tax.BonusContext{
			Amount: m("1200"), PeriodsCovered: 2,
			RegularIncomePeriods: history("3000", monthEnds2024(3)...),
		}},
		{"positive bonus without history", tax.BonusContext{
			Amount: m("1200"), PeriodsCovered: 12,
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := calc.Calculate(ctx, "XX", tax.TaxIncome, c.bonus)
			if !errors.Is(err, tax.ErrInvalidBonusConfiguration) {
				t.Fatalf("expected ErrInvalidBonusConfiguration, got %v", err)
			}
			if !tax.IsInputError(err) {
				t.Error("bonus configuration problems are input errors")
			}
		})
	}
}
