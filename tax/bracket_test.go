package tax_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// PROGRESSIVE CALCULATION TESTS
// =============================================================================

func TestBracketTax_ProgressiveAcrossBrackets(t *testing.T) {
	// GIVEN: 0-1000 at 10%, 1000-3000 at 20%, 3000+ at 30%
	// WHEN: Taxing 5000
	// THEN: 100 + 400 + 600 = 1100, itemized per bracket

	result, err := tax.CalculateBracketTax(threeBrackets(), m("5000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !moneyEq(result.Tax, "1100") {
		t.Errorf("expected tax 1100, got %s", result.Tax)
	}
	if len(result.Breakdown) != 3 {
		t.Fatalf("expected 3 breakdown lines, got %d", len(result.Breakdown))
	}

	wantSlices := []string{"1000", "2000", "2000"}
	wantTaxes := []string{"100", "400", "600"}
	for i, line := range result.Breakdown {
		if !moneyEq(line.TaxableInBracket, wantSlices[i]) {
			t.Errorf("bracket %d: taxable %s, want %s", line.Order, line.TaxableInBracket, wantSlices[i])
		}
		if !moneyEq(line.Tax, wantTaxes[i]) {
			t.Errorf("bracket %d: tax %s, want %s", line.Order, line.Tax, wantTaxes[i])
		}
	}
}

func TestBracketTax_IncomeAtBracketBoundary(t *testing.T) {
	// Income exactly on a boundary is taxed entirely in the lower
	// brackets; the next bracket contributes nothing.
	cases := []struct {
		income string
		want   string
	}{
		{"0", "0"},
		{"1000", "100"},
		{"3000", "500"},
		{"3000.01", "500"}, // 500.003 rounds to 500.00
	}
	for _, c := range cases {
		result, err := tax.CalculateBracketTax(threeBrackets(), m(c.income))
		if err != nil {
			t.Fatalf("income %s: %v", c.income, err)
		}
		if !moneyEq(result.Tax, c.want) {
			t.Errorf("income %s: tax %s, want %s", c.income, result.Tax, c.want)
		}
	}
}

func TestBracketTax_NegativeIncome_TreatedAsZero(t *testing.T) {
	result, err := tax.CalculateBracketTax(threeBrackets(), m("-250"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Tax.IsZero() {
		t.Errorf("expected zero tax, got %s", result.Tax)
	}
	if !result.Taxable.IsZero() {
		t.Errorf("expected zero taxable, got %s", result.Taxable)
	}
	if len(result.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d lines", len(result.Breakdown))
	}
}

func TestBracketTax_InvalidTableRejected(t *testing.T) {
	rs := threeBrackets()
	rs.Brackets[1].IncomeMin = m("1200") // gap

	if _, err := tax.CalculateBracketTax(rs, m("5000")); err == nil {
		t.Fatal("expected error for table with a gap")
	}
}

// =============================================================================
// FAST-PATH CONSISTENCY
// =============================================================================

func TestBracketTax_FastPathAgreesWithBracketSum(t *testing.T) {
	// The per-bracket sum is canonical; the graduated fast path must
	// agree within a cent for any income.
	rs := threeBrackets()
	tolerance := decimal.RequireFromString("0.01")

	for _, income := range []string{"0", "1", "500", "999.99", "1000", "1500", "2999.99", "3000", "4250.75", "10000", "123456.78"} {
		canonical, err := tax.CalculateBracketTax(rs, m(income))
		if err != nil {
			t.Fatalf("income %s: %v", income, err)
		}
		fast, err := tax.CalculateBracketTaxFixed(rs, m(income))
		if err != nil {
			t.Fatalf("income %s (fast): %v", income, err)
		}
		diff := canonical.Tax.Sub(fast).Value.Abs()
		if diff.GreaterThan(tolerance) {
			t.Errorf("income %s: bracket sum %s, fast path %s", income, canonical.Tax, fast)
		}
	}
}

func TestBracketTax_Monotonic(t *testing.T) {
	// More income never means less tax.
	rs := threeBrackets()
	prev := tax.ZeroMoney()
	for income := 0; income <= 12000; income += 250 {
		result, err := tax.CalculateBracketTax(rs, tax.NewMoneyFromInt(income))
		if err != nil {
			t.Fatalf("income %d: %v", income, err)
		}
		if result.Tax.LessThan(prev) {
			t.Fatalf("tax decreased at income %d: %s < %s", income, result.Tax, prev)
		}
		prev = result.Tax
	}
}

// =============================================================================
// ROUNDING TESTS
// =============================================================================

func TestBracketTax_RoundsOnceHalfUp(t *testing.T) {
	// A flat 10% on 0.05 is 0.005: exactly one half-up rounding on the
	// total gives 0.01.
	rs := flatRule("flat10", "10", "2024-01-01", nil)
	result, err := tax.CalculateBracketTax(rs, m("0.05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !moneyEq(result.Tax, "0.01") {
		t.Errorf("expected 0.01, got %s", result.Tax)
	}
}

func TestUnroundedBracketTax_CarriesFullPrecision(t *testing.T) {
	// The unrounded sum is for composition (bonus smoothing); it must
	// not round.
	rs := flatRule("flat10", "10", "2024-01-01", nil)
	total, err := tax.UnroundedBracketTax(rs, m("0.05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !moneyEq(total, "0.005") {
		t.Errorf("expected 0.005 unrounded, got %s", total)
	}
}
