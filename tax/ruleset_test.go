package tax_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Note: these helpers and the stub sources are shared by the other test
// files in this package (bracket_test.go, bonus_test.go, overtime_test.go).

func m(s string) tax.Money {
	return tax.MustParseMoney(s)
}

func mp(s string) *tax.Money {
	v := m(s)
	return &v
}

func pct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func on(s string) tax.Date {
	return tax.MustParseDate(s)
}

func datePtr(s string) *tax.Date {
	d := on(s)
	return &d
}

// moneyEq compares a Money against a decimal string, ignoring exponent.
func moneyEq(a tax.Money, s string) bool {
	return a.Value.Equal(decimal.RequireFromString(s))
}

// approxMoney checks equality within a small tolerance, for values whose
// exact decimal representation depends on division precision.
func approxMoney(a tax.Money, s string) bool {
	diff := a.Value.Sub(decimal.RequireFromString(s)).Abs()
	return diff.LessThan(decimal.RequireFromString("0.0001"))
}

// stubRules is an in-memory RuleSetSource for calculator tests.
type stubRules struct {
	sets []tax.RuleSet
}

func (s stubRules) RuleSetsFor(_ context.Context, j tax.Jurisdiction, t tax.TaxType) ([]tax.RuleSet, error) {
	var out []tax.RuleSet
	for _, rs := range s.sets {
		if rs.Jurisdiction == j && rs.TaxType == t {
			out = append(out, rs)
		}
	}
	return out, nil
}

// threeBrackets is the canonical progressive test table:
// 0-1000 at 10%, 1000-3000 at 20%, 3000+ at 30%.
func threeBrackets() tax.RuleSet {
	return tax.RuleSet{
		ID:            "test-income",
		Jurisdiction:  "XX",
		TaxType:       tax.TaxIncome,
		Method:        tax.MethodGraduated,
		EffectiveFrom: on("2024-01-01"),
		Brackets: []tax.Bracket{
			{Order: 1, IncomeMin: m("0"), IncomeMax: mp("1000"), Rate: pct("10"), FixedAmount: m("0")},
			{Order: 2, IncomeMin: m("1000"), IncomeMax: mp("3000"), Rate: pct("20"), FixedAmount: m("100")},
			{Order: 3, IncomeMin: m("3000"), Rate: pct("30"), FixedAmount: m("500")},
		},
	}
}

// flatRule builds a one-bracket flat-rate version with the given window.
func flatRule(id string, rate string, from string, to *tax.Date) tax.RuleSet {
	return tax.RuleSet{
		ID:            tax.RuleSetID(id),
		Jurisdiction:  "XX",
		TaxType:       tax.TaxIncome,
		Method:        tax.MethodFlatRate,
		EffectiveFrom: on(from),
		EffectiveTo:   to,
		Brackets: []tax.Bracket{
			{Order: 1, IncomeMin: m("0"), Rate: pct(rate), FixedAmount: m("0")},
		},
	}
}

// =============================================================================
// EFFECTIVE-RANGE TESTS
// =============================================================================

func TestInEffect_HalfOpenRange(t *testing.T) {
	from := on("2024-01-01")
	to := on("2025-01-01")

	cases := []struct {
		asOf string
		want bool
	}{
		{"2023-12-31", false},
		{"2024-01-01", true}, // inclusive lower bound
		{"2024-06-15", true},
		{"2024-12-31", true},
		{"2025-01-01", false}, // exclusive upper bound
	}
	for _, c := range cases {
		if got := tax.InEffect(from, &to, on(c.asOf)); got != c.want {
			t.Errorf("InEffect(%s) = %v, want %v", c.asOf, got, c.want)
		}
	}

	// Nil 'to' means open-ended.
	if !tax.InEffect(from, nil, on("2099-12-31")) {
		t.Error("open-ended range should cover any later date")
	}
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolver_SelectsVersionInEffect(t *testing.T) {
	// GIVEN: A 2024 version closed at 2025-01-01 and an open-ended 2025 version
	// WHEN: Resolving on dates on either side of the boundary
	// THEN: Each date resolves to exactly one version; the boundary day
	//       belongs to the newer version

	source := stubRules{sets: []tax.RuleSet{
		flatRule("v2024", "10", "2024-01-01", datePtr("2025-01-01")),
		flatRule("v2025", "20", "2025-01-01", nil),
	}}
	resolver := tax.NewResolver(source)
	ctx := context.Background()

	rs, err := resolver.Resolve(ctx, "XX", tax.TaxIncome, on("2024-06-15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.ID != "v2024" {
		t.Errorf("expected v2024, got %s", rs.ID)
	}

	rs, err = resolver.Resolve(ctx, "XX", tax.TaxIncome, on("2025-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.ID != "v2025" {
		t.Errorf("boundary day should resolve to v2025, got %s", rs.ID)
	}
}

func TestResolver_NoVersion_IsConfigurationError(t *testing.T) {
	// GIVEN: No version covers the requested date
	// WHEN: Resolving
	// THEN: ErrNoApplicableRuleSet; the tax is never silently skipped

	source := stubRules{sets: []tax.RuleSet{
		flatRule("v2024", "10", "2024-01-01", datePtr("2025-01-01")),
	}}
	resolver := tax.NewResolver(source)

	_, err := resolver.Resolve(context.Background(), "XX", tax.TaxIncome, on("2023-06-15"))
	if !errors.Is(err, tax.ErrNoApplicableRuleSet) {
		t.Fatalf("expected ErrNoApplicableRuleSet, got %v", err)
	}
	if !tax.IsConfigurationError(err) {
		t.Error("resolution gap should classify as a configuration error")
	}

	var resErr *tax.RuleSetResolutionError
	if !errors.As(err, &resErr) {
		t.Fatal("expected *RuleSetResolutionError")
	}
	if len(resErr.Matches) != 0 {
		t.Errorf("expected 0 matches, got %d", len(resErr.Matches))
	}
}

func TestResolver_OverlappingVersions_Ambiguous(t *testing.T) {
	// GIVEN: Two versions both covering the same date
	// WHEN: Resolving
	// THEN: ErrAmbiguousRuleSet listing the colliding versions; never an
	//       arbitrary pick

	source := stubRules{sets: []tax.RuleSet{
		flatRule("v-a", "10", "2024-01-01", nil),
		flatRule("v-b", "20", "2024-06-01", nil),
	}}
	resolver := tax.NewResolver(source)

	_, err := resolver.Resolve(context.Background(), "XX", tax.TaxIncome, on("2024-07-01"))
	if !errors.Is(err, tax.ErrAmbiguousRuleSet) {
		t.Fatalf("expected ErrAmbiguousRuleSet, got %v", err)
	}

	var resErr *tax.RuleSetResolutionError
	if !errors.As(err, &resErr) {
		t.Fatal("expected *RuleSetResolutionError")
	}
	if len(resErr.Matches) != 2 {
		t.Errorf("expected 2 colliding versions, got %d", len(resErr.Matches))
	}
}

func TestResolver_InvalidTableSurfacesOnResolve(t *testing.T) {
	// A resolvable version with a broken bracket table fails resolution.
	broken := flatRule("v-bad", "10", "2024-01-01", nil)
	broken.Brackets[0].IncomeMax = mp("1000") // bounded top bracket

	resolver := tax.NewResolver(stubRules{sets: []tax.RuleSet{broken}})
	_, err := resolver.Resolve(context.Background(), "XX", tax.TaxIncome, on("2024-07-01"))
	if !errors.Is(err, tax.ErrInvalidBracketTable) {
		t.Fatalf("expected ErrInvalidBracketTable, got %v", err)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestRuleSetValidate(t *testing.T) {
	base := threeBrackets()

	tests := []struct {
		name   string
		mutate func(rs *tax.RuleSet)
		valid  bool
	}{
		{"valid table", func(rs *tax.RuleSet) {}, true},
		{"no brackets", func(rs *tax.RuleSet) { rs.Brackets = nil }, false},
		{"first bracket not at zero", func(rs *tax.RuleSet) {
			rs.Brackets[0].IncomeMin = m("100")
		}, false},
		{"gap between brackets", func(rs *tax.RuleSet) {
			rs.Brackets[1].IncomeMin = m("1200")
		}, false},
		{"overlapping brackets", func(rs *tax.RuleSet) {
			rs.Brackets[1].IncomeMin = m("900")
		}, false},
		{"bounded top bracket", func(rs *tax.RuleSet) {
			rs.Brackets[2].IncomeMax = mp("9000")
		}, false},
		{"fixed amount disagrees with integration", func(rs *tax.RuleSet) {
			rs.Brackets[2].FixedAmount = m("480")
		}, false},
		{"inverted bracket bounds", func(rs *tax.RuleSet) {
			rs.Brackets[1].IncomeMax = mp("800")
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rs := base
			rs.Brackets = append([]tax.Bracket(nil), base.Brackets...)
			tc.mutate(&rs)

			err := rs.Validate()
			if tc.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, tax.ErrInvalidBracketTable) {
					t.Errorf("expected ErrInvalidBracketTable, got %v", err)
				}
			}
		})
	}
}

func TestRuleSetValidate_FixedAmountTolerance(t *testing.T) {
	// FixedAmount within a cent of the integrated value is accepted;
	// published tables carry rounded cumulative figures.
	rs := threeBrackets()
	rs.Brackets[2].FixedAmount = m("500.01")
	if err := rs.Validate(); err != nil {
		t.Errorf("one-cent disagreement should pass, got %v", err)
	}

	rs.Brackets[2].FixedAmount = m("500.02")
	if err := rs.Validate(); err == nil {
		t.Error("two-cent disagreement should fail validation")
	}
}
