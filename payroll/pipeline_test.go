package payroll_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestEngine seeds the demo jurisdiction into a fresh in-memory store.
func newTestEngine(t *testing.T) (*payroll.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	factory.DemoJurisdiction().Seed(store)
	return payroll.NewEngine(store, store, store, store), store
}

func putResident(store *memory.Store, id string) {
	store.PutProfile(tax.EmployeeProfile{
		EmployeeID:   tax.EmployeeID(id),
		Jurisdiction: "NL",
		Residency:    tax.ResidencyResident,
		FilingStatus: tax.FilingSingle,
	})
}

func monthlyInput(employee string) payroll.CalcInput {
	wp, _ := tax.NewWagePeriod(tax.PeriodMonthly)
	return payroll.CalcInput{
		EmployeeID:  tax.EmployeeID(employee),
		PeriodStart: tax.MustParseDate("2025-03-01"),
		PeriodEnd:   tax.MustParseDate("2025-03-31"),
		PayDate:     tax.MustParseDate("2025-03-25"),
		WagePeriod:  wp,
	}
}

func earning(code, amount string) payroll.EarningInput {
	return payroll.EarningInput{ComponentCode: code, Amount: tax.MustParseMoney(amount)}
}

func assertMoney(t *testing.T, got tax.Money, want string, label string) {
	t.Helper()
	if !got.Value.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

// =============================================================================
// END-TO-END PIPELINE TESTS (demo jurisdiction, monthly wage period)
// =============================================================================

func TestCalculatePaycheck_StandardMonthly(t *testing.T) {
	// GIVEN: A resident on 5000/month in the demo jurisdiction
	// WHEN: Calculating the March 2025 paycheck
	// THEN:
	//   allowance  3640 * 30.33/364               =  303.30
	//   pension    4% of 5000 (pre-tax)           =  200.00
	//   taxable    5000 - 303.30 - 200            = 4496.70
	//   income tax 279.60 + 1496.70 * 36.93%      =  832.33
	//   social     5% of prorated 43680 cap       =  181.98
	//   net        5000 - 200 - 120 - 1014.31     = 3665.69

	engine, store := newTestEngine(t)
	putResident(store, "emp-1")

	in := monthlyInput("emp-1")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "5000")}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assertMoney(t, result.GrossPay, "5000", "gross pay")
	assertMoney(t, result.AllowanceApplied, "303.30", "allowance")
	assertMoney(t, result.TaxableIncome, "4496.70", "taxable income")
	assertMoney(t, result.Tax.IncomeTax, "832.33", "income tax")
	assertMoney(t, result.Tax.SocialSecurity, "181.98", "social security")
	assertMoney(t, result.TotalTax, "1014.31", "total tax")
	assertMoney(t, result.TotalDeductions, "320", "total deductions")
	assertMoney(t, result.NetPay, "3665.69", "net pay")

	// The result records exactly which versions produced the numbers.
	assert.Equal(t, tax.RuleSetID("nl-income-2025"), result.Applied.RuleSets[tax.TaxIncome])
	assert.Equal(t, tax.RuleSetID("nl-social-2024"), result.Applied.RuleSets[tax.TaxSocialSecurity])
	require.NotNil(t, result.Applied.Allowance)
	assert.Equal(t, tax.AllowanceID("nl-general-2025"), *result.Applied.Allowance)

	// Two income-tax brackets engaged at this income.
	assert.Len(t, result.Tax.BracketBreakdown, 2)
}

func TestCalculatePaycheck_Idempotent(t *testing.T) {
	// Identical inputs against identical configuration produce a
	// bit-identical result, down to the breakdowns.
	engine, store := newTestEngine(t)
	putResident(store, "emp-1")

	in := monthlyInput("emp-1")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "5000")}

	first, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)
	second, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical results")
	}
}

func TestCalculatePaycheck_NonResident_NoAllowance(t *testing.T) {
	// Non-residents are taxed through the same brackets with no
	// tax-free allowance; never an error.
	engine, store := newTestEngine(t)
	store.PutProfile(tax.EmployeeProfile{
		EmployeeID:   "emp-2",
		Jurisdiction: "NL",
		Residency:    tax.ResidencyNonResident,
	})

	in := monthlyInput("emp-2")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "5000")}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assertMoney(t, result.AllowanceApplied, "0", "allowance")
	assertMoney(t, result.TaxableIncome, "4800", "taxable income")
	assertMoney(t, result.Tax.IncomeTax, "944.34", "income tax")
	assertMoney(t, result.NetPay, "3553.68", "net pay")
	assert.Nil(t, result.Applied.Allowance)
}

func TestCalculatePaycheck_ReimbursementAndDeductionOverride(t *testing.T) {
	// Reimbursements raise net pay without touching gross or taxable;
	// a supplied deduction amount overrides the configured default.
	engine, store := newTestEngine(t)
	putResident(store, "emp-1")

	in := monthlyInput("emp-1")
	in.Earnings = []payroll.EarningInput{
		earning("base_salary", "5000"),
		earning("expense_reimbursement", "80"),
	}
	in.Deductions = []payroll.DeductionInput{
		{ComponentCode: "health_insurance", Amount: tax.MustParseMoney("150")},
	}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assertMoney(t, result.GrossPay, "5000", "gross pay")
	assertMoney(t, result.TaxableIncome, "4496.70", "taxable income")
	assertMoney(t, result.TotalDeductions, "350", "total deductions")
	// 3665.69 baseline + 80 reimbursement - 30 extra insurance
	assertMoney(t, result.NetPay, "3715.69", "net pay")
}

func TestCalculatePaycheck_InKindEarningTaxedNotPaidOut(t *testing.T) {
	// GIVEN: A 500 company-car addition configured as gross-affecting but
	//        not net-affecting (an in-kind benefit)
	// WHEN: Calculating alongside the 5000 base salary
	// THEN: The addition raises gross and the taxable base, its tax hits
	//       net, but the 500 itself is never paid out

	engine, store := newTestEngine(t)
	putResident(store, "emp-1")
	store.AddComponent("NL", payroll.Component{
		Code: "company_car", Name: "Company car addition",
		Category: payroll.CategoryEarning, CalcType: payroll.CalcFixed,
		SequenceOrder: 15,
		IsTaxable:     true, AffectsGross: true,
	})

	in := monthlyInput("emp-1")
	in.Earnings = []payroll.EarningInput{
		earning("base_salary", "5000"),
		earning("company_car", "500"),
	}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assertMoney(t, result.GrossPay, "5500", "gross pay")
	// pension 4% of 5500 = 220; taxable 5500 - 303.30 - 220
	assertMoney(t, result.TaxableIncome, "4976.70", "taxable income")
	// 279.60 + 1976.70 * 36.93%
	assertMoney(t, result.Tax.IncomeTax, "1009.60", "income tax")
	assertMoney(t, result.Tax.SocialSecurity, "181.98", "social security")
	assertMoney(t, result.TotalTax, "1191.58", "total tax")
	assertMoney(t, result.TotalDeductions, "340", "total deductions")
	// 5500 - 500 in kind - 340 deductions - 1191.58 tax
	assertMoney(t, result.NetPay, "3468.42", "net pay")
}

// =============================================================================
// OVERTIME PATHS
// =============================================================================

func TestCalculatePaycheck_OvertimeOptedIn_TierRates(t *testing.T) {
	// GIVEN: An opted-in employee with 10 overtime hours at the
	//        configured 25/hour rate (250 overtime income)
	// WHEN: Calculating
	// THEN: Overtime stays out of the brackets and is taxed at the tier
	//       rates (250 * 5% = 12.50), carried on the income-tax figure

	engine, store := newTestEngine(t)
	store.PutProfile(tax.EmployeeProfile{
		EmployeeID:        "emp-3",
		Jurisdiction:      "NL",
		Residency:         tax.ResidencyResident,
		OvertimeOptIn:     true,
		OvertimeOptInDate: tax.MustParseDate("2025-01-01"),
	})

	in := monthlyInput("emp-3")
	in.Earnings = []payroll.EarningInput{
		earning("base_salary", "5000"),
		{ComponentCode: "overtime", Hours: decimal.NewFromInt(10)},
	}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assertMoney(t, result.GrossPay, "5250", "gross pay")
	// Overtime excluded from the bracket base; pension is 4% of 5250.
	assertMoney(t, result.TaxableIncome, "4486.70", "taxable income")

	require.NotNil(t, result.Overtime)
	assert.True(t, result.Overtime.Applied)
	assertMoney(t, result.Overtime.Income, "250", "overtime income")
	assertMoney(t, result.Overtime.Tax, "12.50", "overtime tax")
	assert.Equal(t, tax.RuleSetID("nl-overtime-2024"), result.Applied.RuleSets[tax.TaxOvertime])

	assertMoney(t, result.Tax.IncomeTax, "841.14", "income tax incl. overtime")
	assertMoney(t, result.NetPay, "3896.88", "net pay")
}

func TestCalculatePaycheck_OvertimeWithoutOptIn_FoldedIntoBrackets(t *testing.T) {
	// The same hours without the opt-in are ordinary wage income.
	engine, store := newTestEngine(t)
	putResident(store, "emp-4")

	in := monthlyInput("emp-4")
	in.Earnings = []payroll.EarningInput{
		earning("base_salary", "5000"),
		{ComponentCode: "overtime", Hours: decimal.NewFromInt(10)},
	}

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	assert.Nil(t, result.Overtime)
	assertMoney(t, result.GrossPay, "5250", "gross pay")
	assertMoney(t, result.TaxableIncome, "4736.70", "taxable income incl. overtime")
	assertMoney(t, result.Tax.IncomeTax, "920.96", "income tax")
	assertMoney(t, result.NetPay, "3817.06", "net pay")
}

// =============================================================================
// BONUS SMOOTHING
// =============================================================================

func TestCalculatePaycheck_BonusSmoothedAcrossVersions(t *testing.T) {
	// GIVEN: A 6000 annual bonus over 12 months of 4000 income, with 9
	//        periods under the 2024 rates and 3 under the 2025 rates
	// WHEN: Calculating the March 2025 paycheck
	// THEN: Each period's 500 share is taxed at that period's own
	//       version: 9 * 500*36.97% + 3 * 500*36.93% = 2217.60

	engine, store := newTestEngine(t)
	putResident(store, "emp-5")

	ends := []string{
		"2024-04-30", "2024-05-31", "2024-06-30", "2024-07-31",
		"2024-08-31", "2024-09-30", "2024-10-31", "2024-11-30",
		"2024-12-31", "2025-01-31", "2025-02-28", "2025-03-31",
	}
	bonus := &tax.BonusContext{
		Amount:         tax.MustParseMoney("6000"),
		Type:           "annual_bonus",
		PeriodsCovered: 12,
	}
	for _, end := range ends {
		bonus.RegularIncomePeriods = append(bonus.RegularIncomePeriods, tax.PeriodIncome{
			PeriodEnd: tax.MustParseDate(end),
			Income:    tax.MustParseMoney("4000"),
		})
	}

	in := monthlyInput("emp-5")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "4000")}
	in.Bonus = bonus

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, result.Bonus)
	assert.False(t, result.Bonus.UsedFallback)
	assertMoney(t, result.Bonus.Tax, "2217.60", "smoothed bonus tax")
	assertMoney(t, result.Bonus.AveragePerPeriod, "500", "average per period")

	// The bonus is gross income; its tax lands on the income-tax figure.
	assertMoney(t, result.GrossPay, "10000", "gross pay")
	assertMoney(t, result.Tax.IncomeTax, "2695.40", "income tax incl. bonus")
	assertMoney(t, result.TotalTax, "2872.24", "total tax incl. bonus")
	assertMoney(t, result.NetPay, "6847.76", "net pay")
	assert.Empty(t, result.Notes)
}

func TestCalculatePaycheck_BonusFallbackSurfacesAsNote(t *testing.T) {
	// Insufficient history is the documented fallback: flagged in the
	// result metadata, never an error.
	engine, store := newTestEngine(t)
	putResident(store, "emp-6")

	bonus := &tax.BonusContext{
		Amount:         tax.MustParseMoney("6000"),
		PeriodsCovered: 12,
		RegularIncomePeriods: []tax.PeriodIncome{
			{PeriodEnd: tax.MustParseDate("2025-01-31"), Income: tax.MustParseMoney("4000")},
			{PeriodEnd: tax.MustParseDate("2025-02-28"), Income: tax.MustParseMoney("4000")},
			{PeriodEnd: tax.MustParseDate("2025-03-31"), Income: tax.MustParseMoney("4000")},
		},
	}

	in := monthlyInput("emp-6")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "4000")}
	in.Bonus = bonus

	result, err := engine.CalculatePaycheck(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, result.Bonus)
	assert.True(t, result.Bonus.UsedFallback)
	assert.Equal(t, 3, result.Bonus.PeriodsUsed)
	assert.NotEmpty(t, result.Notes)
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestCalculatePaycheck_NoVersionForPayDate_ConfigurationError(t *testing.T) {
	// A pay period before any published configuration fails the
	// paycheck; taxes are never silently skipped.
	engine, store := newTestEngine(t)
	putResident(store, "emp-7")

	wp, _ := tax.NewWagePeriod(tax.PeriodMonthly)
	in := payroll.CalcInput{
		EmployeeID:  "emp-7",
		PeriodStart: tax.MustParseDate("2023-06-01"),
		PeriodEnd:   tax.MustParseDate("2023-06-30"),
		PayDate:     tax.MustParseDate("2023-06-25"),
		WagePeriod:  wp,
		Earnings:    []payroll.EarningInput{earning("base_salary", "5000")},
	}

	_, err := engine.CalculatePaycheck(context.Background(), in)
	require.Error(t, err)
	assert.True(t, tax.IsConfigurationError(err))
	assert.Equal(t, payroll.KindConfiguration, payroll.Kind(err))
}

func TestCalculatePaycheck_InputErrorsRejectedUpFront(t *testing.T) {
	engine, store := newTestEngine(t)
	putResident(store, "emp-8")
	ctx := context.Background()

	// Unknown component code in the earnings.
	in := monthlyInput("emp-8")
	in.Earnings = []payroll.EarningInput{earning("free_lunch", "100")}
	_, err := engine.CalculatePaycheck(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrUnknownComponent)

	// Unknown wage-period type.
	in = monthlyInput("emp-8")
	in.WagePeriod = tax.WagePeriod{Type: "fortnightly", PeriodsCovered: decimal.NewFromInt(1)}
	_, err = engine.CalculatePaycheck(ctx, in)
	assert.ErrorIs(t, err, tax.ErrInvalidWagePeriod)

	// Period end before start.
	in = monthlyInput("emp-8")
	in.PeriodEnd = tax.MustParseDate("2025-02-28")
	_, err = engine.CalculatePaycheck(ctx, in)
	assert.ErrorIs(t, err, tax.ErrInvalidWagePeriod)
	assert.Equal(t, payroll.KindInput, payroll.Kind(err))
}

func TestCalculatePaycheck_MissingProfile(t *testing.T) {
	engine, _ := newTestEngine(t)

	in := monthlyInput("emp-ghost")
	in.Earnings = []payroll.EarningInput{earning("base_salary", "5000")}

	_, err := engine.CalculatePaycheck(context.Background(), in)
	assert.ErrorIs(t, err, payroll.ErrProfileNotFound)
}
