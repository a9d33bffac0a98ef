/*
presets.go - Ready-made jurisdiction configuration

PURPOSE:
  A complete demo jurisdiction ("NL") with two published rule-set
  versions per levy, an annual allowance, overtime tier rates, and a
  standard component set. Used by the scenarios endpoint, the server's
  --seed-demo flag, and as a realistic fixture in tests.

VERSIONING:
  Each levy ships a 2024 version closed at 2025-01-01 and a 2025
  version open-ended, so pay dates on either side of the boundary
  resolve to different versions.
*/
package factory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// Preset bundles one jurisdiction's full configuration.
type Preset struct {
	Jurisdiction tax.Jurisdiction
	RuleSets     []tax.RuleSet
	Allowances   []tax.Allowance
	Components   []payroll.Component
}

// ConfigSink receives a preset's configuration. Satisfied by the memory
// and sqlite stores.
type ConfigSink interface {
	AddRuleSet(rs tax.RuleSet)
	AddAllowance(a tax.Allowance)
	AddComponent(jurisdiction tax.Jurisdiction, c payroll.Component)
}

// Seed loads the preset into a configuration store.
func (p Preset) Seed(sink ConfigSink) {
	for _, rs := range p.RuleSets {
		sink.AddRuleSet(rs)
	}
	for _, a := range p.Allowances {
		sink.AddAllowance(a)
	}
	for _, c := range p.Components {
		sink.AddComponent(p.Jurisdiction, c)
	}
}

// =============================================================================
// DEMO JURISDICTION
// =============================================================================

// DemoJurisdiction returns the demo configuration. Monthly-scale bracket
// tables: income figures are per-month amounts, matching the engine's
// monthly wage period.
func DemoJurisdiction() Preset {
	j := tax.Jurisdiction("NL")

	y2024 := date(2024, 1, 1)
	y2025 := date(2025, 1, 1)

	return Preset{
		Jurisdiction: j,
		RuleSets: []tax.RuleSet{
			{
				ID:            "nl-income-2024",
				Jurisdiction:  j,
				TaxType:       tax.TaxIncome,
				Method:        tax.MethodGraduated,
				EffectiveFrom: y2024,
				EffectiveTo:   &y2025,
				Brackets: []tax.Bracket{
					{Order: 1, IncomeMin: money("0"), IncomeMax: moneyPtr("3000"), Rate: rate("9.28"), FixedAmount: money("0")},
					{Order: 2, IncomeMin: money("3000"), IncomeMax: moneyPtr("6000"), Rate: rate("36.97"), FixedAmount: money("278.40")},
					{Order: 3, IncomeMin: money("6000"), Rate: rate("49.50"), FixedAmount: money("1387.50")},
				},
			},
			{
				ID:            "nl-income-2025",
				Jurisdiction:  j,
				TaxType:       tax.TaxIncome,
				Method:        tax.MethodGraduated,
				EffectiveFrom: y2025,
				Brackets: []tax.Bracket{
					{Order: 1, IncomeMin: money("0"), IncomeMax: moneyPtr("3000"), Rate: rate("9.32"), FixedAmount: money("0")},
					{Order: 2, IncomeMin: money("3000"), IncomeMax: moneyPtr("6000"), Rate: rate("36.93"), FixedAmount: money("279.60")},
					{Order: 3, IncomeMin: money("6000"), Rate: rate("49.50"), FixedAmount: money("1387.50")},
				},
			},
			{
				ID:            "nl-social-2024",
				Jurisdiction:  j,
				TaxType:       tax.TaxSocialSecurity,
				Method:        tax.MethodFlatRate,
				EffectiveFrom: y2024,
				AnnualCap:     moneyPtr("43680"),
				Brackets: []tax.Bracket{
					{Order: 1, IncomeMin: money("0"), Rate: rate("5"), FixedAmount: money("0")},
				},
			},
			{
				ID:            "nl-overtime-2024",
				Jurisdiction:  j,
				TaxType:       tax.TaxOvertime,
				Method:        tax.MethodBracket,
				EffectiveFrom: y2024,
				Brackets: []tax.Bracket{
					{Order: 1, IncomeMin: money("0"), IncomeMax: moneyPtr("300"), Rate: rate("5"), FixedAmount: money("0")},
					{Order: 2, IncomeMin: money("300"), IncomeMax: moneyPtr("600"), Rate: rate("15"), FixedAmount: money("15")},
					{Order: 3, IncomeMin: money("600"), Rate: rate("25"), FixedAmount: money("60")},
				},
			},
		},
		Allowances: []tax.Allowance{
			{
				ID:            "nl-general-2024",
				Type:          "general",
				Jurisdiction:  j,
				Amount:        money("3360"), // annual
				EffectiveFrom: y2024,
				EffectiveTo:   &y2025,
			},
			{
				ID:            "nl-general-2025",
				Type:          "general",
				Jurisdiction:  j,
				Amount:        money("3640"), // annual
				EffectiveFrom: y2025,
			},
		},
		Components: []payroll.Component{
			{
				Code: "base_salary", Name: "Base salary",
				Category: payroll.CategoryEarning, CalcType: payroll.CalcFixed,
				SequenceOrder: 10,
				IsTaxable:     true, AffectsGross: true, AffectsNet: true,
			},
			{
				Code: "overtime", Name: "Overtime",
				Category: payroll.CategoryEarning, CalcType: payroll.CalcHourlyRate,
				SequenceOrder: 20,
				IsTaxable:     true, AffectsGross: true, AffectsNet: true,
				IsOvertime:  true,
				FixedAmount: money("25"), // hourly rate
			},
			{
				Code: "commission", Name: "Commission",
				Category: payroll.CategoryEarning, CalcType: payroll.CalcFixed,
				SequenceOrder: 30,
				IsTaxable:     true, AffectsGross: true, AffectsNet: true,
			},
			{
				Code: "expense_reimbursement", Name: "Expense reimbursement",
				Category: payroll.CategoryReimbursement, CalcType: payroll.CalcFixed,
				SequenceOrder: 35,
				AffectsNet:    true,
			},
			{
				Code: "pension", Name: "Pension contribution",
				Category: payroll.CategoryDeduction, CalcType: payroll.CalcPercentage,
				SequenceOrder: 40,
				DependsOn:     []string{"base_salary"},
				PreTax:        true,
				Rate:          rate("4"),
			},
			{
				Code: "health_insurance", Name: "Health insurance",
				Category: payroll.CategoryDeduction, CalcType: payroll.CalcFixed,
				SequenceOrder: 50,
				FixedAmount:   money("120"),
			},
			{
				Code: "income_tax", Name: "Income tax",
				Category: payroll.CategoryTax, CalcType: payroll.CalcTiered,
				SequenceOrder: 60,
				DependsOn:     []string{"pension"},
				TaxType:       tax.TaxIncome,
			},
			{
				Code: "social_security", Name: "Social security",
				Category: payroll.CategoryTax, CalcType: payroll.CalcTiered,
				SequenceOrder: 70,
				DependsOn:     []string{"pension"},
				TaxType:       tax.TaxSocialSecurity,
			},
			{
				Code: "employer_pension", Name: "Employer pension",
				Category: payroll.CategoryEmployerCost, CalcType: payroll.CalcPercentage,
				SequenceOrder: 80,
				DependsOn:     []string{"base_salary"},
				Rate:          rate("6"),
			},
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func money(s string) tax.Money {
	return tax.MustParseMoney(s)
}

func moneyPtr(s string) *tax.Money {
	m := money(s)
	return &m
}

func rate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) tax.Date {
	return tax.NewDate(y, m, d)
}
