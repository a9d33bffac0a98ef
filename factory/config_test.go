package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

func TestParseRuleSet(t *testing.T) {
	data := []byte(`{
		"id": "nl-income-2025",
		"jurisdiction": "NL",
		"tax_type": "income_tax",
		"method": "graduated",
		"effective_from": "2025-01-01",
		"annual_cap": "43680",
		"brackets": [
			{"order": 1, "income_min": "0", "income_max": "3000", "rate": "9.32"},
			{"order": 2, "income_min": "3000", "income_max": "6000", "rate": "36.93", "fixed_amount": "279.60"},
			{"order": 3, "income_min": "6000", "rate": "49.50", "fixed_amount": "1387.50"}
		]
	}`)

	rs, err := factory.ParseRuleSet(data)
	require.NoError(t, err)
	assert.Equal(t, tax.RuleSetID("nl-income-2025"), rs.ID)
	assert.Equal(t, tax.TaxIncome, rs.TaxType)
	assert.Nil(t, rs.EffectiveTo)
	require.NotNil(t, rs.AnnualCap)
	require.Len(t, rs.Brackets, 3)
	// Omitted fixed_amount defaults to zero.
	assert.True(t, rs.Brackets[0].FixedAmount.IsZero())
	assert.Nil(t, rs.Brackets[2].IncomeMax)
}

func TestParseRuleSet_Invalid(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"bad date", `{"id":"x","effective_from":"March 1st","brackets":[{"order":1,"income_min":"0","rate":"10"}]}`},
		{"bad amount", `{"id":"x","effective_from":"2025-01-01","brackets":[{"order":1,"income_min":"lots","rate":"10"}]}`},
		// Bracket invariants are checked on parse, not first at paycheck time.
		{"gap between brackets", `{"id":"x","effective_from":"2025-01-01","brackets":[
			{"order":1,"income_min":"0","income_max":"1000","rate":"10"},
			{"order":2,"income_min":"2000","rate":"20"}]}`},
		{"bounded top bracket", `{"id":"x","effective_from":"2025-01-01","brackets":[
			{"order":1,"income_min":"0","income_max":"1000","rate":"10"}]}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := factory.ParseRuleSet([]byte(c.data))
			assert.Error(t, err)
		})
	}
}

func TestParseAllowance(t *testing.T) {
	a, err := factory.ParseAllowance([]byte(`{
		"id": "nl-general-2024",
		"type": "general",
		"jurisdiction": "NL",
		"amount": "3360",
		"effective_from": "2024-01-01",
		"effective_to": "2025-01-01"
	}`))
	require.NoError(t, err)
	assert.Equal(t, tax.AllowanceID("nl-general-2024"), a.ID)
	assert.False(t, a.IsPercentage)
	require.NotNil(t, a.EffectiveTo)
	assert.Equal(t, "2025-01-01", a.EffectiveTo.String())
}

func TestParseComponents_ValidatesGraph(t *testing.T) {
	components, err := factory.ParseComponents([]byte(`[
		{"code": "base_salary", "name": "Base Salary", "category": "earning",
		 "calc_type": "fixed", "sequence_order": 10, "is_taxable": true, "affects_gross": true},
		{"code": "pension", "name": "Pension", "category": "deduction",
		 "calc_type": "percentage", "sequence_order": 40, "rate": "4",
		 "pre_tax": true, "affects_net": true, "depends_on": ["base_salary"]}
	]`))
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, []string{"base_salary"}, components[1].DependsOn)

	// A cycle is rejected before anything is stored.
	_, err = factory.ParseComponents([]byte(`[
		{"code": "a", "name": "A", "category": "earning", "calc_type": "fixed",
		 "sequence_order": 1, "depends_on": ["b"]},
		{"code": "b", "name": "B", "category": "earning", "calc_type": "fixed",
		 "sequence_order": 2, "depends_on": ["a"]}
	]`))
	assert.ErrorIs(t, err, payroll.ErrComponentDependencyCycle)
}
