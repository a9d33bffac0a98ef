/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON rule-set, allowance, and component definitions into
  engine types. This enables jurisdiction configuration without code
  changes - payroll administrators define bracket tables in JSON, and
  the factory creates the proper Go structs with validated invariants.

WHY JSON?
  - Non-developers can publish new rule-set versions
  - Easy integration with admin UI
  - Version control for jurisdiction definitions
  - Database storage of configuration

JSON SCHEMA (rule set):
  {
    "id": "nl-income-2025",
    "jurisdiction": "NL",
    "tax_type": "income_tax",
    "method": "graduated",
    "effective_from": "2025-01-01",
    "brackets": [
      {"order": 1, "income_min": "0", "income_max": "3000", "rate": "9.32", "fixed_amount": "0"},
      {"order": 2, "income_min": "3000", "income_max": "6000", "rate": "36.93", "fixed_amount": "279.60"},
      {"order": 3, "income_min": "6000", "rate": "49.50", "fixed_amount": "1387.50"}
    ]
  }

KEY FEATURES:
  - Validates bracket invariants on parse (contiguity, open top bracket)
  - Decimal amounts parsed from strings, never floats
  - Effective dates in ISO form; omitted effective_to = open-ended

SEE ALSO:
  - tax/ruleset.go: Target types and invariants
  - presets.go: Go-based demo jurisdiction configuration
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type RuleSetJSON struct {
	ID            string        `json:"id"`
	Jurisdiction  string        `json:"jurisdiction"`
	TaxType       string        `json:"tax_type"`
	Method        string        `json:"method"`
	EffectiveFrom string        `json:"effective_from"`
	EffectiveTo   string        `json:"effective_to,omitempty"`
	AnnualCap     string        `json:"annual_cap,omitempty"`
	Brackets      []BracketJSON `json:"brackets"`
}

type BracketJSON struct {
	Order       int    `json:"order"`
	IncomeMin   string `json:"income_min"`
	IncomeMax   string `json:"income_max,omitempty"` // empty = open-ended
	Rate        string `json:"rate"`
	FixedAmount string `json:"fixed_amount,omitempty"`
}

type AllowanceJSON struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Jurisdiction  string `json:"jurisdiction"`
	Amount        string `json:"amount"`
	IsPercentage  bool   `json:"is_percentage,omitempty"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

type ComponentJSON struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	CalcType      string   `json:"calc_type"`
	SequenceOrder int      `json:"sequence_order"`
	DependsOn     []string `json:"depends_on,omitempty"`
	IsTaxable     bool     `json:"is_taxable,omitempty"`
	AffectsGross  bool     `json:"affects_gross,omitempty"`
	AffectsNet    bool     `json:"affects_net,omitempty"`
	PreTax        bool     `json:"pre_tax,omitempty"`
	IsOvertime    bool     `json:"is_overtime,omitempty"`
	FixedAmount   string   `json:"fixed_amount,omitempty"`
	Rate          string   `json:"rate,omitempty"`
	TaxType       string   `json:"tax_type,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRuleSet converts a JSON rule-set definition, validating the bracket
// invariants before returning.
func ParseRuleSet(data []byte) (tax.RuleSet, error) {
	var raw RuleSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return tax.RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	return buildRuleSet(raw)
}

func buildRuleSet(raw RuleSetJSON) (tax.RuleSet, error) {
	from, err := parseDate(raw.EffectiveFrom)
	if err != nil {
		return tax.RuleSet{}, fmt.Errorf("rule set %s: effective_from: %w", raw.ID, err)
	}
	to, err := parseOptionalDate(raw.EffectiveTo)
	if err != nil {
		return tax.RuleSet{}, fmt.Errorf("rule set %s: effective_to: %w", raw.ID, err)
	}

	rs := tax.RuleSet{
		ID:            tax.RuleSetID(raw.ID),
		Jurisdiction:  tax.Jurisdiction(raw.Jurisdiction),
		TaxType:       tax.TaxType(raw.TaxType),
		Method:        tax.CalculationMethod(raw.Method),
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
	if raw.AnnualCap != "" {
		cap, err := parseMoney(raw.AnnualCap)
		if err != nil {
			return tax.RuleSet{}, fmt.Errorf("rule set %s: annual_cap: %w", raw.ID, err)
		}
		rs.AnnualCap = &cap
	}

	for _, b := range raw.Brackets {
		bracket, err := buildBracket(b)
		if err != nil {
			return tax.RuleSet{}, fmt.Errorf("rule set %s: %w", raw.ID, err)
		}
		rs.Brackets = append(rs.Brackets, bracket)
	}

	if err := rs.Validate(); err != nil {
		return tax.RuleSet{}, err
	}
	return rs, nil
}

func buildBracket(raw BracketJSON) (tax.Bracket, error) {
	min, err := parseMoney(raw.IncomeMin)
	if err != nil {
		return tax.Bracket{}, fmt.Errorf("bracket %d: income_min: %w", raw.Order, err)
	}
	rate, err := decimal.NewFromString(raw.Rate)
	if err != nil {
		return tax.Bracket{}, fmt.Errorf("bracket %d: rate: %w", raw.Order, err)
	}

	b := tax.Bracket{Order: raw.Order, IncomeMin: min, Rate: rate, FixedAmount: tax.ZeroMoney()}
	if raw.IncomeMax != "" {
		max, err := parseMoney(raw.IncomeMax)
		if err != nil {
			return tax.Bracket{}, fmt.Errorf("bracket %d: income_max: %w", raw.Order, err)
		}
		b.IncomeMax = &max
	}
	if raw.FixedAmount != "" {
		fixed, err := parseMoney(raw.FixedAmount)
		if err != nil {
			return tax.Bracket{}, fmt.Errorf("bracket %d: fixed_amount: %w", raw.Order, err)
		}
		b.FixedAmount = fixed
	}
	return b, nil
}

// ParseAllowance converts a JSON allowance definition.
func ParseAllowance(data []byte) (tax.Allowance, error) {
	var raw AllowanceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return tax.Allowance{}, fmt.Errorf("parse allowance: %w", err)
	}

	from, err := parseDate(raw.EffectiveFrom)
	if err != nil {
		return tax.Allowance{}, fmt.Errorf("allowance %s: effective_from: %w", raw.ID, err)
	}
	to, err := parseOptionalDate(raw.EffectiveTo)
	if err != nil {
		return tax.Allowance{}, fmt.Errorf("allowance %s: effective_to: %w", raw.ID, err)
	}
	amount, err := parseMoney(raw.Amount)
	if err != nil {
		return tax.Allowance{}, fmt.Errorf("allowance %s: amount: %w", raw.ID, err)
	}

	return tax.Allowance{
		ID:            tax.AllowanceID(raw.ID),
		Type:          raw.Type,
		Jurisdiction:  tax.Jurisdiction(raw.Jurisdiction),
		Amount:        amount,
		IsPercentage:  raw.IsPercentage,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}, nil
}

// ParseComponents converts a JSON array of component definitions.
func ParseComponents(data []byte) ([]payroll.Component, error) {
	var raw []ComponentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse components: %w", err)
	}

	out := make([]payroll.Component, 0, len(raw))
	for _, c := range raw {
		component := payroll.Component{
			Code:          c.Code,
			Name:          c.Name,
			Category:      payroll.ComponentCategory(c.Category),
			CalcType:      payroll.CalculationType(c.CalcType),
			SequenceOrder: c.SequenceOrder,
			DependsOn:     c.DependsOn,
			IsTaxable:     c.IsTaxable,
			AffectsGross:  c.AffectsGross,
			AffectsNet:    c.AffectsNet,
			PreTax:        c.PreTax,
			IsOvertime:    c.IsOvertime,
			TaxType:       tax.TaxType(c.TaxType),
		}
		if c.FixedAmount != "" {
			amount, err := parseMoney(c.FixedAmount)
			if err != nil {
				return nil, fmt.Errorf("component %s: fixed_amount: %w", c.Code, err)
			}
			component.FixedAmount = amount
		} else {
			component.FixedAmount = tax.ZeroMoney()
		}
		if c.Rate != "" {
			rate, err := decimal.NewFromString(c.Rate)
			if err != nil {
				return nil, fmt.Errorf("component %s: rate: %w", c.Code, err)
			}
			component.Rate = rate
		}
		out = append(out, component)
	}

	// Surface graph problems at configuration time, not at paycheck time.
	if _, err := payroll.SortComponents(out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (tax.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return tax.Date{}, err
	}
	return tax.Date{Time: t}, nil
}

func parseOptionalDate(s string) (*tax.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseMoney(s string) (tax.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return tax.Money{}, err
	}
	return tax.Money{Value: d}, nil
}
