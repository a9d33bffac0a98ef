/*
Package payroll composes the tax engine into full paychecks.

PURPOSE:
  Where the tax package answers "how much tax on this amount", this
  package answers "what does this employee's paycheck look like":
  ordering earnings, deductions, taxes and benefits through a declared
  dependency graph, producing gross pay, taxable income, total tax and
  net pay, and assembling the persisted, audited paycheck record.

KEY CONCEPTS IN THIS FILE (component.go):
  - Component: One configured pay element (base salary, pension,
    income tax, ...) with its category, calculation type and declared
    dependencies.
  - Topological ordering: Components are processed in an order
    consistent with DependsOn; ties break on ascending SequenceOrder so
    the order is stable for identical configuration. A dependency cycle
    is a configuration error that fails the whole paycheck.

WHY A GRAPH, NOT A HARDCODED SEQUENCE:
  Component configurations differ per organization. A pension deduction
  may depend on base salary; a bonus-linked levy may depend on the
  bonus component. Declaring dependencies and sorting at pipeline-build
  time accommodates any configuration without code changes.

SEE ALSO:
  - pipeline.go: Executes the sorted components
  - factory/: JSON -> component configuration
*/
package payroll

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// COMPONENT - One configured pay element
// =============================================================================

type ComponentCategory string

const (
	CategoryEarning      ComponentCategory = "earning"
	CategoryDeduction    ComponentCategory = "deduction"
	CategoryTax          ComponentCategory = "tax"
	CategoryBenefit      ComponentCategory = "benefit"
	CategoryEmployerCost ComponentCategory = "employer_cost"
	CategoryReimbursement ComponentCategory = "reimbursement"
)

type CalculationType string

const (
	CalcFixed      CalculationType = "fixed"
	CalcPercentage CalculationType = "percentage"
	CalcFormula    CalculationType = "formula"
	CalcHourlyRate CalculationType = "hourly_rate"
	CalcTiered     CalculationType = "tiered"
)

// Component is one configured pay element for a jurisdiction.
type Component struct {
	Code     string
	Name     string
	Category ComponentCategory
	CalcType CalculationType

	// SequenceOrder breaks ties among components with no remaining
	// dependency constraint. Lower runs first.
	SequenceOrder int

	// DependsOn lists component codes that must be computed first.
	DependsOn []string

	IsTaxable bool

	// AffectsGross earnings count into gross pay. With AffectsNet false
	// the earning is in-kind: valued into gross and the tax base, but
	// never paid out in cash. AffectsNet alone marks a net-only addition
	// such as a reimbursement.
	AffectsGross bool
	AffectsNet   bool

	// PreTax deductions reduce taxable income before bracket
	// calculation; post-tax deductions reduce net pay only.
	PreTax bool

	// IsOvertime marks earnings eligible for the opted-in special-rate
	// regime. Ignored for non-earning categories.
	IsOvertime bool

	// FixedAmount: the configured amount for CalcFixed, or the hourly
	// rate for CalcHourlyRate.
	FixedAmount tax.Money

	// Rate: percentage for CalcPercentage (of running gross pay).
	Rate decimal.Decimal

	// TaxType selects the rule set for CategoryTax components.
	TaxType tax.TaxType
}

// ComponentSource supplies the component configuration for a jurisdiction.
type ComponentSource interface {
	ComponentsFor(ctx context.Context, jurisdiction tax.Jurisdiction) ([]Component, error)
}

// =============================================================================
// TOPOLOGICAL ORDERING - Kahn's algorithm with a stable tie-break
// =============================================================================

// SortComponents returns the components in an order consistent with their
// declared dependencies. Among components whose dependencies are all
// satisfied, ascending SequenceOrder (then code) decides - the order is
// fully deterministic for identical configuration, which the paycheck
// idempotence guarantee relies on.
//
// A dependency on an unknown code or a dependency cycle is a configuration
// error; nothing is computed.
func SortComponents(components []Component) ([]Component, error) {
	byCode := make(map[string]*Component, len(components))
	for i := range components {
		byCode[components[i].Code] = &components[i]
	}

	indegree := make(map[string]int, len(components))
	dependents := make(map[string][]string, len(components))
	for _, c := range components {
		for _, dep := range c.DependsOn {
			if _, ok := byCode[dep]; !ok {
				return nil, &UnknownDependencyError{Code: c.Code, DependsOn: dep}
			}
			indegree[c.Code]++
			dependents[dep] = append(dependents[dep], c.Code)
		}
	}

	ready := make([]*Component, 0, len(components))
	for i := range components {
		if indegree[components[i].Code] == 0 {
			ready = append(ready, &components[i])
		}
	}
	sortReady(ready)

	ordered := make([]Component, 0, len(components))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, *next)

		released := false
		for _, code := range dependents[next.Code] {
			indegree[code]--
			if indegree[code] == 0 {
				ready = append(ready, byCode[code])
				released = true
			}
		}
		if released {
			sortReady(ready)
		}
	}

	if len(ordered) != len(components) {
		var cycle []string
		for code, n := range indegree {
			if n > 0 {
				cycle = append(cycle, code)
			}
		}
		sort.Strings(cycle)
		return nil, &ComponentDependencyCycleError{Components: cycle}
	}
	return ordered, nil
}

func sortReady(ready []*Component) {
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].SequenceOrder != ready[j].SequenceOrder {
			return ready[i].SequenceOrder < ready[j].SequenceOrder
		}
		return ready[i].Code < ready[j].Code
	})
}
