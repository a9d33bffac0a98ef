/*
pipeline.go - The pay-component pipeline

PURPOSE:
  Executes one employee's paycheck calculation: orders the configured
  components by their dependency graph, accumulates running totals
  (gross, taxable, deductions, net) as each component computes, and
  invokes the tax calculators when tax components are reached.

CONTROL FLOW:
  CalculatePaycheck
    -> validate input (input errors rejected before any calculation)
    -> load employee profile, component configuration
    -> topological sort (cycle = configuration error, nothing computed)
    -> per component, in order:
         earnings        accumulate gross + taxable (overtime tracked
                         separately while the opt-in question is open)
         pre-tax items   reduce taxable income
         tax components  bracket tax on (taxable - allowance - pre-tax),
                         bonus smoothing, opted-in overtime tiers
         post-tax items  reduce net pay only
    -> totals + itemized results

  The calculation is pure: all configuration is read through the
  resolvers, results carry the applied version IDs, and identical inputs
  yield bit-identical Results.

SEE ALSO:
  - component.go: Ordering
  - assembler.go: Persistence of the Result
  - run.go: Batch execution across employees
*/
package payroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// SOURCES & ENGINE
// =============================================================================

// ProfileSource supplies employee tax profiles, read-only.
type ProfileSource interface {
	Profile(ctx context.Context, id tax.EmployeeID) (tax.EmployeeProfile, error)
}

// Totals are the running figures exposed to each component as it computes.
type Totals struct {
	Gross             tax.Money
	TaxableEarnings   tax.Money
	PreTaxDeductions  tax.Money
	PostTaxDeductions tax.Money
	Tax               tax.Money
}

// FormulaFunc computes a CalcFormula component from the running totals.
type FormulaFunc func(t Totals) tax.Money

// Engine wires the calculators and configuration sources together.
type Engine struct {
	Profiles   ProfileSource
	Components ComponentSource
	Rules      *tax.Resolver
	Allowances *tax.AllowanceResolver
	Bonus      *tax.BonusCalculator
	Overtime   *tax.OvertimeCalculator

	// Formulas backs CalcFormula components, keyed by component code.
	Formulas map[string]FormulaFunc
}

func NewEngine(profiles ProfileSource, components ComponentSource, rules tax.RuleSetSource, allowances tax.AllowanceSource) *Engine {
	resolver := tax.NewResolver(rules)
	return &Engine{
		Profiles:   profiles,
		Components: components,
		Rules:      resolver,
		Allowances: tax.NewAllowanceResolver(allowances),
		Bonus:      tax.NewBonusCalculator(resolver),
		Overtime:   tax.NewOvertimeCalculator(resolver),
		Formulas:   map[string]FormulaFunc{},
	}
}

// =============================================================================
// CALCULATION INPUT
// =============================================================================

type EarningInput struct {
	ComponentCode string
	Amount        tax.Money
	// Hours for CalcHourlyRate components; the component's FixedAmount
	// is the hourly rate.
	Hours decimal.Decimal
}

type DeductionInput struct {
	ComponentCode string
	Amount        tax.Money
}

type CalcInput struct {
	EmployeeID  tax.EmployeeID
	PeriodStart tax.Date
	PeriodEnd   tax.Date
	PayDate     tax.Date
	WagePeriod  tax.WagePeriod

	Earnings   []EarningInput
	Bonus      *tax.BonusContext
	Deductions []DeductionInput
}

// validate rejects input errors before any calculation begins.
func (in CalcInput) validate() error {
	if _, err := tax.ParseWagePeriodType(string(in.WagePeriod.Type)); err != nil {
		return err
	}
	if !in.WagePeriod.PeriodsCovered.IsPositive() {
		return fmt.Errorf("%w: periods covered must be positive", tax.ErrInvalidWagePeriod)
	}
	if in.Bonus != nil && in.Bonus.PeriodsCovered < 1 {
		return fmt.Errorf("%w: covered periods must be at least 1", tax.ErrInvalidBonusConfiguration)
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return fmt.Errorf("%w: period end before start", tax.ErrInvalidWagePeriod)
	}
	return nil
}

// =============================================================================
// PIPELINE EXECUTION
// =============================================================================

// CalculatePaycheck runs the full pipeline for one employee.
func (e *Engine) CalculatePaycheck(ctx context.Context, in CalcInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	profile, err := e.Profiles.Profile(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}

	configured, err := e.Components.ComponentsFor(ctx, profile.Jurisdiction)
	if err != nil {
		return nil, err
	}
	ordered, err := SortComponents(configured)
	if err != nil {
		return nil, err
	}

	earningsByCode, deductionsByCode, err := indexInputs(in, configured)
	if err != nil {
		return nil, err
	}

	run := &pipelineRun{
		engine:  e,
		input:   in,
		profile: profile,
		result: &Result{
			EmployeeID:     in.EmployeeID,
			PeriodStart:    in.PeriodStart,
			PeriodEnd:      in.PeriodEnd,
			PayDate:        in.PayDate,
			WagePeriod:     in.WagePeriod,
			AnnualFraction: in.WagePeriod.AnnualFraction(),
			Applied:        AppliedVersions{RuleSets: map[tax.TaxType]tax.RuleSetID{}},
		},
		earnings:   earningsByCode,
		deductions: deductionsByCode,
	}

	for _, c := range ordered {
		if err := run.process(ctx, c); err != nil {
			return nil, err
		}
	}
	// Jurisdictions without tax components still settle the taxable base
	// and allowance so the result reports them.
	if err := run.fixTaxBase(ctx); err != nil {
		return nil, err
	}
	if err := run.applyBonus(ctx); err != nil {
		return nil, err
	}
	run.finish()
	return run.result, nil
}

func indexInputs(in CalcInput, configured []Component) (map[string]EarningInput, map[string]DeductionInput, error) {
	known := make(map[string]bool, len(configured))
	for _, c := range configured {
		known[c.Code] = true
	}

	earnings := make(map[string]EarningInput, len(in.Earnings))
	for _, e := range in.Earnings {
		if !known[e.ComponentCode] {
			return nil, nil, fmt.Errorf("%w: earning %q", ErrUnknownComponent, e.ComponentCode)
		}
		earnings[e.ComponentCode] = e
	}
	deductions := make(map[string]DeductionInput, len(in.Deductions))
	for _, d := range in.Deductions {
		if !known[d.ComponentCode] {
			return nil, nil, fmt.Errorf("%w: deduction %q", ErrUnknownComponent, d.ComponentCode)
		}
		deductions[d.ComponentCode] = d
	}
	return earnings, deductions, nil
}

// =============================================================================
// PIPELINE RUN STATE
// =============================================================================

type pipelineRun struct {
	engine  *Engine
	input   CalcInput
	profile tax.EmployeeProfile
	result  *Result

	earnings   map[string]EarningInput
	deductions map[string]DeductionInput

	totals         Totals
	overtimeIncome tax.Money
	netAdditions   tax.Money // reimbursements: net-only, non-gross
	grossOnly      tax.Money // in-kind earnings: in gross and the tax base, never paid out

	// lazily established when the first tax component computes
	taxBaseFixed bool
	taxBase      tax.Money
	allowance    tax.AllowanceResult
}

func (r *pipelineRun) process(ctx context.Context, c Component) error {
	switch c.Category {
	case CategoryEarning, CategoryReimbursement:
		r.processEarning(c)
	case CategoryDeduction, CategoryBenefit:
		r.processDeduction(c)
	case CategoryTax:
		return r.processTax(ctx, c)
	case CategoryEmployerCost:
		amount := r.amountFor(c)
		if !amount.IsZero() {
			r.addResult(c.Code, amount, false, false)
		}
	}
	return nil
}

// amountFor computes a component's amount from its calculation type, the
// calculation input, and the running totals.
func (r *pipelineRun) amountFor(c Component) tax.Money {
	switch c.CalcType {
	case CalcFixed:
		if line, ok := r.earnings[c.Code]; ok && !line.Amount.IsZero() {
			return line.Amount
		}
		if line, ok := r.deductions[c.Code]; ok && !line.Amount.IsZero() {
			return line.Amount
		}
		return c.FixedAmount
	case CalcHourlyRate:
		line, ok := r.earnings[c.Code]
		if !ok {
			return tax.ZeroMoney()
		}
		return c.FixedAmount.Mul(line.Hours)
	case CalcPercentage:
		return r.totals.Gross.Percent(c.Rate)
	case CalcFormula:
		if fn, ok := r.engine.Formulas[c.Code]; ok {
			return fn(r.totals)
		}
		r.result.Notes = append(r.result.Notes,
			fmt.Sprintf("component %s: no formula registered, amount 0", c.Code))
		return tax.ZeroMoney()
	default:
		// CalcTiered earnings have their amount supplied directly.
		if line, ok := r.earnings[c.Code]; ok {
			return line.Amount
		}
		return tax.ZeroMoney()
	}
}

func (r *pipelineRun) processEarning(c Component) {
	amount := r.amountFor(c)
	if amount.IsZero() {
		return
	}

	if c.AffectsGross {
		r.totals.Gross = r.totals.Gross.Add(amount)
		if !c.AffectsNet {
			// In-kind: valued into gross (and taxed when taxable) but
			// never paid out in cash.
			r.grossOnly = r.grossOnly.Add(amount)
		}
	} else if c.AffectsNet {
		r.netAdditions = r.netAdditions.Add(amount)
	}

	if c.IsTaxable {
		if c.IsOvertime {
			// Held apart until the opt-in question resolves at tax time.
			r.overtimeIncome = r.overtimeIncome.Add(amount)
		} else {
			r.totals.TaxableEarnings = r.totals.TaxableEarnings.Add(amount)
		}
	}
	r.addResult(c.Code, amount, false, c.IsTaxable)
}

func (r *pipelineRun) processDeduction(c Component) {
	amount := r.amountFor(c)
	if amount.IsZero() {
		return
	}
	if c.PreTax {
		r.totals.PreTaxDeductions = r.totals.PreTaxDeductions.Add(amount)
	} else {
		r.totals.PostTaxDeductions = r.totals.PostTaxDeductions.Add(amount)
	}
	r.addResult(c.Code, amount, true, false)
}

// fixTaxBase settles, once, the figures every tax component shares: whether
// opted-in overtime is carved out, the allowance, and the taxable base.
func (r *pipelineRun) fixTaxBase(ctx context.Context) error {
	if r.taxBaseFixed {
		return nil
	}

	overtimeApplies := r.profile.OvertimeOptedInAsOf(r.input.PayDate) && r.overtimeIncome.IsPositive()
	if !overtimeApplies && r.overtimeIncome.IsPositive() {
		// No opt-in: overtime is ordinary wage income.
		r.totals.TaxableEarnings = r.totals.TaxableEarnings.Add(r.overtimeIncome)
		r.overtimeIncome = tax.ZeroMoney()
	}

	allowance, err := r.engine.Allowances.Resolve(ctx, r.profile, r.input.WagePeriod, r.input.PeriodEnd)
	if err != nil {
		return err
	}
	r.allowance = allowance
	r.result.AllowanceApplied = allowance.AmountFor(r.totals.TaxableEarnings)
	if allowance.Allowance != nil {
		id := allowance.Allowance.ID
		r.result.Applied.Allowance = &id
	}

	r.taxBase = r.totals.TaxableEarnings.
		Sub(r.result.AllowanceApplied).
		Sub(r.totals.PreTaxDeductions).
		FloorZero()
	r.taxBaseFixed = true
	return nil
}

func (r *pipelineRun) processTax(ctx context.Context, c Component) error {
	if err := r.fixTaxBase(ctx); err != nil {
		return err
	}

	rs, err := r.engine.Rules.Resolve(ctx, r.profile.Jurisdiction, c.TaxType, r.input.PayDate)
	if err != nil {
		return err
	}
	r.result.Applied.RuleSets[c.TaxType] = rs.ID

	// An annual cap bounds the income subject to this levy; prorate it to
	// the wage period before applying.
	base := r.taxBase
	if rs.AnnualCap != nil {
		base = base.Min(r.input.WagePeriod.Prorate(*rs.AnnualCap))
	}

	bracketed, err := tax.CalculateBracketTax(rs, base)
	if err != nil {
		return err
	}
	amount := bracketed.Tax

	switch c.TaxType {
	case tax.TaxIncome:
		r.result.Tax.BracketBreakdown = bracketed.Breakdown

		// Opted-in overtime is taxed at flat tier rates instead of the
		// brackets; its tax lands on the income-tax component.
		if r.overtimeIncome.IsPositive() {
			ot, err := r.engine.Overtime.Calculate(ctx, r.profile, r.overtimeIncome, r.input.PayDate)
			if err != nil {
				return err
			}
			if ot.Applied {
				r.result.Overtime = &ot
				r.result.Applied.RuleSets[tax.TaxOvertime] = ot.RuleSetID
				amount = amount.Add(ot.Tax)
			}
		}
		r.result.Tax.IncomeTax = r.result.Tax.IncomeTax.Add(amount)
	case tax.TaxSocialSecurity:
		r.result.Tax.SocialSecurity = r.result.Tax.SocialSecurity.Add(amount)
	case tax.TaxMedicare:
		r.result.Tax.Medicare = r.result.Tax.Medicare.Add(amount)
	}

	r.totals.Tax = r.totals.Tax.Add(amount)
	r.addResult(c.Code, amount, true, false)
	return nil
}

// applyBonus smooths the bonus after the component loop so the incremental
// tax lands on the income-tax figure regardless of component ordering.
func (r *pipelineRun) applyBonus(ctx context.Context) error {
	b := r.input.Bonus
	if b == nil {
		return nil
	}

	// The bonus is gross income even when its tax is zero.
	r.totals.Gross = r.totals.Gross.Add(b.Amount.FloorZero())
	code := b.Type
	if code == "" {
		code = "special_remuneration"
	}
	if b.Amount.IsPositive() {
		r.addResult(code, b.Amount, false, true)
	}

	smoothed, err := r.engine.Bonus.Calculate(ctx, r.profile.Jurisdiction, tax.TaxIncome, *b)
	if err != nil {
		return err
	}
	r.result.Bonus = &smoothed
	if smoothed.UsedFallback {
		r.result.Notes = append(r.result.Notes, fmt.Sprintf(
			"bonus smoothed over %d of %d covered periods (insufficient history)",
			smoothed.PeriodsUsed, smoothed.PeriodsCovered))
	}

	if smoothed.Tax.IsPositive() {
		r.result.Tax.IncomeTax = r.result.Tax.IncomeTax.Add(smoothed.Tax)
		r.totals.Tax = r.totals.Tax.Add(smoothed.Tax)
		r.addResult(code+"_tax", smoothed.Tax, true, false)
	}
	return nil
}

func (r *pipelineRun) finish() {
	res := r.result
	res.GrossPay = r.totals.Gross.Round()
	res.TaxableIncome = r.taxBase.Round()
	res.Tax.TaxableIncome = res.TaxableIncome
	res.TotalTax = r.totals.Tax.Round()
	res.Tax.TotalTax = res.TotalTax
	res.Tax.IncomeTax = res.Tax.IncomeTax.Round()
	res.Tax.SocialSecurity = res.Tax.SocialSecurity.Round()
	res.Tax.Medicare = res.Tax.Medicare.Round()
	res.AllowanceApplied = res.AllowanceApplied.Round()

	res.TotalDeductions = r.totals.PreTaxDeductions.Add(r.totals.PostTaxDeductions).Round()
	res.NetPay = r.totals.Gross.
		Add(r.netAdditions).
		Sub(r.grossOnly).
		Sub(r.totals.PreTaxDeductions).
		Sub(r.totals.PostTaxDeductions).
		Sub(r.totals.Tax).
		Round()
}

func (r *pipelineRun) addResult(code string, amount tax.Money, isDeduction, isTaxable bool) {
	r.result.Components = append(r.result.Components, ComponentResult{
		ComponentCode: code,
		Amount:        amount,
		IsDeduction:   isDeduction,
		IsTaxable:     isTaxable,
	})
}
