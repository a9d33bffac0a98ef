/*
paycheck.go - Calculation result and persisted paycheck types

PURPOSE:
  Result is the deterministic output of one pipeline execution: identical
  inputs against identical rule-set versions produce a bit-identical
  Result. Paycheck wraps a Result with the persistence identity (ID, run,
  status, timestamps) added at assembly time, so idempotence of the
  calculation is never polluted by generated IDs.

LIFECYCLE:
  A Paycheck is created finalized and is immutable from then on. A
  correction voids the paycheck (status flip, audit-logged) and creates a
  new one - never an in-place edit. Recomputing an already-finalized
  paycheck without an explicit void fails with ErrPaycheckFinalized.
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// COMPONENT RESULT - One itemized paycheck line
// =============================================================================

type ComponentResult struct {
	ComponentCode string
	Amount        tax.Money
	IsDeduction   bool
	IsTaxable     bool
}

// =============================================================================
// TAX RESULT - The levy totals for one paycheck
// =============================================================================

type TaxResult struct {
	IncomeTax      tax.Money
	SocialSecurity tax.Money
	Medicare       tax.Money
	TotalTax       tax.Money
	TaxableIncome  tax.Money

	// BracketBreakdown is the per-bracket detail of the ordinary income
	// tax (bonus and overtime carry their own breakdowns on Result).
	BracketBreakdown []tax.BracketLine
}

// =============================================================================
// APPLIED VERSIONS - Audit of which configuration produced the numbers
// =============================================================================

// AppliedVersions records the effective-dated configuration versions used,
// so a historical paycheck is reproducible against the exact rules that
// produced it.
type AppliedVersions struct {
	RuleSets  map[tax.TaxType]tax.RuleSetID
	Allowance *tax.AllowanceID
}

// =============================================================================
// RESULT - Deterministic pipeline output
// =============================================================================

type Result struct {
	EmployeeID  tax.EmployeeID
	PeriodStart tax.Date
	PeriodEnd   tax.Date
	PayDate     tax.Date

	WagePeriod     tax.WagePeriod
	AnnualFraction decimal.Decimal

	GrossPay        tax.Money
	TaxableIncome   tax.Money
	TotalTax        tax.Money
	TotalDeductions tax.Money
	NetPay          tax.Money

	// AllowanceApplied is the prorated tax-free amount subtracted from
	// taxable income (zero for non-residents).
	AllowanceApplied tax.Money

	Components []ComponentResult
	Tax        TaxResult

	// Intermediate breakdowns, present only when the calculation occurred.
	Bonus    *tax.BonusResult
	Overtime *tax.OvertimeResult

	Applied AppliedVersions

	// Notes surface documented fallbacks (e.g. insufficient bonus
	// history) in the result metadata rather than failing the paycheck.
	Notes []string
}

// =============================================================================
// PAYCHECK - Persisted, immutable once finalized
// =============================================================================

type PaycheckID string

type PaycheckStatus string

const (
	StatusFinalized PaycheckStatus = "finalized"
	StatusVoided    PaycheckStatus = "voided"
)

type Paycheck struct {
	ID    PaycheckID
	RunID string

	Result

	Status     PaycheckStatus
	CreatedAt  time.Time
	VoidedAt   *time.Time
	VoidedBy   string
	VoidReason string
}
