/*
errors.go - Centralized error types for the tax engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The payroll package wraps these with paycheck-level context.

ERROR CATEGORIES:
  1. Configuration errors - Ambiguous/missing rule sets, broken bracket
     tables. Always fatal for the affected paycheck; never silently
     defaulted (skipping a tax is worse than failing a paycheck).
  2. Input errors - Malformed wage periods, invalid bonus configuration.
     Rejected before any calculation begins.

  Data-sufficiency fallbacks (e.g. insufficient bonus history) are NOT
  errors; they surface in result metadata instead. See bonus.go.

USAGE:
  if errors.Is(err, tax.ErrNoApplicableRuleSet) {
      // configuration gap: fail this paycheck, keep the run going
  }

SEE ALSO:
  - ruleset.go: Where resolution errors originate
  - payroll/errors.go: Paycheck-level error kinds
*/
package tax

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoApplicableRuleSet is returned when no rule-set version covers the
	// requested date. Fatal for the paycheck: a missing tax is never skipped.
	ErrNoApplicableRuleSet = errors.New("no applicable rule set")

	// ErrAmbiguousRuleSet is returned when more than one rule-set version
	// covers the requested date (overlapping configuration).
	ErrAmbiguousRuleSet = errors.New("ambiguous rule set: overlapping versions")

	// ErrNoApplicableAllowance is returned when a resident employee has no
	// allowance version covering the requested date.
	ErrNoApplicableAllowance = errors.New("no applicable allowance")

	// ErrAmbiguousAllowance is returned when allowance versions overlap.
	ErrAmbiguousAllowance = errors.New("ambiguous allowance: overlapping versions")

	// ErrInvalidBracketTable is returned when a bracket table has gaps,
	// overlaps, or a bounded top bracket.
	ErrInvalidBracketTable = errors.New("invalid bracket table")

	// ErrInvalidBonusConfiguration is returned for a bonus context with
	// fewer than one covered wage period.
	ErrInvalidBonusConfiguration = errors.New("invalid bonus configuration")

	// ErrInvalidWagePeriod is returned for an unknown wage-period type or a
	// non-positive period count.
	ErrInvalidWagePeriod = errors.New("invalid wage period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleSetResolutionError reports a failed rule-set lookup with the key that
// was searched and, for the ambiguous case, the versions that collided.
type RuleSetResolutionError struct {
	Jurisdiction Jurisdiction
	TaxType      TaxType
	AsOf         Date
	Matches      []RuleSetID // len 0 = none, len > 1 = ambiguous
}

func (e *RuleSetResolutionError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("ambiguous rule set for %s/%s as of %s: %d overlapping versions",
			e.Jurisdiction, e.TaxType, e.AsOf, len(e.Matches))
	}
	return fmt.Sprintf("no applicable rule set for %s/%s as of %s",
		e.Jurisdiction, e.TaxType, e.AsOf)
}

func (e *RuleSetResolutionError) Unwrap() error {
	if len(e.Matches) > 1 {
		return ErrAmbiguousRuleSet
	}
	return ErrNoApplicableRuleSet
}

// AllowanceResolutionError is the allowance counterpart of
// RuleSetResolutionError.
type AllowanceResolutionError struct {
	Jurisdiction Jurisdiction
	AsOf         Date
	Matches      []AllowanceID
}

func (e *AllowanceResolutionError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("ambiguous allowance for %s as of %s: %d overlapping versions",
			e.Jurisdiction, e.AsOf, len(e.Matches))
	}
	return fmt.Sprintf("no applicable allowance for %s as of %s", e.Jurisdiction, e.AsOf)
}

func (e *AllowanceResolutionError) Unwrap() error {
	if len(e.Matches) > 1 {
		return ErrAmbiguousAllowance
	}
	return ErrNoApplicableAllowance
}

// BracketTableError reports which rule set failed validation and why.
type BracketTableError struct {
	RuleSetID RuleSetID
	Reason    string
}

func (e *BracketTableError) Error() string {
	return fmt.Sprintf("rule set %s: %s", e.RuleSetID, e.Reason)
}

func (e *BracketTableError) Unwrap() error { return ErrInvalidBracketTable }

// BonusConfigurationError reports an invalid bonus context.
type BonusConfigurationError struct {
	PeriodsCovered int
	HistoryLength  int
	Reason         string
}

func (e *BonusConfigurationError) Error() string {
	return fmt.Sprintf("bonus configuration: %s (covered=%d, history=%d)",
		e.Reason, e.PeriodsCovered, e.HistoryLength)
}

func (e *BonusConfigurationError) Unwrap() error { return ErrInvalidBonusConfiguration }

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// IsConfigurationError reports errors caused by administrative configuration
// (missing/overlapping versions, broken bracket tables). These are fatal for
// the affected paycheck and require a configuration fix before retry.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNoApplicableRuleSet) ||
		errors.Is(err, ErrAmbiguousRuleSet) ||
		errors.Is(err, ErrNoApplicableAllowance) ||
		errors.Is(err, ErrAmbiguousAllowance) ||
		errors.Is(err, ErrInvalidBracketTable)
}

// IsInputError reports errors caused by the caller's calculation input.
// These are rejected before any calculation begins.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidBonusConfiguration) ||
		errors.Is(err, ErrInvalidWagePeriod)
}
