/*
errors.go - Paycheck-level error types and run classification

PURPOSE:
  Errors at this layer follow the same taxonomy as the tax package:
  configuration errors are fatal for the affected paycheck, input errors
  are rejected before calculation, and both abort only the single
  employee within a batch run. ErrorKind classifies any engine error for
  the run summary so the orchestrator can surface targeted retries.
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrComponentDependencyCycle is returned when the configured pay
	// components form a dependency cycle. Nothing is computed.
	ErrComponentDependencyCycle = errors.New("component dependency cycle")

	// ErrUnknownDependency is returned when a component depends on a code
	// that is not configured.
	ErrUnknownDependency = errors.New("unknown component dependency")

	// ErrUnknownComponent is returned when a calculation input references
	// a component code that is not configured.
	ErrUnknownComponent = errors.New("unknown component code")

	// ErrPaycheckFinalized is returned when a write would touch a
	// finalized paycheck. Corrections void and recreate, never overwrite.
	ErrPaycheckFinalized = errors.New("paycheck already finalized")

	// ErrPaycheckNotFound is returned for lookups of unknown paychecks.
	ErrPaycheckNotFound = errors.New("paycheck not found")

	// ErrPaycheckVoided is returned when voiding an already-voided paycheck.
	ErrPaycheckVoided = errors.New("paycheck already voided")

	// ErrProfileNotFound is returned when an employee has no tax profile.
	ErrProfileNotFound = errors.New("employee tax profile not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ComponentDependencyCycleError names the components stuck in a cycle.
type ComponentDependencyCycleError struct {
	Components []string
}

func (e *ComponentDependencyCycleError) Error() string {
	return fmt.Sprintf("component dependency cycle involving: %s", strings.Join(e.Components, ", "))
}

func (e *ComponentDependencyCycleError) Unwrap() error { return ErrComponentDependencyCycle }

// UnknownDependencyError names the component with the dangling dependency.
type UnknownDependencyError struct {
	Code      string
	DependsOn string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("component %s depends on unknown component %s", e.Code, e.DependsOn)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// =============================================================================
// CLASSIFICATION - Error kinds for run summaries
// =============================================================================

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindInput         ErrorKind = "input"
	KindInternal      ErrorKind = "internal"
)

// Kind classifies an error for the per-employee run outcome.
func Kind(err error) ErrorKind {
	switch {
	case tax.IsConfigurationError(err),
		errors.Is(err, ErrComponentDependencyCycle),
		errors.Is(err, ErrUnknownDependency),
		errors.Is(err, ErrProfileNotFound):
		return KindConfiguration
	case tax.IsInputError(err),
		errors.Is(err, ErrUnknownComponent):
		return KindInput
	default:
		return KindInternal
	}
}
