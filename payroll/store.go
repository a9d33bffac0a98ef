/*
store.go - Persistence interfaces for paychecks and the audit log

PURPOSE:
  Defines the boundary between the calculation engine and the database.
  Paychecks are effectively append-only: SavePaycheck refuses to touch a
  period that already has a finalized paycheck, and the only mutation
  ever permitted is the finalized -> voided status flip. Corrections are
  void + recreate, preserving the full history.

IMPLEMENTATIONS:
  - store/memory:  In-memory, for tests and development
  - store/sqlite:  SQLite-backed production store

SEE ALSO:
  - assembler.go: The one writer of paychecks
*/
package payroll

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// PAYCHECK STORE
// =============================================================================

// PaycheckStore persists paychecks and their component results.
//
// CONTRACT:
//   - SavePaycheck is atomic: the paycheck and all component results
//     persist together or not at all.
//   - SavePaycheck fails with ErrPaycheckFinalized when a finalized
//     paycheck already exists for the same employee and period. A voided
//     paycheck does not block a new one.
//   - Void is the only permitted mutation, and only finalized -> voided.
type PaycheckStore interface {
	SavePaycheck(ctx context.Context, p *Paycheck) error

	GetPaycheck(ctx context.Context, id PaycheckID) (*Paycheck, error)

	// PaychecksFor returns all paychecks (finalized and voided) for an
	// employee, newest first.
	PaychecksFor(ctx context.Context, id tax.EmployeeID) ([]*Paycheck, error)

	// FinalizedFor returns the finalized paycheck covering the period,
	// or ErrPaycheckNotFound.
	FinalizedFor(ctx context.Context, id tax.EmployeeID, periodStart, periodEnd tax.Date) (*Paycheck, error)

	Void(ctx context.Context, id PaycheckID, actor, reason string, at time.Time) error
}

// =============================================================================
// AUDIT LOG - Append-only record of engine actions
// =============================================================================

type AuditAction string

const (
	AuditPaycheckFinalized AuditAction = "paycheck_finalized"
	AuditPaycheckVoided    AuditAction = "paycheck_voided"
	AuditRunCompleted      AuditAction = "run_completed"
)

// AuditEntry records who did what, when, and against which configuration
// versions.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	EmployeeID tax.EmployeeID
	PaycheckID PaycheckID
	RunID      string

	// Details carries action-specific data, e.g. the applied rule-set
	// version IDs for reproducibility.
	Details map[string]any
}

type AuditFilter struct {
	EmployeeID *tax.EmployeeID
	PaycheckID *PaycheckID
	RunID      *string
	Actions    []AuditAction
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
