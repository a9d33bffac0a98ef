/*
assembler.go - Paycheck assembly, finalization, and corrections

PURPOSE:
  The Assembler is the single path from a calculated Result to a
  persisted Paycheck. It stamps identity (ID, run, timestamp), persists
  atomically through the PaycheckStore contract, and writes the audit
  entry recording which rule-set and allowance versions produced the
  numbers.

CORRECTIONS:
  A finalized paycheck is never recalculated in place. VoidAndRecalculate
  voids the existing paycheck (audit-logged with actor and reason),
  reruns the pipeline, and finalizes a fresh paycheck. Re-running the
  same period without an explicit void fails with ErrPaycheckFinalized.
*/
package payroll

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Assembler struct {
	Store PaycheckStore
	Audit AuditLog

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewAssembler(store PaycheckStore, audit AuditLog) *Assembler {
	return &Assembler{Store: store, Audit: audit, Clock: time.Now}
}

// Finalize persists a calculated Result as a finalized Paycheck.
// Fails with ErrPaycheckFinalized when the period already has one.
func (a *Assembler) Finalize(ctx context.Context, runID string, actor string, result *Result) (*Paycheck, error) {
	p := &Paycheck{
		ID:        PaycheckID(uuid.NewString()),
		RunID:     runID,
		Result:    *result,
		Status:    StatusFinalized,
		CreatedAt: a.Clock().UTC(),
	}

	if err := a.Store.SavePaycheck(ctx, p); err != nil {
		return nil, err
	}

	a.audit(ctx, AuditEntry{
		Action:     AuditPaycheckFinalized,
		ActorID:    actor,
		EmployeeID: result.EmployeeID,
		PaycheckID: p.ID,
		RunID:      runID,
		Details:    appliedDetails(result),
	})
	return p, nil
}

// Void marks a finalized paycheck voided. The paycheck itself is preserved;
// only the status flips.
func (a *Assembler) Void(ctx context.Context, id PaycheckID, actor, reason string) error {
	if err := a.Store.Void(ctx, id, actor, reason, a.Clock().UTC()); err != nil {
		return err
	}
	p, err := a.Store.GetPaycheck(ctx, id)
	if err != nil {
		return err
	}
	a.audit(ctx, AuditEntry{
		Action:     AuditPaycheckVoided,
		ActorID:    actor,
		EmployeeID: p.EmployeeID,
		PaycheckID: id,
		RunID:      p.RunID,
		Details:    map[string]any{"reason": reason},
	})
	return nil
}

// VoidAndRecalculate is the explicit correction flow: void the existing
// paycheck, rerun the pipeline, finalize the replacement.
func (a *Assembler) VoidAndRecalculate(ctx context.Context, engine *Engine, id PaycheckID, actor, reason string, in CalcInput) (*Paycheck, error) {
	if err := a.Void(ctx, id, actor, reason); err != nil {
		return nil, err
	}
	result, err := engine.CalculatePaycheck(ctx, in)
	if err != nil {
		return nil, err
	}
	return a.Finalize(ctx, "", actor, result)
}

func (a *Assembler) audit(ctx context.Context, entry AuditEntry) {
	if a.Audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = a.Clock().UTC()
	// Audit failure never fails an already-persisted paycheck; the
	// entry is best-effort and the paycheck itself carries the applied
	// versions.
	_ = a.Audit.AppendAudit(ctx, entry)
}

// appliedDetails flattens the applied configuration versions for the audit
// trail.
func appliedDetails(result *Result) map[string]any {
	details := map[string]any{
		"annual_fraction": result.AnnualFraction.String(),
	}
	for taxType, id := range result.Applied.RuleSets {
		details["rule_set_"+string(taxType)] = string(id)
	}
	if result.Applied.Allowance != nil {
		details["allowance"] = string(*result.Applied.Allowance)
	}
	if result.Bonus != nil {
		details["bonus_periods_used"] = result.Bonus.PeriodsUsed
		details["bonus_fallback"] = result.Bonus.UsedFallback
	}
	if result.Overtime != nil {
		details["overtime_rule_set"] = string(result.Overtime.RuleSetID)
	}
	return details
}

// IsCorrectable reports whether an error leaves the period open for a
// correction flow (the existing paycheck must be voided first).
func IsCorrectable(err error) bool {
	return errors.Is(err, ErrPaycheckFinalized)
}
