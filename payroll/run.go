/*
run.go - Batch payroll runs

PURPOSE:
  A payroll run processes N employees. Each employee's pipeline execution
  is pure and independent, so employees run in parallel worker goroutines
  bounded by a configurable concurrency limit. The only shared resource
  is the persistence layer; one paycheck belongs to one employee in one
  run, so no two workers ever write the same row.

CANCELLATION:
  Cancelling the run's context stops DISPATCH: in-flight calculations
  complete and persist, but no new employee is started. Partially
  completed runs report per-employee outcomes; they are never rolled
  back as a unit.

FAILURE ISOLATION:
  A calculation error aborts only that employee's paycheck. The run
  continues and the summary carries the error kind per failure
  (configuration vs input vs internal) so the orchestrator can retry the
  affected employees after a configuration fix.
*/
package payroll

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// RUN TYPES
// =============================================================================

type RunInput struct {
	RunID string // generated when empty
	Actor string
	Items []CalcInput
}

// Outcome is the per-employee result of a run.
type Outcome struct {
	EmployeeID tax.EmployeeID
	PaycheckID PaycheckID // empty on failure
	Err        string     // empty on success
	ErrKind    ErrorKind  // empty on success
}

type RunSummary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Cancelled int // employees never dispatched
	Outcomes  []Outcome
}

// =============================================================================
// RUNNER
// =============================================================================

type Runner struct {
	Engine    *Engine
	Assembler *Assembler

	// Concurrency bounds the worker pool. Values < 1 run sequentially.
	Concurrency int
}

func NewRunner(engine *Engine, assembler *Assembler, concurrency int) *Runner {
	return &Runner{Engine: engine, Assembler: assembler, Concurrency: concurrency}
}

// Run executes the batch and reports per-employee outcomes. The returned
// error covers only run-level failures; per-employee errors live in the
// summary.
func (r *Runner) Run(ctx context.Context, in RunInput) RunSummary {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	workers := r.Concurrency
	if workers < 1 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	record := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	jobs := make(chan CalcInput)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				record(r.processOne(ctx, runID, in.Actor, item))
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, item := range in.Items {
		// No new employee starts after cancellation; in-flight workers
		// drain and complete.
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- item:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	summary := RunSummary{
		RunID:     runID,
		Total:     len(in.Items),
		Cancelled: len(in.Items) - dispatched,
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].EmployeeID < outcomes[j].EmployeeID
	})
	summary.Outcomes = outcomes
	for _, o := range outcomes {
		if o.Err == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	if r.Assembler != nil && r.Assembler.Audit != nil {
		r.Assembler.audit(context.WithoutCancel(ctx), AuditEntry{
			Action:  AuditRunCompleted,
			ActorID: in.Actor,
			RunID:   runID,
			Details: map[string]any{
				"total":     summary.Total,
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
				"cancelled": summary.Cancelled,
			},
		})
	}
	return summary
}

// processOne calculates and persists a single employee's paycheck. The
// calculation finishes even if the run is cancelled mid-flight.
func (r *Runner) processOne(ctx context.Context, runID, actor string, item CalcInput) Outcome {
	// Detach from run cancellation: an in-flight employee completes.
	calcCtx := context.WithoutCancel(ctx)

	result, err := r.Engine.CalculatePaycheck(calcCtx, item)
	if err != nil {
		return Outcome{EmployeeID: item.EmployeeID, Err: err.Error(), ErrKind: Kind(err)}
	}

	p, err := r.Assembler.Finalize(calcCtx, runID, actor, result)
	if err != nil {
		return Outcome{EmployeeID: item.EmployeeID, Err: err.Error(), ErrKind: Kind(err)}
	}
	return Outcome{EmployeeID: item.EmployeeID, PaycheckID: p.ID}
}
