/*
scheduler.go - Automated payroll run scheduler

PURPOSE:
  Periodically checks whether the current wage period has been paid out
  and automatically executes a payroll run for every employee still
  missing a finalized paycheck.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Processes only on/after the configured pay day of the month
  - Skips employees who already have a finalized paycheck for the
    period (the store's one-finalized-per-period rule backs this up)
  - Amounts come from the configured components (fixed salaries,
    percentage deductions); ad-hoc earnings go through the API instead

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - PayDay:        Day of month runs become due (default: 25)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRunScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunPayroll endpoint (manual runs)
  - payroll/run.go: The batch runner
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// RunScheduler handles automated monthly payroll runs.
type RunScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	PayDay        int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a new scheduler.
func NewRunScheduler(handler *Handler) *RunScheduler {
	return &RunScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		PayDay:        25,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v, pay day: %d", rs.CheckInterval, rs.PayDay)
}

// Stop stops the scheduler.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RunScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()

	if now.Day() < rs.PayDay {
		return
	}

	periodStart := tax.NewDate(now.Year(), now.Month(), 1)
	periodEnd := periodStart.AddMonths(1).AddDays(-1)
	payDate := tax.NewDate(now.Year(), now.Month(), rs.PayDay)

	profiles, err := rs.Handler.Store.ListProfiles(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing profiles: %v", err)
		return
	}

	wagePeriod, err := tax.NewWagePeriodCovering(tax.PeriodMonthly, decimal.NewFromInt(1))
	if err != nil {
		log.Printf("[Scheduler] Error building wage period: %v", err)
		return
	}

	var items []payroll.CalcInput
	skipped := 0
	for _, p := range profiles {
		// Already paid out for this period?
		_, err := rs.Handler.Store.FinalizedFor(ctx, p.EmployeeID, periodStart, periodEnd)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, payroll.ErrPaycheckNotFound) {
			log.Printf("[Scheduler] Error checking paycheck for %s: %v", p.EmployeeID, err)
			continue
		}

		items = append(items, payroll.CalcInput{
			EmployeeID:  p.EmployeeID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			PayDate:     payDate,
			WagePeriod:  wagePeriod,
		})
	}

	if len(items) == 0 {
		if skipped > 0 {
			log.Printf("[Scheduler] Period %s already paid out for all %d employees", periodEnd, skipped)
		}
		return
	}

	runID := fmt.Sprintf("scheduled-%04d-%02d", now.Year(), now.Month())
	summary := rs.Handler.Runner.Run(ctx, payroll.RunInput{
		RunID: runID,
		Actor: "scheduler",
		Items: items,
	})

	log.Printf("[Scheduler] Run %s completed: %d succeeded, %d failed, %d skipped (already paid)",
		runID, summary.Succeeded, summary.Failed, skipped)
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RunScheduler) RunNow() {
	rs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RunScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
