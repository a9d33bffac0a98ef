/*
profile.go - Employee tax profile

PURPOSE:
  The per-employee facts the engine needs: residency (drives allowance
  eligibility), overtime opt-in (drives the special-rate path), and the
  jurisdiction whose rules apply. Profiles are mutated by HR events
  outside this engine; each mutation carries an effective date so the
  engine can answer "what was true on the paycheck date" rather than
  "what is true now".

EFFECTIVE-DATED STATUS:
  A profile stores the CURRENT status plus the date it took effect.
  Asking for the status on a date before the effective date yields the
  prior status (the opposite value - both residency and opt-in are
  binary). Opt-ins may not be toggled retroactively for finalized
  paychecks; that is enforced at the paycheck layer, not here.
*/
package tax

// EmployeeProfile is the read-only tax profile for one employee.
type EmployeeProfile struct {
	EmployeeID   EmployeeID
	Jurisdiction Jurisdiction

	Residency          ResidencyStatus
	ResidencyEffective Date

	// OvertimeOptIn is a standing, voluntary flag - not set per paycheck.
	OvertimeOptIn     bool
	OvertimeOptInDate Date

	FilingStatus FilingStatus
}

// ResidentAsOf reports whether the employee counts as a tax resident on the
// given date. Mid-period residency changes use the wage-period's END date;
// the caller passes that date.
func (p EmployeeProfile) ResidentAsOf(d Date) bool {
	current := p.Residency == ResidencyResident
	if p.ResidencyEffective.IsZero() || p.ResidencyEffective.BeforeOrEqual(d) {
		return current
	}
	// Before the change took effect the status was the opposite one.
	return !current
}

// OvertimeOptedInAsOf reports whether the special overtime rates apply on
// the paycheck's pay date.
func (p EmployeeProfile) OvertimeOptedInAsOf(d Date) bool {
	if p.OvertimeOptInDate.IsZero() || p.OvertimeOptInDate.BeforeOrEqual(d) {
		return p.OvertimeOptIn
	}
	return !p.OvertimeOptIn
}
