// Package memory provides in-memory store implementations for tests and
// development. Implements every source and persistence interface the engine
// consumes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu sync.RWMutex

	ruleSets   map[ruleKey][]tax.RuleSet
	allowances map[tax.Jurisdiction][]tax.Allowance
	components map[tax.Jurisdiction][]payroll.Component
	profiles   map[tax.EmployeeID]tax.EmployeeProfile
	paychecks  map[payroll.PaycheckID]*payroll.Paycheck
	byEmployee map[tax.EmployeeID][]payroll.PaycheckID
	audit      []payroll.AuditEntry
}

type ruleKey struct {
	Jurisdiction tax.Jurisdiction
	TaxType      tax.TaxType
}

func New() *Store {
	return &Store{
		ruleSets:   make(map[ruleKey][]tax.RuleSet),
		allowances: make(map[tax.Jurisdiction][]tax.Allowance),
		components: make(map[tax.Jurisdiction][]payroll.Component),
		profiles:   make(map[tax.EmployeeID]tax.EmployeeProfile),
		paychecks:  make(map[payroll.PaycheckID]*payroll.Paycheck),
		byEmployee: make(map[tax.EmployeeID][]payroll.PaycheckID),
	}
}

// =============================================================================
// SEEDING - Configuration writes (administrative path)
// =============================================================================

func (s *Store) AddRuleSet(rs tax.RuleSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ruleKey{rs.Jurisdiction, rs.TaxType}
	s.ruleSets[k] = append(s.ruleSets[k], rs)
}

func (s *Store) AddAllowance(a tax.Allowance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[a.Jurisdiction] = append(s.allowances[a.Jurisdiction], a)
}

func (s *Store) AddComponent(jurisdiction tax.Jurisdiction, c payroll.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[jurisdiction] = append(s.components[jurisdiction], c)
}

func (s *Store) PutProfile(p tax.EmployeeProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.EmployeeID] = p
}

// =============================================================================
// SOURCE INTERFACES
// =============================================================================

func (s *Store) RuleSetsFor(_ context.Context, jurisdiction tax.Jurisdiction, taxType tax.TaxType) ([]tax.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.ruleSets[ruleKey{jurisdiction, taxType}]
	out := make([]tax.RuleSet, len(versions))
	copy(out, versions)
	return out, nil
}

func (s *Store) AllowancesFor(_ context.Context, jurisdiction tax.Jurisdiction) ([]tax.Allowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.allowances[jurisdiction]
	out := make([]tax.Allowance, len(versions))
	copy(out, versions)
	return out, nil
}

func (s *Store) ComponentsFor(_ context.Context, jurisdiction tax.Jurisdiction) ([]payroll.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	configured := s.components[jurisdiction]
	out := make([]payroll.Component, len(configured))
	copy(out, configured)
	return out, nil
}

func (s *Store) Profile(_ context.Context, id tax.EmployeeID) (tax.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return tax.EmployeeProfile{}, payroll.ErrProfileNotFound
	}
	return p, nil
}

// ListProfiles returns every profile, ordered by employee ID.
func (s *Store) ListProfiles(_ context.Context) ([]tax.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tax.EmployeeProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// =============================================================================
// PAYCHECK STORE
// =============================================================================

func (s *Store) SavePaycheck(_ context.Context, p *payroll.Paycheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One finalized paycheck per employee per period, ever. Voided
	// paychecks do not block a replacement.
	for _, id := range s.byEmployee[p.EmployeeID] {
		existing := s.paychecks[id]
		if existing.Status == payroll.StatusFinalized &&
			existing.PeriodStart.Equal(p.PeriodStart) &&
			existing.PeriodEnd.Equal(p.PeriodEnd) {
			return payroll.ErrPaycheckFinalized
		}
	}

	clone := *p
	s.paychecks[p.ID] = &clone
	s.byEmployee[p.EmployeeID] = append(s.byEmployee[p.EmployeeID], p.ID)
	return nil
}

func (s *Store) GetPaycheck(_ context.Context, id payroll.PaycheckID) (*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paychecks[id]
	if !ok {
		return nil, payroll.ErrPaycheckNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *Store) PaychecksFor(_ context.Context, id tax.EmployeeID) ([]*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byEmployee[id]
	out := make([]*payroll.Paycheck, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		clone := *s.paychecks[ids[i]]
		out = append(out, &clone)
	}
	return out, nil
}

func (s *Store) FinalizedFor(_ context.Context, id tax.EmployeeID, periodStart, periodEnd tax.Date) (*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pid := range s.byEmployee[id] {
		p := s.paychecks[pid]
		if p.Status == payroll.StatusFinalized &&
			p.PeriodStart.Equal(periodStart) && p.PeriodEnd.Equal(periodEnd) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, payroll.ErrPaycheckNotFound
}

func (s *Store) Void(_ context.Context, id payroll.PaycheckID, actor, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paychecks[id]
	if !ok {
		return payroll.ErrPaycheckNotFound
	}
	if p.Status == payroll.StatusVoided {
		return payroll.ErrPaycheckVoided
	}
	p.Status = payroll.StatusVoided
	p.VoidedAt = &at
	p.VoidedBy = actor
	p.VoidReason = reason
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(_ context.Context, entry payroll.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) QueryAudit(_ context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.AuditEntry
	for _, e := range s.audit {
		if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.PaycheckID != nil && e.PaycheckID != *filter.PaycheckID {
			continue
		}
		if filter.RunID != nil && e.RunID != *filter.RunID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsAction(actions []payroll.AuditAction, a payroll.AuditAction) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// Interface conformance
var (
	_ tax.RuleSetSource      = (*Store)(nil)
	_ tax.AllowanceSource    = (*Store)(nil)
	_ payroll.ComponentSource = (*Store)(nil)
	_ payroll.ProfileSource   = (*Store)(nil)
	_ payroll.PaycheckStore   = (*Store)(nil)
	_ payroll.AuditLog        = (*Store)(nil)
)
