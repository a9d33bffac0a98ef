/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every configuration source and persistence interface the
  engine consumes (tax.RuleSetSource, tax.AllowanceSource,
  payroll.ComponentSource, payroll.ProfileSource, payroll.PaycheckStore,
  payroll.AuditLog) using SQLite. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

IMMUTABILITY ENFORCEMENT:
  Paychecks are effectively append-only:
  - A partial unique index on (employee_id, period_start, period_end)
    WHERE status = 'finalized' enforces one finalized paycheck per
    employee per period at the database level. A violation maps to
    payroll.ErrPaycheckFinalized.
  - The only UPDATE on paychecks is the finalized -> voided status flip.
  - Rule-set and allowance versions are insert-only; a correction is a
    new version row with a later effective_from.

KEY TABLES:
  rule_sets + brackets:  Versioned bracket tables per jurisdiction/levy
  allowances:            Versioned tax-free allowances
  components:            Pay-component configuration per jurisdiction
  employee_profiles:     Residency and overtime opt-in facts
  paychecks:             Finalized/voided paychecks with the full result
  audit_entries:         Append-only audit trail

MONEY AND DATES:
  Decimal amounts are stored as TEXT and parsed back through
  shopspring/decimal - never through float64. Effective dates are stored
  as "YYYY-MM-DD"; day granularity is all payroll effectivity needs.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store, store, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface contracts
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Rule sets (versioned by effective date, insert-only)
	CREATE TABLE IF NOT EXISTS rule_sets (
		id TEXT PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		tax_type TEXT NOT NULL,
		method TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		annual_cap TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rule_sets_lookup
		ON rule_sets(jurisdiction, tax_type);

	-- Brackets belong to exactly one rule-set version
	CREATE TABLE IF NOT EXISTS brackets (
		rule_set_id TEXT NOT NULL REFERENCES rule_sets(id),
		ord INTEGER NOT NULL,
		income_min TEXT NOT NULL,
		income_max TEXT,
		rate TEXT NOT NULL,
		fixed_amount TEXT NOT NULL,
		PRIMARY KEY (rule_set_id, ord)
	);

	-- Allowances (versioned by effective date, insert-only)
	CREATE TABLE IF NOT EXISTS allowances (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		jurisdiction TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_percentage BOOLEAN NOT NULL DEFAULT FALSE,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allowances_jurisdiction
		ON allowances(jurisdiction);

	-- Pay components per jurisdiction
	CREATE TABLE IF NOT EXISTS components (
		jurisdiction TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		calc_type TEXT NOT NULL,
		sequence_order INTEGER NOT NULL,
		depends_on_json TEXT,
		is_taxable BOOLEAN NOT NULL DEFAULT FALSE,
		affects_gross BOOLEAN NOT NULL DEFAULT FALSE,
		affects_net BOOLEAN NOT NULL DEFAULT FALSE,
		pre_tax BOOLEAN NOT NULL DEFAULT FALSE,
		is_overtime BOOLEAN NOT NULL DEFAULT FALSE,
		fixed_amount TEXT NOT NULL,
		rate TEXT NOT NULL,
		tax_type TEXT,
		PRIMARY KEY (jurisdiction, code)
	);

	-- Employee tax profiles
	CREATE TABLE IF NOT EXISTS employee_profiles (
		employee_id TEXT PRIMARY KEY,
		jurisdiction TEXT NOT NULL,
		residency TEXT NOT NULL,
		residency_effective TEXT,
		overtime_opt_in BOOLEAN NOT NULL DEFAULT FALSE,
		overtime_opt_in_date TEXT,
		filing_status TEXT
	);

	-- Paychecks: the full result is stored as JSON alongside the columns
	-- the store queries on. Finalized paychecks are never updated except
	-- for the void flip below.
	CREATE TABLE IF NOT EXISTS paychecks (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		employee_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		status TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		voided_at TEXT,
		voided_by TEXT,
		void_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_paychecks_employee
		ON paychecks(employee_id, created_at DESC);

	-- CRITICAL: one finalized paycheck per employee per period. Voided
	-- paychecks do not count, so a correction can replace one.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_paychecks_finalized_period
		ON paychecks(employee_id, period_start, period_end)
		WHERE status = 'finalized';

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		employee_id TEXT,
		paycheck_id TEXT,
		run_id TEXT,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_entries(employee_id);
	CREATE INDEX IF NOT EXISTS idx_audit_run
		ON audit_entries(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE SET SOURCE (tax.RuleSetSource interface)
// =============================================================================

// SaveRuleSet inserts a rule-set version with its brackets atomically.
// Versions are insert-only; saving an existing ID fails.
func (s *Store) SaveRuleSet(ctx context.Context, rs tax.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rs.Validate(); err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO rule_sets (id, jurisdiction, tax_type, method, effective_from, effective_to, annual_cap, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rs.ID), string(rs.Jurisdiction), string(rs.TaxType), string(rs.Method),
		rs.EffectiveFrom.String(), dateOrNil(rs.EffectiveTo), moneyOrNil(rs.AnnualCap),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule set: %w", err)
	}

	for _, b := range rs.Brackets {
		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO brackets (rule_set_id, ord, income_min, income_max, rate, fixed_amount)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(rs.ID), b.Order, b.IncomeMin.String(), moneyOrNil(b.IncomeMax),
			b.Rate.String(), b.FixedAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert bracket: %w", err)
		}
	}

	return sqlTx.Commit()
}

// RuleSetsFor returns all versions for a jurisdiction and tax type. The
// resolver filters by date; the source deliberately does not, so that
// overlapping configuration is detected rather than masked.
func (s *Store) RuleSetsFor(ctx context.Context, jurisdiction tax.Jurisdiction, taxType tax.TaxType) ([]tax.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, jurisdiction, tax_type, method, effective_from, effective_to, annual_cap
		FROM rule_sets
		WHERE jurisdiction = ? AND tax_type = ?
		ORDER BY effective_from ASC`,
		string(jurisdiction), string(taxType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule sets: %w", err)
	}
	defer rows.Close()

	var ruleSets []tax.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		ruleSets = append(ruleSets, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range ruleSets {
		brackets, err := s.loadBrackets(ctx, ruleSets[i].ID)
		if err != nil {
			return nil, err
		}
		ruleSets[i].Brackets = brackets
	}
	return ruleSets, nil
}

func scanRuleSet(rows *sql.Rows) (tax.RuleSet, error) {
	var (
		rs                       tax.RuleSet
		id, jurisdiction, txType string
		method, effectiveFrom    string
		effectiveTo, annualCap   sql.NullString
	)
	if err := rows.Scan(&id, &jurisdiction, &txType, &method, &effectiveFrom, &effectiveTo, &annualCap); err != nil {
		return rs, fmt.Errorf("failed to scan rule set: %w", err)
	}

	rs.ID = tax.RuleSetID(id)
	rs.Jurisdiction = tax.Jurisdiction(jurisdiction)
	rs.TaxType = tax.TaxType(txType)
	rs.Method = tax.CalculationMethod(method)
	rs.EffectiveFrom = tax.MustParseDate(effectiveFrom)
	if effectiveTo.Valid {
		d := tax.MustParseDate(effectiveTo.String)
		rs.EffectiveTo = &d
	}
	if annualCap.Valid {
		m, err := parseMoney(annualCap.String)
		if err != nil {
			return rs, err
		}
		rs.AnnualCap = &m
	}
	return rs, nil
}

func (s *Store) loadBrackets(ctx context.Context, id tax.RuleSetID) ([]tax.Bracket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ord, income_min, income_max, rate, fixed_amount
		FROM brackets WHERE rule_set_id = ? ORDER BY ord ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query brackets: %w", err)
	}
	defer rows.Close()

	var brackets []tax.Bracket
	for rows.Next() {
		var (
			b                             tax.Bracket
			incomeMin, rate, fixedAmount  string
			incomeMax                     sql.NullString
		)
		if err := rows.Scan(&b.Order, &incomeMin, &incomeMax, &rate, &fixedAmount); err != nil {
			return nil, fmt.Errorf("failed to scan bracket: %w", err)
		}
		if b.IncomeMin, err = parseMoney(incomeMin); err != nil {
			return nil, err
		}
		if incomeMax.Valid {
			m, err := parseMoney(incomeMax.String)
			if err != nil {
				return nil, err
			}
			b.IncomeMax = &m
		}
		if b.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("failed to parse bracket rate: %w", err)
		}
		if b.FixedAmount, err = parseMoney(fixedAmount); err != nil {
			return nil, err
		}
		brackets = append(brackets, b)
	}
	return brackets, rows.Err()
}

// =============================================================================
// ALLOWANCE SOURCE (tax.AllowanceSource interface)
// =============================================================================

// SaveAllowance inserts an allowance version. Insert-only.
func (s *Store) SaveAllowance(ctx context.Context, a tax.Allowance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allowances (id, type, jurisdiction, amount, is_percentage, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), a.Type, string(a.Jurisdiction), a.Amount.String(), a.IsPercentage,
		a.EffectiveFrom.String(), dateOrNil(a.EffectiveTo),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allowance: %w", err)
	}
	return nil
}

func (s *Store) AllowancesFor(ctx context.Context, jurisdiction tax.Jurisdiction) ([]tax.Allowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, jurisdiction, amount, is_percentage, effective_from, effective_to
		FROM allowances WHERE jurisdiction = ? ORDER BY effective_from ASC`,
		string(jurisdiction),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowances: %w", err)
	}
	defer rows.Close()

	var allowances []tax.Allowance
	for rows.Next() {
		var (
			a                   tax.Allowance
			id, typ, j, amount  string
			effectiveFrom       string
			effectiveTo         sql.NullString
		)
		if err := rows.Scan(&id, &typ, &j, &amount, &a.IsPercentage, &effectiveFrom, &effectiveTo); err != nil {
			return nil, fmt.Errorf("failed to scan allowance: %w", err)
		}
		a.ID = tax.AllowanceID(id)
		a.Type = typ
		a.Jurisdiction = tax.Jurisdiction(j)
		if a.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		a.EffectiveFrom = tax.MustParseDate(effectiveFrom)
		if effectiveTo.Valid {
			d := tax.MustParseDate(effectiveTo.String)
			a.EffectiveTo = &d
		}
		allowances = append(allowances, a)
	}
	return allowances, rows.Err()
}

// =============================================================================
// COMPONENT SOURCE (payroll.ComponentSource interface)
// =============================================================================

// SaveComponent upserts a component definition. Components are
// configuration, not history; the current definition wins.
func (s *Store) SaveComponent(ctx context.Context, jurisdiction tax.Jurisdiction, c payroll.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dependsJSON, _ := json.Marshal(c.DependsOn)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components
		(jurisdiction, code, name, category, calc_type, sequence_order, depends_on_json,
		 is_taxable, affects_gross, affects_net, pre_tax, is_overtime, fixed_amount, rate, tax_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction, code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			calc_type = excluded.calc_type,
			sequence_order = excluded.sequence_order,
			depends_on_json = excluded.depends_on_json,
			is_taxable = excluded.is_taxable,
			affects_gross = excluded.affects_gross,
			affects_net = excluded.affects_net,
			pre_tax = excluded.pre_tax,
			is_overtime = excluded.is_overtime,
			fixed_amount = excluded.fixed_amount,
			rate = excluded.rate,
			tax_type = excluded.tax_type`,
		string(jurisdiction), c.Code, c.Name, string(c.Category), string(c.CalcType),
		c.SequenceOrder, string(dependsJSON),
		c.IsTaxable, c.AffectsGross, c.AffectsNet, c.PreTax, c.IsOvertime,
		c.FixedAmount.String(), c.Rate.String(), string(c.TaxType),
	)
	if err != nil {
		return fmt.Errorf("failed to save component: %w", err)
	}
	return nil
}

func (s *Store) ComponentsFor(ctx context.Context, jurisdiction tax.Jurisdiction) ([]payroll.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, category, calc_type, sequence_order, depends_on_json,
		       is_taxable, affects_gross, affects_net, pre_tax, is_overtime,
		       fixed_amount, rate, tax_type
		FROM components WHERE jurisdiction = ? ORDER BY sequence_order ASC, code ASC`,
		string(jurisdiction),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var components []payroll.Component
	for rows.Next() {
		var (
			c                          payroll.Component
			category, calcType         string
			dependsJSON, taxType       sql.NullString
			fixedAmount, rate          string
		)
		if err := rows.Scan(&c.Code, &c.Name, &category, &calcType, &c.SequenceOrder, &dependsJSON,
			&c.IsTaxable, &c.AffectsGross, &c.AffectsNet, &c.PreTax, &c.IsOvertime,
			&fixedAmount, &rate, &taxType); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		c.Category = payroll.ComponentCategory(category)
		c.CalcType = payroll.CalculationType(calcType)
		if dependsJSON.Valid && dependsJSON.String != "" && dependsJSON.String != "null" {
			json.Unmarshal([]byte(dependsJSON.String), &c.DependsOn)
		}
		if c.FixedAmount, err = parseMoney(fixedAmount); err != nil {
			return nil, err
		}
		if c.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("failed to parse component rate: %w", err)
		}
		c.TaxType = tax.TaxType(taxType.String)
		components = append(components, c)
	}
	return components, rows.Err()
}

// =============================================================================
// PROFILE SOURCE (payroll.ProfileSource interface)
// =============================================================================

// SaveProfile upserts an employee tax profile.
func (s *Store) SaveProfile(ctx context.Context, p tax.EmployeeProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employee_profiles
		(employee_id, jurisdiction, residency, residency_effective, overtime_opt_in, overtime_opt_in_date, filing_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			jurisdiction = excluded.jurisdiction,
			residency = excluded.residency,
			residency_effective = excluded.residency_effective,
			overtime_opt_in = excluded.overtime_opt_in,
			overtime_opt_in_date = excluded.overtime_opt_in_date,
			filing_status = excluded.filing_status`,
		string(p.EmployeeID), string(p.Jurisdiction), string(p.Residency),
		zeroableDate(p.ResidencyEffective), p.OvertimeOptIn, zeroableDate(p.OvertimeOptInDate),
		string(p.FilingStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *Store) Profile(ctx context.Context, id tax.EmployeeID) (tax.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                           tax.EmployeeProfile
		employeeID, jurisdiction    string
		residency                   string
		residencyEff, optInDate     sql.NullString
		filingStatus                sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT employee_id, jurisdiction, residency, residency_effective,
		       overtime_opt_in, overtime_opt_in_date, filing_status
		FROM employee_profiles WHERE employee_id = ?`,
		string(id),
	).Scan(&employeeID, &jurisdiction, &residency, &residencyEff, &p.OvertimeOptIn, &optInDate, &filingStatus)

	if err == sql.ErrNoRows {
		return tax.EmployeeProfile{}, payroll.ErrProfileNotFound
	}
	if err != nil {
		return tax.EmployeeProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	p.EmployeeID = tax.EmployeeID(employeeID)
	p.Jurisdiction = tax.Jurisdiction(jurisdiction)
	p.Residency = tax.ResidencyStatus(residency)
	if residencyEff.Valid {
		p.ResidencyEffective = tax.MustParseDate(residencyEff.String)
	}
	if optInDate.Valid {
		p.OvertimeOptInDate = tax.MustParseDate(optInDate.String)
	}
	p.FilingStatus = tax.FilingStatus(filingStatus.String)
	return p, nil
}

// ListProfiles returns every employee profile, ordered by employee ID.
// Used by the run scheduler to enumerate the payroll population.
func (s *Store) ListProfiles(ctx context.Context) ([]tax.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, jurisdiction, residency, residency_effective,
		       overtime_opt_in, overtime_opt_in_date, filing_status
		FROM employee_profiles ORDER BY employee_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []tax.EmployeeProfile
	for rows.Next() {
		var (
			p                        tax.EmployeeProfile
			employeeID, jurisdiction string
			residency                string
			residencyEff, optInDate  sql.NullString
			filingStatus             sql.NullString
		)
		if err := rows.Scan(&employeeID, &jurisdiction, &residency, &residencyEff,
			&p.OvertimeOptIn, &optInDate, &filingStatus); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.EmployeeID = tax.EmployeeID(employeeID)
		p.Jurisdiction = tax.Jurisdiction(jurisdiction)
		p.Residency = tax.ResidencyStatus(residency)
		if residencyEff.Valid {
			p.ResidencyEffective = tax.MustParseDate(residencyEff.String)
		}
		if optInDate.Valid {
			p.OvertimeOptInDate = tax.MustParseDate(optInDate.String)
		}
		p.FilingStatus = tax.FilingStatus(filingStatus.String)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// =============================================================================
// PAYCHECK STORE (payroll.PaycheckStore interface)
// =============================================================================

// SavePaycheck persists the paycheck with its full result atomically. The
// partial unique index enforces one finalized paycheck per employee per
// period; a violation maps to payroll.ErrPaycheckFinalized.
func (s *Store) SavePaycheck(ctx context.Context, p *payroll.Paycheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resultJSON, err := json.Marshal(p.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO paychecks
		(id, run_id, employee_id, period_start, period_end, pay_date, status, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), p.RunID, string(p.EmployeeID),
		p.PeriodStart.String(), p.PeriodEnd.String(), p.PayDate.String(),
		string(p.Status), string(resultJSON),
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrPaycheckFinalized
		}
		return fmt.Errorf("failed to insert paycheck: %w", err)
	}
	return nil
}

func (s *Store) GetPaycheck(ctx context.Context, id payroll.PaycheckID) (*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, employee_id, status, result_json, created_at, voided_at, voided_by, void_reason
		FROM paychecks WHERE id = ?`,
		string(id),
	)
	p, err := scanPaycheck(row)
	if err == sql.ErrNoRows {
		return nil, payroll.ErrPaycheckNotFound
	}
	return p, err
}

// PaychecksFor returns all paychecks for an employee, newest first.
func (s *Store) PaychecksFor(ctx context.Context, id tax.EmployeeID) ([]*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, employee_id, status, result_json, created_at, voided_at, voided_by, void_reason
		FROM paychecks WHERE employee_id = ?
		ORDER BY created_at DESC, id DESC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query paychecks: %w", err)
	}
	defer rows.Close()

	var paychecks []*payroll.Paycheck
	for rows.Next() {
		p, err := scanPaycheck(rows)
		if err != nil {
			return nil, err
		}
		paychecks = append(paychecks, p)
	}
	return paychecks, rows.Err()
}

// FinalizedFor returns the finalized paycheck covering the period, or
// payroll.ErrPaycheckNotFound.
func (s *Store) FinalizedFor(ctx context.Context, id tax.EmployeeID, periodStart, periodEnd tax.Date) (*payroll.Paycheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, employee_id, status, result_json, created_at, voided_at, voided_by, void_reason
		FROM paychecks
		WHERE employee_id = ? AND period_start = ? AND period_end = ? AND status = 'finalized'`,
		string(id), periodStart.String(), periodEnd.String(),
	)
	p, err := scanPaycheck(row)
	if err == sql.ErrNoRows {
		return nil, payroll.ErrPaycheckNotFound
	}
	return p, err
}

// Void flips a finalized paycheck to voided. The only UPDATE this store
// ever issues against the paychecks table.
func (s *Store) Void(ctx context.Context, id payroll.PaycheckID, actor, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE paychecks
		SET status = 'voided', voided_at = ?, voided_by = ?, void_reason = ?
		WHERE id = ? AND status = 'finalized'`,
		at.UTC().Format(time.RFC3339), actor, reason, string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to void paycheck: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM paychecks WHERE id = ?", string(id)).Scan(&status)
		if err == sql.ErrNoRows {
			return payroll.ErrPaycheckNotFound
		}
		if err != nil {
			return err
		}
		return payroll.ErrPaycheckVoided
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaycheck(row rowScanner) (*payroll.Paycheck, error) {
	var (
		id, runID, employeeID, status string
		resultJSON, createdAt         string
		voidedAt, voidedBy, voidReason sql.NullString
	)
	if err := row.Scan(&id, &runID, &employeeID, &status, &resultJSON, &createdAt, &voidedAt, &voidedBy, &voidReason); err != nil {
		return nil, err
	}

	p := &payroll.Paycheck{
		ID:         payroll.PaycheckID(id),
		RunID:      runID,
		Status:     payroll.PaycheckStatus(status),
		VoidedBy:   voidedBy.String,
		VoidReason: voidReason.String,
	}
	if err := json.Unmarshal([]byte(resultJSON), &p.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if voidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, voidedAt.String)
		p.VoidedAt = &t
	}
	// The indexed column is authoritative for status even if the blob
	// predates a void.
	p.EmployeeID = tax.EmployeeID(employeeID)
	return p, nil
}

// =============================================================================
// AUDIT LOG (payroll.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry payroll.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, _ := json.Marshal(entry.Details)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, ts, actor_id, action, employee_id, paycheck_id, run_id, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UTC().Format(time.RFC3339), entry.ActorID, string(entry.Action),
		string(entry.EmployeeID), string(entry.PaycheckID), entry.RunID, string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, ts, actor_id, action, employee_id, paycheck_id, run_id, details_json
		FROM audit_entries WHERE 1=1`
	var args []any
	if filter.EmployeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, string(*filter.EmployeeID))
	}
	if filter.PaycheckID != nil {
		query += " AND paycheck_id = ?"
		args = append(args, string(*filter.PaycheckID))
	}
	if filter.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, *filter.RunID)
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		query += " AND action IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []payroll.AuditEntry
	for rows.Next() {
		var (
			e                      payroll.AuditEntry
			ts, action             string
			employeeID, paycheckID sql.NullString
			actorID, runID         sql.NullString
			detailsJSON            sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &actorID, &action, &employeeID, &paycheckID, &runID, &detailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		e.ActorID = actorID.String
		e.Action = payroll.AuditAction(action)
		e.EmployeeID = tax.EmployeeID(employeeID.String)
		e.PaycheckID = payroll.PaycheckID(paycheckID.String)
		e.RunID = runID.String
		if detailsJSON.Valid && detailsJSON.String != "" {
			json.Unmarshal([]byte(detailsJSON.String), &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// SEEDING CONVENIENCE (factory.ConfigSink)
// =============================================================================

// AddRuleSet, AddAllowance and AddComponent satisfy the preset seeding
// interface. Errors surface via the engine's resolution paths; seeding a
// duplicate version is a no-op failure here.
func (s *Store) AddRuleSet(rs tax.RuleSet) {
	_ = s.SaveRuleSet(context.Background(), rs)
}

func (s *Store) AddAllowance(a tax.Allowance) {
	_ = s.SaveAllowance(context.Background(), a)
}

func (s *Store) AddComponent(jurisdiction tax.Jurisdiction, c payroll.Component) {
	_ = s.SaveComponent(context.Background(), jurisdiction, c)
}

// =============================================================================
// HELPERS
// =============================================================================

func dateOrNil(d *tax.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func zeroableDate(d tax.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func moneyOrNil(m *tax.Money) any {
	if m == nil {
		return nil
	}
	return m.String()
}

func parseMoney(s string) (tax.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return tax.Money{}, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return tax.Money{Value: d}, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Interface conformance
var (
	_ tax.RuleSetSource       = (*Store)(nil)
	_ tax.AllowanceSource     = (*Store)(nil)
	_ payroll.ComponentSource = (*Store)(nil)
	_ payroll.ProfileSource   = (*Store)(nil)
	_ payroll.PaycheckStore   = (*Store)(nil)
	_ payroll.AuditLog        = (*Store)(nil)
)
