/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FORMAT:
  All monetary amounts cross the wire as decimal STRINGS ("4696.70"),
  never as JSON numbers. Parsing happens through shopspring/decimal so
  no float64 ever touches an amount.

VALIDATION:
  Structural validation (parsable amounts, valid dates) happens in the
  DTO conversion; semantic validation (wage-period rules, bonus
  configuration) belongs to the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: RuleSetJSON, AllowanceJSON, ComponentJSON
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// CALCULATION REQUEST
// =============================================================================

type WagePeriodRequest struct {
	Type string `json:"type"`
	// PeriodsCovered defaults to 1 when omitted. Fractional values
	// ("0.5") support mid-period starts.
	PeriodsCovered string `json:"periods_covered,omitempty"`
}

type EarningRequest struct {
	ComponentCode string `json:"component_code"`
	Amount        string `json:"amount,omitempty"`
	Hours         string `json:"hours,omitempty"`
}

type DeductionRequest struct {
	ComponentCode string `json:"component_code"`
	Amount        string `json:"amount"`
}

type PeriodIncomeRequest struct {
	PeriodEnd string `json:"period_end"`
	Income    string `json:"income"`
}

type BonusRequest struct {
	Amount         string                `json:"amount"`
	Type           string                `json:"type,omitempty"`
	PeriodsCovered int                   `json:"periods_covered"`
	IncomeHistory  []PeriodIncomeRequest `json:"income_history,omitempty"`
}

// CalculateRequest is one employee's paycheck calculation input.
type CalculateRequest struct {
	EmployeeID  string             `json:"employee_id"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	PayDate     string             `json:"pay_date"`
	WagePeriod  WagePeriodRequest  `json:"wage_period"`
	Earnings    []EarningRequest   `json:"earnings,omitempty"`
	Deductions  []DeductionRequest `json:"deductions,omitempty"`
	Bonus       *BonusRequest      `json:"bonus,omitempty"`
}

// ToCalcInput converts the wire form into the engine's input, rejecting
// malformed amounts and dates before the engine sees them.
func (req CalculateRequest) ToCalcInput() (payroll.CalcInput, error) {
	var in payroll.CalcInput

	periodStart, err := parseDate(req.PeriodStart, "period_start")
	if err != nil {
		return in, err
	}
	periodEnd, err := parseDate(req.PeriodEnd, "period_end")
	if err != nil {
		return in, err
	}
	payDate, err := parseDate(req.PayDate, "pay_date")
	if err != nil {
		return in, err
	}

	periodType, err := tax.ParseWagePeriodType(req.WagePeriod.Type)
	if err != nil {
		return in, err
	}
	covered := decimal.NewFromInt(1)
	if req.WagePeriod.PeriodsCovered != "" {
		if covered, err = decimal.NewFromString(req.WagePeriod.PeriodsCovered); err != nil {
			return in, fmt.Errorf("invalid periods_covered %q: %w", req.WagePeriod.PeriodsCovered, err)
		}
	}
	wagePeriod, err := tax.NewWagePeriodCovering(periodType, covered)
	if err != nil {
		return in, err
	}

	in = payroll.CalcInput{
		EmployeeID:  tax.EmployeeID(req.EmployeeID),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PayDate:     payDate,
		WagePeriod:  wagePeriod,
	}

	for _, e := range req.Earnings {
		line := payroll.EarningInput{ComponentCode: e.ComponentCode}
		if e.Amount != "" {
			if line.Amount, err = parseMoney(e.Amount, "earning amount"); err != nil {
				return in, err
			}
		}
		if e.Hours != "" {
			if line.Hours, err = decimal.NewFromString(e.Hours); err != nil {
				return in, fmt.Errorf("invalid hours %q: %w", e.Hours, err)
			}
		}
		in.Earnings = append(in.Earnings, line)
	}

	for _, d := range req.Deductions {
		amount, err := parseMoney(d.Amount, "deduction amount")
		if err != nil {
			return in, err
		}
		in.Deductions = append(in.Deductions, payroll.DeductionInput{
			ComponentCode: d.ComponentCode,
			Amount:        amount,
		})
	}

	if req.Bonus != nil {
		bonus := &tax.BonusContext{
			Type:           req.Bonus.Type,
			PeriodsCovered: req.Bonus.PeriodsCovered,
		}
		if bonus.Amount, err = parseMoney(req.Bonus.Amount, "bonus amount"); err != nil {
			return in, err
		}
		for _, p := range req.Bonus.IncomeHistory {
			end, err := parseDate(p.PeriodEnd, "bonus period_end")
			if err != nil {
				return in, err
			}
			income, err := parseMoney(p.Income, "bonus period income")
			if err != nil {
				return in, err
			}
			bonus.RegularIncomePeriods = append(bonus.RegularIncomePeriods,
				tax.PeriodIncome{PeriodEnd: end, Income: income})
		}
		in.Bonus = bonus
	}

	return in, nil
}

// =============================================================================
// RESULT / PAYCHECK RESPONSES
// =============================================================================

type ComponentResultDTO struct {
	ComponentCode string `json:"component_code"`
	Amount        string `json:"amount"`
	IsDeduction   bool   `json:"is_deduction"`
	IsTaxable     bool   `json:"is_taxable"`
}

type BracketLineDTO struct {
	Order            int    `json:"order"`
	TaxableInBracket string `json:"taxable_in_bracket"`
	Rate             string `json:"rate"`
	Tax              string `json:"tax"`
}

type TaxResultDTO struct {
	IncomeTax        string           `json:"income_tax"`
	SocialSecurity   string           `json:"social_security"`
	Medicare         string           `json:"medicare"`
	TotalTax         string           `json:"total_tax"`
	TaxableIncome    string           `json:"taxable_income"`
	BracketBreakdown []BracketLineDTO `json:"bracket_breakdown,omitempty"`
}

type BonusResultDTO struct {
	Tax              string `json:"tax"`
	AveragePerPeriod string `json:"average_per_period"`
	PeriodsCovered   int    `json:"periods_covered"`
	PeriodsUsed      int    `json:"periods_used"`
	UsedFallback     bool   `json:"used_fallback"`
}

type OvertimeResultDTO struct {
	Applied   bool             `json:"applied"`
	RuleSetID string           `json:"rule_set_id,omitempty"`
	Income    string           `json:"income"`
	Tax       string           `json:"tax"`
	Tiers     []BracketLineDTO `json:"tiers,omitempty"`
}

type ResultDTO struct {
	EmployeeID  string `json:"employee_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	PayDate     string `json:"pay_date"`

	AnnualFraction string `json:"annual_fraction"`

	GrossPay         string `json:"gross_pay"`
	TaxableIncome    string `json:"taxable_income"`
	TotalTax         string `json:"total_tax"`
	TotalDeductions  string `json:"total_deductions"`
	NetPay           string `json:"net_pay"`
	AllowanceApplied string `json:"allowance_applied"`

	Components []ComponentResultDTO `json:"components"`
	Tax        TaxResultDTO         `json:"tax"`
	Bonus      *BonusResultDTO      `json:"bonus,omitempty"`
	Overtime   *OvertimeResultDTO   `json:"overtime,omitempty"`

	AppliedRuleSets  map[string]string `json:"applied_rule_sets"`
	AppliedAllowance string            `json:"applied_allowance,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

type PaycheckDTO struct {
	ID     string `json:"id"`
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status"`

	ResultDTO

	CreatedAt  string `json:"created_at"`
	VoidedAt   string `json:"voided_at,omitempty"`
	VoidedBy   string `json:"voided_by,omitempty"`
	VoidReason string `json:"void_reason,omitempty"`
}

func toResultDTO(res *payroll.Result) ResultDTO {
	dto := ResultDTO{
		EmployeeID:  string(res.EmployeeID),
		PeriodStart: res.PeriodStart.String(),
		PeriodEnd:   res.PeriodEnd.String(),
		PayDate:     res.PayDate.String(),

		AnnualFraction: res.AnnualFraction.String(),

		GrossPay:         res.GrossPay.String(),
		TaxableIncome:    res.TaxableIncome.String(),
		TotalTax:         res.TotalTax.String(),
		TotalDeductions:  res.TotalDeductions.String(),
		NetPay:           res.NetPay.String(),
		AllowanceApplied: res.AllowanceApplied.String(),

		Tax: TaxResultDTO{
			IncomeTax:        res.Tax.IncomeTax.String(),
			SocialSecurity:   res.Tax.SocialSecurity.String(),
			Medicare:         res.Tax.Medicare.String(),
			TotalTax:         res.Tax.TotalTax.String(),
			TaxableIncome:    res.Tax.TaxableIncome.String(),
			BracketBreakdown: toBracketLineDTOs(res.Tax.BracketBreakdown),
		},

		AppliedRuleSets: map[string]string{},
		Notes:           res.Notes,
	}

	dto.Components = make([]ComponentResultDTO, len(res.Components))
	for i, c := range res.Components {
		dto.Components[i] = ComponentResultDTO{
			ComponentCode: c.ComponentCode,
			Amount:        c.Amount.String(),
			IsDeduction:   c.IsDeduction,
			IsTaxable:     c.IsTaxable,
		}
	}

	for taxType, id := range res.Applied.RuleSets {
		dto.AppliedRuleSets[string(taxType)] = string(id)
	}
	if res.Applied.Allowance != nil {
		dto.AppliedAllowance = string(*res.Applied.Allowance)
	}

	if res.Bonus != nil {
		dto.Bonus = &BonusResultDTO{
			Tax:              res.Bonus.Tax.String(),
			AveragePerPeriod: res.Bonus.AveragePerPeriod.String(),
			PeriodsCovered:   res.Bonus.PeriodsCovered,
			PeriodsUsed:      res.Bonus.PeriodsUsed,
			UsedFallback:     res.Bonus.UsedFallback,
		}
	}
	if res.Overtime != nil {
		dto.Overtime = &OvertimeResultDTO{
			Applied:   res.Overtime.Applied,
			RuleSetID: string(res.Overtime.RuleSetID),
			Income:    res.Overtime.Income.String(),
			Tax:       res.Overtime.Tax.String(),
			Tiers:     toBracketLineDTOs(res.Overtime.Tiers),
		}
	}
	return dto
}

func toBracketLineDTOs(lines []tax.BracketLine) []BracketLineDTO {
	if len(lines) == 0 {
		return nil
	}
	out := make([]BracketLineDTO, len(lines))
	for i, l := range lines {
		out[i] = BracketLineDTO{
			Order:            l.Order,
			TaxableInBracket: l.TaxableInBracket.String(),
			Rate:             l.Rate.String(),
			Tax:              l.Tax.String(),
		}
	}
	return out
}

func toPaycheckDTO(p *payroll.Paycheck) PaycheckDTO {
	dto := PaycheckDTO{
		ID:         string(p.ID),
		RunID:      p.RunID,
		Status:     string(p.Status),
		ResultDTO:  toResultDTO(&p.Result),
		CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		VoidedBy:   p.VoidedBy,
		VoidReason: p.VoidReason,
	}
	if p.VoidedAt != nil {
		dto.VoidedAt = p.VoidedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// =============================================================================
// RUNS
// =============================================================================

type RunRequest struct {
	RunID string             `json:"run_id,omitempty"`
	Actor string             `json:"actor,omitempty"`
	Items []CalculateRequest `json:"items"`
}

type OutcomeDTO struct {
	EmployeeID string `json:"employee_id"`
	PaycheckID string `json:"paycheck_id,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

type RunSummaryDTO struct {
	RunID     string       `json:"run_id"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Cancelled int          `json:"cancelled"`
	Outcomes  []OutcomeDTO `json:"outcomes"`
}

func toRunSummaryDTO(s payroll.RunSummary) RunSummaryDTO {
	dto := RunSummaryDTO{
		RunID:     s.RunID,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Cancelled: s.Cancelled,
		Outcomes:  make([]OutcomeDTO, len(s.Outcomes)),
	}
	for i, o := range s.Outcomes {
		dto.Outcomes[i] = OutcomeDTO{
			EmployeeID: string(o.EmployeeID),
			PaycheckID: string(o.PaycheckID),
			Error:      o.Err,
			ErrorKind:  string(o.ErrKind),
		}
	}
	return dto
}

// =============================================================================
// CORRECTIONS, PROFILES, SCENARIOS
// =============================================================================

type VoidRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type RecalculateRequest struct {
	Actor  string           `json:"actor"`
	Reason string           `json:"reason"`
	Input  CalculateRequest `json:"input"`
}

type ProfileRequest struct {
	Jurisdiction       string `json:"jurisdiction"`
	Residency          string `json:"residency"`
	ResidencyEffective string `json:"residency_effective,omitempty"`
	OvertimeOptIn      bool   `json:"overtime_opt_in"`
	OvertimeOptInDate  string `json:"overtime_opt_in_date,omitempty"`
	FilingStatus       string `json:"filing_status,omitempty"`
}

type ProfileDTO struct {
	EmployeeID         string `json:"employee_id"`
	Jurisdiction       string `json:"jurisdiction"`
	Residency          string `json:"residency"`
	ResidencyEffective string `json:"residency_effective,omitempty"`
	OvertimeOptIn      bool   `json:"overtime_opt_in"`
	OvertimeOptInDate  string `json:"overtime_opt_in_date,omitempty"`
	FilingStatus       string `json:"filing_status,omitempty"`
}

func toProfileDTO(p tax.EmployeeProfile) ProfileDTO {
	dto := ProfileDTO{
		EmployeeID:    string(p.EmployeeID),
		Jurisdiction:  string(p.Jurisdiction),
		Residency:     string(p.Residency),
		OvertimeOptIn: p.OvertimeOptIn,
		FilingStatus:  string(p.FilingStatus),
	}
	if !p.ResidencyEffective.IsZero() {
		dto.ResidencyEffective = p.ResidencyEffective.String()
	}
	if !p.OvertimeOptInDate.IsZero() {
		dto.OvertimeOptInDate = p.OvertimeOptInDate.String()
	}
	return dto
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EmployeeID string         `json:"employee_id,omitempty"`
	PaycheckID string         `json:"paycheck_id,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDate(s, field string) (tax.Date, error) {
	if s == "" {
		return tax.Date{}, fmt.Errorf("missing %s", field)
	}
	d := tax.MustParseDate(s)
	if d.IsZero() {
		return tax.Date{}, fmt.Errorf("invalid %s %q (use YYYY-MM-DD)", field, s)
	}
	return d, nil
}

func parseMoney(s, field string) (tax.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return tax.Money{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return tax.Money{Value: d}, nil
}
