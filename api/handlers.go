/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll calculation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Paychecks:
    POST   /api/paychecks/calculate      Dry-run calculation (no persist)
    POST   /api/paychecks                Calculate and finalize
    GET    /api/paychecks/{id}           Get paycheck
    POST   /api/paychecks/{id}/void      Void a finalized paycheck
    POST   /api/paychecks/{id}/recalculate  Void + recalculate (correction)

  Employees:
    GET    /api/employees/{id}/paychecks Paycheck history (newest first)
    GET    /api/employees/{id}/profile   Tax profile
    PUT    /api/employees/{id}/profile   Upsert tax profile

  Runs:
    POST   /api/runs                     Batch payroll run

  Configuration (versioned, insert-only):
    GET    /api/rulesets                 List versions for jurisdiction+type
    POST   /api/rulesets                 Publish a new rule-set version
    POST   /api/allowances               Publish a new allowance version
    GET    /api/components               List components for jurisdiction
    POST   /api/components               Upsert a component

  Audit:
    GET    /api/audit                    Query the audit trail

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    POST   /api/scenarios/load           Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, assembler, runner)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Input errors (malformed amounts, invalid wage periods)
  - 404: Paycheck or profile not found
  - 409: Conflict (finalized paycheck, already voided)
  - 422: Configuration errors (no/ambiguous rule set, invalid brackets)
  - 500: Internal errors
  The body carries the error kind so batch orchestrators can classify.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Engine    *payroll.Engine
	Assembler *payroll.Assembler
	Runner    *payroll.Runner

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the engine onto the store. The store backs every
// source and persistence interface the engine consumes.
func NewHandler(store *sqlite.Store) *Handler {
	engine := payroll.NewEngine(store, store, store, store)
	assembler := payroll.NewAssembler(store, store)
	return &Handler{
		Store:     store,
		Engine:    engine,
		Assembler: assembler,
		Runner:    payroll.NewRunner(engine, assembler, 4),
	}
}

// =============================================================================
// PAYCHECK HANDLERS
// =============================================================================

// CalculatePaycheck runs the pipeline without persisting anything.
// POST /api/paychecks/calculate
func (h *Handler) CalculatePaycheck(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := req.ToCalcInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid calculation input", err)
		return
	}

	result, err := h.Engine.CalculatePaycheck(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Calculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(result))
}

// FinalizePaycheck calculates and persists a finalized paycheck.
// POST /api/paychecks
func (h *Handler) FinalizePaycheck(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := req.ToCalcInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid calculation input", err)
		return
	}

	result, err := h.Engine.CalculatePaycheck(r.Context(), in)
	if err != nil {
		writeEngineError(w, "Calculation failed", err)
		return
	}

	p, err := h.Assembler.Finalize(r.Context(), "", actorFrom(r), result)
	if err != nil {
		writeEngineError(w, "Finalization failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaycheckDTO(p))
}

// GetPaycheck returns a single paycheck by ID.
// GET /api/paychecks/{id}
func (h *Handler) GetPaycheck(w http.ResponseWriter, r *http.Request) {
	id := payroll.PaycheckID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPaycheck(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get paycheck", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaycheckDTO(p))
}

// ListPaychecks returns an employee's paycheck history, newest first.
// GET /api/employees/{id}/paychecks
func (h *Handler) ListPaychecks(w http.ResponseWriter, r *http.Request) {
	id := tax.EmployeeID(chi.URLParam(r, "id"))

	paychecks, err := h.Store.PaychecksFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list paychecks", err)
		return
	}

	dtos := make([]PaycheckDTO, len(paychecks))
	for i, p := range paychecks {
		dtos[i] = toPaycheckDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// VoidPaycheck voids a finalized paycheck. The record is preserved; only
// the status flips.
// POST /api/paychecks/{id}/void
func (h *Handler) VoidPaycheck(w http.ResponseWriter, r *http.Request) {
	id := payroll.PaycheckID(chi.URLParam(r, "id"))

	var req VoidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "Void reason is required", nil)
		return
	}

	if err := h.Assembler.Void(r.Context(), id, req.Actor, req.Reason); err != nil {
		writeEngineError(w, "Void failed", err)
		return
	}

	p, err := h.Store.GetPaycheck(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to reload paycheck", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaycheckDTO(p))
}

// RecalculatePaycheck is the correction flow: void the existing paycheck
// and finalize a replacement in one call.
// POST /api/paychecks/{id}/recalculate
func (h *Handler) RecalculatePaycheck(w http.ResponseWriter, r *http.Request) {
	id := payroll.PaycheckID(chi.URLParam(r, "id"))

	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "Correction reason is required", nil)
		return
	}

	in, err := req.Input.ToCalcInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid calculation input", err)
		return
	}

	p, err := h.Assembler.VoidAndRecalculate(r.Context(), h.Engine, id, req.Actor, req.Reason, in)
	if err != nil {
		writeEngineError(w, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaycheckDTO(p))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// RunPayroll executes a batch payroll run. Per-employee failures land in
// the summary; the endpoint itself succeeds.
// POST /api/runs
func (h *Handler) RunPayroll(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Run has no items", nil)
		return
	}

	items := make([]payroll.CalcInput, len(req.Items))
	for i, item := range req.Items {
		in, err := item.ToCalcInput()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calculation input", err)
			return
		}
		items[i] = in
	}

	summary := h.Runner.Run(r.Context(), payroll.RunInput{
		RunID: req.RunID,
		Actor: req.Actor,
		Items: items,
	})
	writeJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// GetProfile returns an employee's tax profile.
// GET /api/employees/{id}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := tax.EmployeeID(chi.URLParam(r, "id"))

	p, err := h.Store.Profile(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// SaveProfile upserts an employee's tax profile.
// PUT /api/employees/{id}/profile
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	id := tax.EmployeeID(chi.URLParam(r, "id"))

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := tax.EmployeeProfile{
		EmployeeID:    id,
		Jurisdiction:  tax.Jurisdiction(req.Jurisdiction),
		Residency:     tax.ResidencyStatus(req.Residency),
		OvertimeOptIn: req.OvertimeOptIn,
		FilingStatus:  tax.FilingStatus(req.FilingStatus),
	}
	if req.ResidencyEffective != "" {
		d, err := parseDate(req.ResidencyEffective, "residency_effective")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid profile", err)
			return
		}
		p.ResidencyEffective = d
	}
	if req.OvertimeOptInDate != "" {
		d, err := parseDate(req.OvertimeOptInDate, "overtime_opt_in_date")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid profile", err)
			return
		}
		p.OvertimeOptInDate = d
	}

	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// =============================================================================
// CONFIGURATION HANDLERS - Versioned, insert-only
// =============================================================================

// ListRuleSets returns all versions for a jurisdiction and tax type.
// GET /api/rulesets?jurisdiction=NL&tax_type=income_tax
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	jurisdiction := tax.Jurisdiction(r.URL.Query().Get("jurisdiction"))
	taxType := tax.TaxType(r.URL.Query().Get("tax_type"))
	if jurisdiction == "" || taxType == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction and tax_type are required", nil)
		return
	}

	ruleSets, err := h.Store.RuleSetsFor(r.Context(), jurisdiction, taxType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rule sets", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleSetJSONs(ruleSets))
}

// CreateRuleSet publishes a new rule-set version. Versions are immutable;
// publishing an existing ID fails.
// POST /api/rulesets
func (h *Handler) CreateRuleSet(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rs, err := factory.ParseRuleSet(body)
	if err != nil {
		writeEngineError(w, "Invalid rule set", err)
		return
	}
	if err := h.Store.SaveRuleSet(r.Context(), rs); err != nil {
		writeError(w, http.StatusConflict, "Failed to save rule set", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(rs.ID)})
}

// CreateAllowance publishes a new allowance version.
// POST /api/allowances
func (h *Handler) CreateAllowance(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := factory.ParseAllowance(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allowance", err)
		return
	}
	if err := h.Store.SaveAllowance(r.Context(), a); err != nil {
		writeError(w, http.StatusConflict, "Failed to save allowance", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(a.ID)})
}

// ListComponents returns the component configuration for a jurisdiction.
// GET /api/components?jurisdiction=NL
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	jurisdiction := tax.Jurisdiction(r.URL.Query().Get("jurisdiction"))
	if jurisdiction == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction is required", nil)
		return
	}

	components, err := h.Store.ComponentsFor(r.Context(), jurisdiction)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list components", err)
		return
	}
	writeJSON(w, http.StatusOK, toComponentJSONs(components))
}

// CreateComponents upserts a jurisdiction's component configuration from a
// JSON array. The dependency graph is validated before anything is saved.
// POST /api/components?jurisdiction=NL
func (h *Handler) CreateComponents(w http.ResponseWriter, r *http.Request) {
	jurisdiction := tax.Jurisdiction(r.URL.Query().Get("jurisdiction"))
	if jurisdiction == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction is required", nil)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	components, err := factory.ParseComponents(body)
	if err != nil {
		writeEngineError(w, "Invalid components", err)
		return
	}
	for _, c := range components {
		if err := h.Store.SaveComponent(r.Context(), jurisdiction, c); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save component", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]int{"saved": len(components)})
}

// =============================================================================
// AUDIT HANDLER
// =============================================================================

// QueryAudit returns audit entries matching the query filters.
// GET /api/audit?employee_id=&paycheck_id=&run_id=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	var filter payroll.AuditFilter
	if v := r.URL.Query().Get("employee_id"); v != "" {
		id := tax.EmployeeID(v)
		filter.EmployeeID = &id
	}
	if v := r.URL.Query().Get("paycheck_id"); v != "" {
		id := payroll.PaycheckID(v)
		filter.PaycheckID = &id
	}
	if v := r.URL.Query().Get("run_id"); v != "" {
		runID := v
		filter.RunID = &runID
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			Timestamp:  e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			EmployeeID: string(e.EmployeeID),
			PaycheckID: string(e.PaycheckID),
			RunID:      e.RunID,
			Details:    e.Details,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONFIG SERIALIZATION - Reuse the factory's JSON schema for responses
// =============================================================================

func toRuleSetJSONs(ruleSets []tax.RuleSet) []factory.RuleSetJSON {
	out := make([]factory.RuleSetJSON, len(ruleSets))
	for i, rs := range ruleSets {
		j := factory.RuleSetJSON{
			ID:            string(rs.ID),
			Jurisdiction:  string(rs.Jurisdiction),
			TaxType:       string(rs.TaxType),
			Method:        string(rs.Method),
			EffectiveFrom: rs.EffectiveFrom.String(),
		}
		if rs.EffectiveTo != nil {
			j.EffectiveTo = rs.EffectiveTo.String()
		}
		if rs.AnnualCap != nil {
			j.AnnualCap = rs.AnnualCap.String()
		}
		for _, b := range rs.Brackets {
			bj := factory.BracketJSON{
				Order:       b.Order,
				IncomeMin:   b.IncomeMin.String(),
				Rate:        b.Rate.String(),
				FixedAmount: b.FixedAmount.String(),
			}
			if b.IncomeMax != nil {
				bj.IncomeMax = b.IncomeMax.String()
			}
			j.Brackets = append(j.Brackets, bj)
		}
		out[i] = j
	}
	return out
}

func toComponentJSONs(components []payroll.Component) []factory.ComponentJSON {
	out := make([]factory.ComponentJSON, len(components))
	for i, c := range components {
		out[i] = factory.ComponentJSON{
			Code:          c.Code,
			Name:          c.Name,
			Category:      string(c.Category),
			CalcType:      string(c.CalcType),
			SequenceOrder: c.SequenceOrder,
			DependsOn:     c.DependsOn,
			IsTaxable:     c.IsTaxable,
			AffectsGross:  c.AffectsGross,
			AffectsNet:    c.AffectsNet,
			PreTax:        c.PreTax,
			IsOvertime:    c.IsOvertime,
			FixedAmount:   c.FixedAmount.String(),
			Rate:          c.Rate.String(),
			TaxType:       string(c.TaxType),
		}
	}
	return out
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Kind = string(payroll.Kind(err))
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP statuses using the
// error taxonomy: input 400, configuration 422, conflicts 409, missing 404.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusForError(err), message, err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, payroll.ErrPaycheckNotFound),
		errors.Is(err, payroll.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, payroll.ErrPaycheckFinalized),
		errors.Is(err, payroll.ErrPaycheckVoided):
		return http.StatusConflict
	}
	switch payroll.Kind(err) {
	case payroll.KindInput:
		return http.StatusBadRequest
	case payroll.KindConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}
