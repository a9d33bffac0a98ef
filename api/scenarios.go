/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  configuration for testing and demos. Each scenario seeds the demo
  jurisdiction (rule-set versions, allowances, components) plus employee
  profiles exercising a specific engine feature.

AVAILABLE SCENARIOS:
  standard-monthly:  Resident employee, monthly salary, bracket tax
  overtime-opt-in:   Employee opted into flat overtime tier rates
  non-resident:      Non-resident, no allowance applied
  bonus-history:     Employee with income history for bonus smoothing

HOW SCENARIOS WORK:
  1. Seed the demo jurisdiction configuration (idempotent)
  2. Upsert the scenario's employee profiles
  3. Return a ready-to-send calculation request for experimentation

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "overtime-opt-in"}

ADDING NEW SCENARIOS:
  1. Add to the 'scenarios' slice with ID, name, description
  2. Add profiles + sample request to loadScenario

NOTE:
  Scenario configuration is additive. Only use in development/demo
  environments.

SEE ALSO:
  - factory/presets.go: The demo jurisdiction definition
  - handlers.go: writeJSON/writeError helpers
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-monthly",
		Name:        "Standard Monthly Paycheck",
		Description: "Resident employee, 5000 monthly salary: brackets, allowance, pension, social security",
	},
	{
		ID:          "overtime-opt-in",
		Name:        "Overtime Opt-In",
		Description: "Employee opted into flat overtime tier rates instead of bracket taxation",
	},
	{
		ID:          "non-resident",
		Name:        "Non-Resident",
		Description: "Non-resident employee: taxed through the brackets with no tax-free allowance",
	},
	{
		ID:          "bonus-history",
		Name:        "Bonus Smoothing",
		Description: "Annual bonus smoothed over twelve months of income history",
	},
}

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario reports the most recently loaded scenario.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario seeds the demo configuration and the scenario's profiles,
// returning a sample calculation request to try against the engine.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sample, err := h.loadScenario(r, req.ScenarioID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id":    req.ScenarioID,
		"sample_request": sample,
	})
}

func (h *Handler) loadScenario(r *http.Request, id string) (*CalculateRequest, error) {
	// All scenarios share the demo jurisdiction configuration.
	factory.DemoJurisdiction().Seed(h.Store)

	switch id {
	case "standard-monthly":
		if err := h.Store.SaveProfile(r.Context(), tax.EmployeeProfile{
			EmployeeID:   "emp-alice",
			Jurisdiction: "NL",
			Residency:    tax.ResidencyResident,
			FilingStatus: tax.FilingSingle,
		}); err != nil {
			return nil, err
		}
		return &CalculateRequest{
			EmployeeID:  "emp-alice",
			PeriodStart: "2025-03-01",
			PeriodEnd:   "2025-03-31",
			PayDate:     "2025-03-25",
			WagePeriod:  WagePeriodRequest{Type: "monthly"},
			Earnings:    []EarningRequest{{ComponentCode: "base_salary", Amount: "5000"}},
		}, nil

	case "overtime-opt-in":
		if err := h.Store.SaveProfile(r.Context(), tax.EmployeeProfile{
			EmployeeID:        "emp-bob",
			Jurisdiction:      "NL",
			Residency:         tax.ResidencyResident,
			OvertimeOptIn:     true,
			OvertimeOptInDate: tax.MustParseDate("2025-01-01"),
			FilingStatus:      tax.FilingSingle,
		}); err != nil {
			return nil, err
		}
		return &CalculateRequest{
			EmployeeID:  "emp-bob",
			PeriodStart: "2025-03-01",
			PeriodEnd:   "2025-03-31",
			PayDate:     "2025-03-25",
			WagePeriod:  WagePeriodRequest{Type: "monthly"},
			Earnings: []EarningRequest{
				{ComponentCode: "base_salary", Amount: "4200"},
				{ComponentCode: "overtime", Hours: "32"},
			},
		}, nil

	case "non-resident":
		if err := h.Store.SaveProfile(r.Context(), tax.EmployeeProfile{
			EmployeeID:   "emp-chen",
			Jurisdiction: "NL",
			Residency:    tax.ResidencyNonResident,
			FilingStatus: tax.FilingSingle,
		}); err != nil {
			return nil, err
		}
		return &CalculateRequest{
			EmployeeID:  "emp-chen",
			PeriodStart: "2025-03-01",
			PeriodEnd:   "2025-03-31",
			PayDate:     "2025-03-25",
			WagePeriod:  WagePeriodRequest{Type: "monthly"},
			Earnings:    []EarningRequest{{ComponentCode: "base_salary", Amount: "5000"}},
		}, nil

	case "bonus-history":
		if err := h.Store.SaveProfile(r.Context(), tax.EmployeeProfile{
			EmployeeID:   "emp-dana",
			Jurisdiction: "NL",
			Residency:    tax.ResidencyResident,
			FilingStatus: tax.FilingSingle,
		}); err != nil {
			return nil, err
		}
		history := make([]PeriodIncomeRequest, 12)
		for i := range history {
			history[i] = PeriodIncomeRequest{
				PeriodEnd: tax.NewDate(2024, 4, 30).AddMonths(i).String(),
				Income:    "4000",
			}
		}
		return &CalculateRequest{
			EmployeeID:  "emp-dana",
			PeriodStart: "2025-03-01",
			PeriodEnd:   "2025-03-31",
			PayDate:     "2025-03-25",
			WagePeriod:  WagePeriodRequest{Type: "monthly"},
			Earnings:    []EarningRequest{{ComponentCode: "base_salary", Amount: "4000"}},
			Bonus: &BonusRequest{
				Amount:         "6000",
				Type:           "annual_bonus",
				PeriodsCovered: 12,
				IncomeHistory:  history,
			},
		}, nil
	}

	return nil, errUnknownScenario(id)
}

type unknownScenarioError string

func (e unknownScenarioError) Error() string { return "unknown scenario: " + string(e) }

func errUnknownScenario(id string) error { return unknownScenarioError(id) }
