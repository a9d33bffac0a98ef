package payroll_test

import (
	"errors"
	"testing"

	"github.com/warp/payroll-engine/payroll"
)

func comp(code string, seq int, deps ...string) payroll.Component {
	return payroll.Component{
		Code:          code,
		Name:          code,
		Category:      payroll.CategoryEarning,
		CalcType:      payroll.CalcFixed,
		SequenceOrder: seq,
		DependsOn:     deps,
	}
}

func codes(components []payroll.Component) []string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.Code
	}
	return out
}

func indexOf(list []string, code string) int {
	for i, c := range list {
		if c == code {
			return i
		}
	}
	return -1
}

// =============================================================================
// ORDERING TESTS
// =============================================================================

func TestSortComponents_RespectsDependencies(t *testing.T) {
	// GIVEN: income_tax depends on pension, pension on base_salary
	// WHEN: Sorting with the dependents listed first
	// THEN: Every component comes after all of its dependencies

	input := []payroll.Component{
		comp("income_tax", 60, "pension"),
		comp("pension", 40, "base_salary"),
		comp("base_salary", 10),
	}
	ordered, err := payroll.SortComponents(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := codes(ordered)
	if indexOf(got, "base_salary") > indexOf(got, "pension") {
		t.Errorf("pension before its dependency base_salary: %v", got)
	}
	if indexOf(got, "pension") > indexOf(got, "income_tax") {
		t.Errorf("income_tax before its dependency pension: %v", got)
	}
}

func TestSortComponents_DeterministicTieBreak(t *testing.T) {
	// Among unconstrained components, ascending SequenceOrder decides,
	// then code. The result must not depend on input order - paycheck
	// idempotence relies on this.
	a := []payroll.Component{
		comp("commission", 30),
		comp("base_salary", 10),
		comp("bonus", 30), // same sequence as commission: code breaks the tie
		comp("overtime", 20),
	}
	b := []payroll.Component{a[2], a[3], a[0], a[1]}

	orderedA, err := payroll.SortComponents(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	orderedB, err := payroll.SortComponents(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"base_salary", "overtime", "bonus", "commission"}
	for i, code := range want {
		if orderedA[i].Code != code {
			t.Fatalf("order A = %v, want %v", codes(orderedA), want)
		}
		if orderedB[i].Code != code {
			t.Fatalf("order B = %v, want %v (input order must not matter)", codes(orderedB), want)
		}
	}
}

func TestSortComponents_SequenceReleasedAfterDependency(t *testing.T) {
	// A low-sequence component blocked by a dependency still waits for it.
	input := []payroll.Component{
		comp("blocked", 1, "late"),
		comp("late", 99),
	}
	ordered, err := payroll.SortComponents(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ordered[0].Code != "late" || ordered[1].Code != "blocked" {
		t.Errorf("order = %v, want [late blocked]", codes(ordered))
	}
}

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

func TestSortComponents_CycleFailsWholeConfiguration(t *testing.T) {
	input := []payroll.Component{
		comp("a", 10, "b"),
		comp("b", 20, "c"),
		comp("c", 30, "a"),
		comp("standalone", 40),
	}
	_, err := payroll.SortComponents(input)
	if !errors.Is(err, payroll.ErrComponentDependencyCycle) {
		t.Fatalf("expected ErrComponentDependencyCycle, got %v", err)
	}

	var cycleErr *payroll.ComponentDependencyCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatal("expected *ComponentDependencyCycleError")
	}
	if len(cycleErr.Components) != 3 {
		t.Errorf("cycle members = %v, want the 3 cyclic codes", cycleErr.Components)
	}
}

func TestSortComponents_UnknownDependency(t *testing.T) {
	input := []payroll.Component{
		comp("pension", 40, "base_salary"), // base_salary not configured
	}
	_, err := payroll.SortComponents(input)
	if !errors.Is(err, payroll.ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}

	var depErr *payroll.UnknownDependencyError
	if !errors.As(err, &depErr) {
		t.Fatal("expected *UnknownDependencyError")
	}
	if depErr.Code != "pension" || depErr.DependsOn != "base_salary" {
		t.Errorf("got %s -> %s, want pension -> base_salary", depErr.Code, depErr.DependsOn)
	}
}
