package main

import (
	"strings"
	"testing"

	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

func TestLoadITSParsesSimpleSelfLoop(t *testing.T) {
	src := `
# a textbook counting loop
initial: l0
rule: l0 -> l0 [x <= 9] cost 1 : x := x + 1
`
	g, err := loadITS(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Initial != its.Location("l0") {
		t.Fatalf("expected initial location l0, got %s", g.Initial)
	}
	rules := g.Rules()
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if !r.IsSelfLoop() {
		t.Error("expected a self-loop rule")
	}
	if len(r.Guard.Atoms) != 1 {
		t.Fatalf("expected 1 guard atom, got %d", len(r.Guard.Atoms))
	}
}

func TestLoadITSDefaultsGuardAndCostAndUpdate(t *testing.T) {
	src := `
initial: l0
rule: l0 -> l1
`
	g, err := loadITS(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rules := g.Rules()
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if !r.Guard.IsEmpty() {
		t.Errorf("expected a defaulted true guard, got %s", r.Guard)
	}
	if _, ok := r.Cost.IsConst(); !ok {
		t.Errorf("expected a defaulted constant cost, got %s", r.Cost)
	}
	if len(r.SingleUpdate().Domain()) != 0 {
		t.Errorf("expected a defaulted identity update, got %v", r.SingleUpdate().Domain())
	}
}

func TestLoadITSParsesMultipleRulesAndSharesVariables(t *testing.T) {
	src := `
initial: l0
rule: l0 -> l1 [x > 0] cost 1 : x := x - 1
rule: l1 -> l0 [x >= 0]
`
	g, err := loadITS(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Rules()) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(g.Rules()))
	}
	if len(g.Locations()) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(g.Locations()))
	}
	x0 := g.Rules()[0].Guard.FreeVars().Slice()
	x1 := g.Rules()[1].Guard.FreeVars().Slice()
	if len(x0) != 1 || len(x1) != 1 || !x0[0].Equal(x1[0]) {
		t.Errorf("expected both rules to share the variable x, got %v and %v", x0, x1)
	}
}

func TestLoadITSRejectsMissingInitial(t *testing.T) {
	src := "rule: l0 -> l0\n"
	if _, err := loadITS(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error for a missing initial directive")
	}
}

func TestLoadITSRejectsMalformedRule(t *testing.T) {
	src := "initial: l0\nrule: l0 l1\n"
	if _, err := loadITS(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error for a rule with no \"->\"")
	}
}

func TestLoadITSRejectsUnknownDirective(t *testing.T) {
	src := "initial: l0\nfoo: bar\n"
	if _, err := loadITS(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error for an unrecognised directive")
	}
}

func TestParseExprHandlesArithmeticAndRationals(t *testing.T) {
	names := make(map[string]vars.Var)
	e, err := parseExpr("2*x + 3/2 - y^2", names)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Terms()) == 0 {
		t.Fatal("expected a non-empty expression")
	}
	if _, ok := names["x"]; !ok {
		t.Error("expected x to be registered as a variable")
	}
	if _, ok := names["y"]; !ok {
		t.Error("expected y to be registered as a variable")
	}
}
