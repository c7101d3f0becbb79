// Package smt implements the SMT oracle facade of spec.md 4.2: a uniform
// sat/model/unsat-core interface the rest of the engine consumes instead of
// ever constructing solver terms directly.
//
// The facade's default backend is a bounded Fourier-Motzkin elimination
// decision procedure over exact rationals (pkg/ratio), shaped after the
// Solver interface in
// other_examples/44540fa4_xDarkicex-logic__sat-interfaces.go.go
// (Solve/SolveWithTimeout/Reset/Name/GetStatistics) — that interface shape,
// not its boolean-SAT algorithm, is what's grounded here; this package
// decides conjunctions of linear rational inequalities, which is what
// spec.md's Farkas and backward-acceleration implication checks need.
package smt

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
)

// Result is the three-valued outcome of a satisfiability query, per
// spec.md 4.2.
type Result int

const (
	Sat Result = iota
	Unsat
	Unknown
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// LogicTag names the fragment a formula falls into, per spec.md 4.2.
type LogicTag int

const (
	// LA is linear arithmetic: every atom is linear in every variable.
	LA LogicTag = iota
	// NA is nonlinear polynomial arithmetic.
	NA
	// ENA is extended nonlinear arithmetic (with exponentials). This
	// engine does not model exponential expressions (see DESIGN.md); no
	// formula the engine builds is ever classified ENA, but the tag is
	// kept so call sites can be written against the full spec.md lattice.
	ENA
)

// ClassifyLogic inspects g's atoms and returns the weakest logic tag that
// covers them.
func ClassifyLogic(g its.Guard) LogicTag {
	for _, a := range g.Atoms {
		diff := expr.Sub(a.LHS, a.RHS)
		for _, v := range a.FreeVars().Slice() {
			if diff.DegreeIn(v) > 1 {
				return NA
			}
		}
	}
	return LA
}

// Backend is the narrow interface a concrete decision procedure implements.
// Every query carries its own timeout, per spec.md 5 ("the only suspension
// points are calls into the SMT oracle and the recurrence oracle; both
// expose a per-call timeout").
type Backend interface {
	// Check decides whether the conjunction g is satisfiable.
	Check(g its.Guard, timeout time.Duration) Result
	// Model returns a satisfying rational assignment for g's free
	// variables. Only meaningful when Check(g, timeout) == Sat.
	Model(g its.Guard, timeout time.Duration) (Model, Result)
	// Name identifies the backend for logging/diagnostics.
	Name() string
}
