package smt

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/sirupsen/logrus"
)

// UnknownPolicy tells the facade how to collapse an Unknown backend answer
// into a boolean the caller can act on, per spec.md 4.2 ("every call site
// must state whether Unknown collapses to sat-favoured, for pruning
// decisions where a false positive only costs precision, or unsat-favoured,
// for soundness-critical checks where a false positive would corrupt the
// result").
type UnknownPolicy int

const (
	// SatFavoured treats Unknown as Sat: used where failing to prune is
	// safe but wrongly pruning is not (e.g. dropping initial edges with an
	// unsatisfiable guard).
	SatFavoured UnknownPolicy = iota
	// UnsatFavoured treats Unknown as Unsat: used for soundness-critical
	// checks (e.g. the monotonicity check gating backward acceleration).
	UnsatFavoured
)

// Oracle is the facade the rest of the engine depends on. It never
// constructs solver terms on behalf of a caller — every query is a
// complete its.Guard the caller has already built.
type Oracle struct {
	backend Backend
	log     *logrus.Entry
}

// NewOracle wraps backend in a facade that logs every query at debug level.
func NewOracle(backend Backend, log *logrus.Entry) *Oracle {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Oracle{backend: backend, log: log.WithField("component", "smt")}
}

// Default returns a facade over the bundled Fourier-Motzkin backend.
func Default(log *logrus.Entry) *Oracle { return NewOracle(FourierMotzkin{}, log) }

// Check decides whether g is satisfiable, collapsing Unknown per policy.
func (o *Oracle) Check(g its.Guard, timeout time.Duration, policy UnknownPolicy) bool {
	r := o.backend.Check(g, timeout)
	o.log.WithFields(logrus.Fields{
		"backend": o.backend.Name(),
		"logic":   ClassifyLogic(g),
		"result":  r,
	}).Debug("sat query")
	return resolve(r, policy)
}

// ModelOrNil returns a satisfying assignment for g, or nil if g is
// unsatisfiable or the backend answers Unknown.
func (o *Oracle) ModelOrNil(g its.Guard, timeout time.Duration) *Model {
	m, r := o.backend.Model(g, timeout)
	if r != Sat {
		return nil
	}
	return &m
}

// Implies decides whether antecedent entails consequent, i.e. whether
// antecedent /\ not(consequent) is unsatisfiable. consequent must be a
// single atom; spec.md's implication checks (monotonicity, chaining
// satisfiability) are always single-atom entailments.
func (o *Oracle) Implies(antecedent its.Guard, consequent its.Atom, timeout time.Duration, policy UnknownPolicy) bool {
	if consequent.Rel == its.EQ {
		// LHS = RHS holds iff both LHS <= RHS and LHS >= RHS do.
		return o.Implies(antecedent, its.Atom{LHS: consequent.LHS, Rel: its.LE, RHS: consequent.RHS}, timeout, policy) &&
			o.Implies(antecedent, its.Atom{LHS: consequent.LHS, Rel: its.GE, RHS: consequent.RHS}, timeout, policy)
	}
	negated := negateAtom(consequent)
	g := antecedent.Conjoin(its.NewGuard(negated))
	r := o.backend.Check(g, timeout)
	o.log.WithFields(logrus.Fields{
		"backend": o.backend.Name(),
		"result":  r,
	}).Debug("implication query")
	// antecedent implies consequent iff antecedent /\ !consequent is unsat.
	return !resolve(r, invert(policy))
}

// UnsatCore returns a subset of atoms whose conjunction is still
// unsatisfiable, via greedy deletion: drop each atom in turn and keep the
// drop only if the remainder stays unsat. Assumes the full conjunction is
// already known unsat (the caller checked with Check first); if it is not,
// UnsatCore returns atoms unchanged.
func (o *Oracle) UnsatCore(atoms []its.Atom, timeout time.Duration) []its.Atom {
	core := append([]its.Atom(nil), atoms...)
	for i := 0; i < len(core); {
		candidate := append(append([]its.Atom(nil), core[:i]...), core[i+1:]...)
		r := o.backend.Check(its.NewGuard(candidate...), timeout)
		if r == Unsat {
			core = candidate
			continue
		}
		i++
	}
	return core
}

func negateAtom(a its.Atom) its.Atom {
	// not(LHS <= RHS) == LHS > RHS; not(LHS < RHS) == LHS >= RHS; etc.
	switch a.Rel {
	case its.LE:
		return its.Atom{LHS: a.LHS, Rel: its.GT, RHS: a.RHS}
	case its.LT:
		return its.Atom{LHS: a.LHS, Rel: its.GE, RHS: a.RHS}
	case its.GE:
		return its.Atom{LHS: a.LHS, Rel: its.LT, RHS: a.RHS}
	case its.GT:
		return its.Atom{LHS: a.LHS, Rel: its.LE, RHS: a.RHS}
	default: // EQ: its negation (<>) isn't representable as one atom, and
		// LHS < RHS covers only half of it. Implies never reaches this case:
		// it splits an equality consequent into <= and >= first.
		return its.Atom{LHS: a.LHS, Rel: its.LT, RHS: a.RHS}
	}
}

func resolve(r Result, policy UnknownPolicy) bool {
	switch r {
	case Sat:
		return true
	case Unsat:
		return false
	default:
		return policy == SatFavoured
	}
}

func invert(policy UnknownPolicy) UnknownPolicy {
	if policy == SatFavoured {
		return UnsatFavoured
	}
	return SatFavoured
}
