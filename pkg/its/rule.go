package its

import (
	"fmt"
	"strings"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/google/uuid"
)

// Location is an opaque control-flow location identifier (spec.md 3).
type Location string

// Branch is one right-hand side of a rule: a target location plus the
// update applied to reach it. A linear rule has exactly one Branch; a
// branching rule has more than one, each paid for by the rule's single
// cost and each applied to an independent copy of the pre-state
// (spec.md 3).
type Branch struct {
	Target Location
	Update Update
}

// Rule is a single ITS transition (spec.md 3): a guarded, costed,
// possibly-branching step from Source to each Branch's Target.
type Rule struct {
	ID     string
	Source Location
	Guard  Guard
	Cost   expr.Expression
	RHS    []Branch

	// Origin names the transformation that produced this rule ("parsed",
	// "accelerated", "chained", "linearized", ...), and Provenance carries
	// the IDs of the rule(s) it was derived from, satisfying spec.md 3
	// invariant 4 ("every rule added during acceleration is labelled with
	// the original rules whose composition it represents").
	Origin     string
	Provenance []string
}

// NewRule allocates a rule with a fresh, stable ID (github.com/google/uuid,
// grounded on leanlp-BTC-coinjoin's direct dependency on that library).
func NewRule(source Location, guard Guard, cost expr.Expression, rhs []Branch) *Rule {
	return &Rule{
		ID:     uuid.NewString(),
		Source: source,
		Guard:  guard,
		Cost:   cost,
		RHS:    rhs,
		Origin: "parsed",
	}
}

// Derived returns a new rule with a fresh ID whose Provenance records the
// given parent rule IDs and whose Origin names the transformation that
// produced it.
func Derived(source Location, guard Guard, cost expr.Expression, rhs []Branch, origin string, parents ...*Rule) *Rule {
	r := NewRule(source, guard, cost, rhs)
	r.Origin = origin
	ids := make([]string, len(parents))
	for i, p := range parents {
		ids[i] = p.ID
	}
	r.Provenance = ids
	return r
}

// IsLinear reports whether r has exactly one right-hand side.
func (r *Rule) IsLinear() bool { return len(r.RHS) == 1 }

// IsBranching reports whether r has more than one right-hand side.
func (r *Rule) IsBranching() bool { return len(r.RHS) > 1 }

// IsSelfLoop reports whether r is a linear rule whose target equals its
// source, the shape the acceleration driver (pkg/driver) looks for.
func (r *Rule) IsSelfLoop() bool {
	return r.IsLinear() && r.RHS[0].Target == r.Source
}

// SingleUpdate returns the update of a linear rule's single branch. Panics
// if r is branching; callers must check IsLinear first.
func (r *Rule) SingleUpdate() Update {
	if !r.IsLinear() {
		panic("its: SingleUpdate called on a branching rule")
	}
	return r.RHS[0].Update
}

// SingleTarget returns the target of a linear rule's single branch.
func (r *Rule) SingleTarget() Location {
	if !r.IsLinear() {
		panic("its: SingleTarget called on a branching rule")
	}
	return r.RHS[0].Target
}

// Targets returns the distinct locations reachable in one step from r.
func (r *Rule) Targets() []Location {
	seen := make(map[Location]bool)
	var out []Location
	for _, b := range r.RHS {
		if !seen[b.Target] {
			seen[b.Target] = true
			out = append(out, b.Target)
		}
	}
	return out
}

// Clone returns a deep-enough copy of r (fresh slice/map headers; leaf
// expr.Expression values are immutable and shared).
func (r *Rule) Clone() *Rule {
	rhs := make([]Branch, len(r.RHS))
	for i, b := range r.RHS {
		rhs[i] = Branch{Target: b.Target, Update: b.Update.Clone()}
	}
	prov := make([]string, len(r.Provenance))
	copy(prov, r.Provenance)
	return &Rule{
		ID:         r.ID,
		Source:     r.Source,
		Guard:      Guard{Atoms: append([]Atom(nil), r.Guard.Atoms...)},
		Cost:       r.Cost,
		RHS:        rhs,
		Origin:     r.Origin,
		Provenance: prov,
	}
}

func (r *Rule) String() string {
	branches := make([]string, len(r.RHS))
	for i, b := range r.RHS {
		branches[i] = fmt.Sprintf("%s(%s)", b.Target, b.Update)
	}
	return fmt.Sprintf("%s -{%s}> %s [%s]", r.Source, r.Cost, strings.Join(branches, " | "), r.Guard)
}
