package farkas

import (
	"time"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// SynthesizeWithHeuristics wraps Synthesize with spec.md 4.4's
// temp-var-instantiation fallback: on Unsat or ConflictVar, every
// temporary variable free in guard is tried at each integer 0..tempVarCap
// in turn, and the first substitution that makes Synthesize succeed wins.
// Guard strengthening proper (conjoining invariants propagated from
// predecessor rules) needs the whole ITS, not just this rule, so it is not
// implemented here — see DESIGN.md; M2/M3 already use the rule's full,
// unreduced guard as their premise, which is the strengthening available
// at this layer.
func SynthesizeWithHeuristics(oracle *smt.Oracle, guard its.Guard, u its.Update, timeout time.Duration, tempVarCap int) Result {
	res := Synthesize(oracle, guard, u, timeout)
	if res.Kind == Success {
		return res
	}
	if res.Kind != Unsat && res.Kind != ConflictVar {
		return res
	}

	for _, tv := range tempVars(guard) {
		for k := int64(0); k <= int64(tempVarCap); k++ {
			s := expr.NewSubst()
			s.Set(tv, expr.ConstInt(k))
			candidate := Synthesize(oracle, guard.SubstVar(s), substUpdate(u, s), timeout)
			if candidate.Kind == Success {
				return candidate
			}
		}
	}
	return res
}

func tempVars(g its.Guard) []vars.Var {
	var out []vars.Var
	for _, v := range g.FreeVars().Slice() {
		if v.IsTemp() {
			out = append(out, v)
		}
	}
	return out
}

func substUpdate(u its.Update, s expr.Subst) its.Update {
	out := its.NewUpdate()
	for _, v := range u.Domain() {
		out = out.Set(v, u.Apply(v).SubstVar(s))
	}
	return out
}
