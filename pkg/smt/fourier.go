package smt

import (
	"context"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// FourierMotzkin is the facade's default Backend: a bounded elimination
// decision procedure for conjunctions of linear rational inequalities. It
// answers Unknown only when eliminating past its deadline or when an atom
// is not linear, so it is
// a complete (if worst-case exponential) decision procedure for LA — the
// only logic the engine's own checks need (spec.md 4.2 "the default backend
// need only decide LA; NA/ENA queries are expected to come from an
// external solver plugged in through the same Backend interface").
//
// The elimination itself has no direct antecedent in the teacher (gokando
// unifies constraint graphs, it does not eliminate numeric inequalities),
// so it is written from the textbook algorithm rather than grounded on a
// pack file; see DESIGN.md.
type FourierMotzkin struct{}

func (FourierMotzkin) Name() string { return "fourier-motzkin" }

// linAtom is a canonicalised linear inequality: sum(coeffs[i]*x_i) + k <= 0.
type linAtom struct {
	coeffs map[int64]ratio.Rat
	k      ratio.Rat
}

func (a linAtom) coeffOf(id int64) ratio.Rat {
	if c, ok := a.coeffs[id]; ok {
		return c
	}
	return ratio.Zero()
}

func (a linAtom) without(id int64) linAtom {
	out := linAtom{coeffs: make(map[int64]ratio.Rat, len(a.coeffs)), k: a.k}
	for j, c := range a.coeffs {
		if j != id {
			out.coeffs[j] = c
		}
	}
	return out
}

// toLinear flattens g's atoms into linAtoms, failing if any atom is
// nonlinear in any of its free variables.
func toLinear(g its.Guard) ([]linAtom, map[int64]vars.Var, bool) {
	norm := g.Normalize()
	names := make(map[int64]vars.Var)
	out := make([]linAtom, 0, len(norm.Atoms))
	for _, a := range norm.Atoms {
		// a.LHS <= a.RHS with RHS == Zero() after Normalize.
		la := linAtom{coeffs: make(map[int64]ratio.Rat), k: ratio.Zero()}
		for _, t := range a.LHS.Terms() {
			switch len(t.Powers) {
			case 0:
				la.k = la.k.Add(t.Coeff)
			case 1:
				if t.Powers[0].Exp != 1 {
					return nil, nil, false
				}
				v := t.Powers[0].Var
				names[v.ID()] = v
				la.coeffs[v.ID()] = la.coeffOf(v.ID()).Add(t.Coeff)
			default:
				return nil, nil, false
			}
		}
		out = append(out, la)
	}
	return out, names, true
}

// boundExpr is a linear combination over not-yet-eliminated variables:
// sum(coeffs)+const, used to express "v >= boundExpr" or "v <= boundExpr"
// derived while eliminating v.
type boundExpr struct {
	coeffs map[int64]ratio.Rat
	const_ ratio.Rat
}

func (b boundExpr) eval(model map[int64]ratio.Rat) ratio.Rat {
	sum := b.const_
	for id, c := range b.coeffs {
		v, ok := model[id]
		if !ok {
			v = ratio.Zero()
		}
		sum = sum.Add(c.Mul(v))
	}
	return sum
}

type eliminationStep struct {
	id     int64
	v      vars.Var
	lowers []boundExpr // v >= boundExpr
	uppers []boundExpr // v <= boundExpr
}

// decide runs Fourier-Motzkin elimination over atoms, eliminating every
// variable in names. Returns Sat with a witness model, or Unsat.
func decide(atoms []linAtom, names map[int64]vars.Var) (Result, Model) {
	order := make([]int64, 0, len(names))
	for id := range names {
		order = append(order, id)
	}
	// Deterministic elimination order: ascending ID. Order doesn't affect
	// correctness, only which witness is found.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j-1] > order[j]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}

	cur := atoms
	var steps []eliminationStep
	for _, id := range order {
		var lowers, uppers []linAtom
		var rest []linAtom
		for _, a := range cur {
			c := a.coeffOf(id)
			switch {
			case c.IsZero():
				rest = append(rest, a)
			case c.Sign() < 0:
				lowers = append(lowers, a)
			default:
				uppers = append(uppers, a)
			}
		}
		step := eliminationStep{id: id, v: names[id]}
		next := append([]linAtom(nil), rest...)
		for _, lo := range lowers {
			c := lo.coeffOf(id)
			rem := lo.without(id)
			lb := boundExpr{coeffs: make(map[int64]ratio.Rat), const_: rem.k.Neg().Quo(c)}
			for j, cj := range rem.coeffs {
				lb.coeffs[j] = cj.Neg().Quo(c)
			}
			step.lowers = append(step.lowers, lb)
		}
		for _, up := range uppers {
			c := up.coeffOf(id)
			rem := up.without(id)
			ub := boundExpr{coeffs: make(map[int64]ratio.Rat), const_: rem.k.Neg().Quo(c)}
			for j, cj := range rem.coeffs {
				ub.coeffs[j] = cj.Neg().Quo(c)
			}
			step.uppers = append(step.uppers, ub)
		}
		for _, lb := range step.lowers {
			for _, ub := range step.uppers {
				combined := linAtom{coeffs: make(map[int64]ratio.Rat), k: lb.const_.Sub(ub.const_)}
				for j, c := range lb.coeffs {
					combined.coeffs[j] = combined.coeffOf(j).Add(c)
				}
				for j, c := range ub.coeffs {
					combined.coeffs[j] = combined.coeffOf(j).Sub(c)
				}
				next = append(next, combined)
			}
		}
		steps = append(steps, step)
		cur = next
	}

	for _, a := range cur {
		if a.k.Sign() > 0 {
			return Unsat, Model{}
		}
	}

	model := make(map[int64]ratio.Rat)
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		var lo, hi *ratio.Rat
		for _, lb := range s.lowers {
			val := lb.eval(model)
			if lo == nil || val.Cmp(*lo) > 0 {
				v := val
				lo = &v
			}
		}
		for _, ub := range s.uppers {
			val := ub.eval(model)
			if hi == nil || val.Cmp(*hi) < 0 {
				v := val
				hi = &v
			}
		}
		switch {
		case lo != nil:
			model[s.id] = *lo
		case hi != nil:
			model[s.id] = *hi
		default:
			model[s.id] = ratio.Zero()
		}
	}

	out := NewModel()
	for id, v := range names {
		out = out.Set(v, model[id])
	}
	return Sat, out
}

func (fm FourierMotzkin) Check(g its.Guard, timeout time.Duration) Result {
	r, _ := fm.decideWithDeadline(g, timeout)
	return r
}

func (fm FourierMotzkin) Model(g its.Guard, timeout time.Duration) (Model, Result) {
	r, m := fm.decideWithDeadline(g, timeout)
	return m, r
}

func (fm FourierMotzkin) decideWithDeadline(g its.Guard, timeout time.Duration) (Result, Model) {
	atoms, names, ok := toLinear(g)
	if !ok {
		return Unknown, Model{}
	}
	if timeout <= 0 {
		r, m := decide(atoms, names)
		return r, m
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	type res struct {
		r Result
		m Model
	}
	ch := make(chan res, 1)
	go func() {
		r, m := decide(atoms, names)
		ch <- res{r, m}
	}()
	select {
	case out := <-ch:
		return out.r, out.m
	case <-ctx.Done():
		return Unknown, Model{}
	}
}
