package smt

import (
	"sort"

	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// Model is a satisfying rational assignment, keyed by variable ID.
type Model struct {
	values map[int64]ratio.Rat
	named  map[int64]vars.Var
}

// NewModel returns an empty model.
func NewModel() Model {
	return Model{values: make(map[int64]ratio.Rat), named: make(map[int64]vars.Var)}
}

// Set records v's value in m, returning m for chaining.
func (m Model) Set(v vars.Var, val ratio.Rat) Model {
	m.values[v.ID()] = val
	m.named[v.ID()] = v
	return m
}

// Get returns v's assigned value, or (Zero, false) if v is unconstrained in
// the model (the decision procedure only assigns variables that actually
// appeared in the formula it decided).
func (m Model) Get(v vars.Var) (ratio.Rat, bool) {
	val, ok := m.values[v.ID()]
	return val, ok
}

// Vars returns every variable the model assigns, in ID order for
// determinism.
func (m Model) Vars() []vars.Var {
	ids := make([]int64, 0, len(m.named))
	for id := range m.named {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]vars.Var, len(ids))
	for i, id := range ids {
		out[i] = m.named[id]
	}
	return out
}
