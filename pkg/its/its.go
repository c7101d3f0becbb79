package its

// ITS is an Integer Transition System (spec.md 3): a set of locations, a
// distinguished initial location, and a set of rules. Locations are opaque
// identifiers recorded as they're first seen; the rule list is the single
// source of truth for the graph's edges (pkg/simplify and pkg/chain
// maintain it, adding and removing rules as the control-flow graph is
// simplified and chained).
type ITS struct {
	Initial  Location
	locs     map[Location]bool
	locOrder []Location
	rules    map[string]*Rule
	ruleOrd  []string
}

// New returns an empty ITS rooted at initial.
func New(initial Location) *ITS {
	its := &ITS{
		Initial: initial,
		locs:    make(map[Location]bool),
		rules:   make(map[string]*Rule),
	}
	its.addLocation(initial)
	return its
}

func (s *ITS) addLocation(l Location) {
	if !s.locs[l] {
		s.locs[l] = true
		s.locOrder = append(s.locOrder, l)
	}
}

// Locations returns every location in insertion order.
func (s *ITS) Locations() []Location {
	out := make([]Location, len(s.locOrder))
	copy(out, s.locOrder)
	return out
}

// HasLocation reports whether l has been registered.
func (s *ITS) HasLocation(l Location) bool { return s.locs[l] }

// AddRule inserts r, registering its source and target locations.
func (s *ITS) AddRule(r *Rule) {
	s.addLocation(r.Source)
	for _, t := range r.Targets() {
		s.addLocation(t)
	}
	if _, exists := s.rules[r.ID]; !exists {
		s.ruleOrd = append(s.ruleOrd, r.ID)
	}
	s.rules[r.ID] = r
}

// RemoveRule deletes the rule with the given ID, if present.
func (s *ITS) RemoveRule(id string) {
	if _, ok := s.rules[id]; !ok {
		return
	}
	delete(s.rules, id)
	for i, rid := range s.ruleOrd {
		if rid == id {
			s.ruleOrd = append(s.ruleOrd[:i], s.ruleOrd[i+1:]...)
			break
		}
	}
}

// Rule looks up a rule by ID.
func (s *ITS) Rule(id string) (*Rule, bool) {
	r, ok := s.rules[id]
	return r, ok
}

// Rules returns every rule, in insertion order.
func (s *ITS) Rules() []*Rule {
	out := make([]*Rule, len(s.ruleOrd))
	for i, id := range s.ruleOrd {
		out[i] = s.rules[id]
	}
	return out
}

// RulesFrom returns every rule whose source is l, in insertion order.
func (s *ITS) RulesFrom(l Location) []*Rule {
	var out []*Rule
	for _, id := range s.ruleOrd {
		if r := s.rules[id]; r.Source == l {
			out = append(out, r)
		}
	}
	return out
}

// RulesInto returns every rule with a branch whose target is l.
func (s *ITS) RulesInto(l Location) []*Rule {
	var out []*Rule
	for _, id := range s.ruleOrd {
		r := s.rules[id]
		for _, b := range r.RHS {
			if b.Target == l {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// RemoveLocation drops l from the location set. Callers are expected to
// have already removed every rule touching l (pkg/chain's location
// elimination does so as part of composing incoming with outgoing rules).
func (s *ITS) RemoveLocation(l Location) {
	if !s.locs[l] {
		return
	}
	delete(s.locs, l)
	for i, loc := range s.locOrder {
		if loc == l {
			s.locOrder = append(s.locOrder[:i], s.locOrder[i+1:]...)
			break
		}
	}
}

// Clone returns an independent copy of the ITS (rules are re-registered,
// but Rule values themselves are shared since they are treated as
// immutable once constructed — every transformation in pkg/chain,
// pkg/backward, and pkg/simplify builds a new *Rule rather than mutating
// one in place).
func (s *ITS) Clone() *ITS {
	out := New(s.Initial)
	for _, l := range s.locOrder {
		out.addLocation(l)
	}
	for _, id := range s.ruleOrd {
		out.AddRule(s.rules[id])
	}
	return out
}
