// Package proof accumulates the human-readable proof sketch spec.md 6
// requires alongside a verdict: an ordered list of textual transformation
// steps (simplification, chaining, each acceleration attempt with its
// witness, pruning decisions).
//
// Grounded on original_source/src/itrs/recursiongraph.cpp's proof-output
// style: every stage of the main loop (pruning, contraction, location
// elimination, branch chaining, self-loop acceleration) logs a labelled
// textual snapshot as it runs, rather than reconstructing the narrative
// after the fact. Step labelling uses github.com/google/uuid, the same
// dependency leanlp-BTC-coinjoin's heuristics engine uses to label its own
// generated edges. A rule's Provenance (pkg/its) lists its parent rules'
// IDs, not step IDs; nothing links a rule to the step that produced it.
package proof

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Step is one entry in a proof sketch: a labelled, textual description of
// a single transformation applied during the run.
type Step struct {
	ID   string
	Kind string
	Text string
}

// Sketch is an ordered, append-only accumulation of proof Steps.
type Sketch struct {
	steps []Step
}

// New returns an empty proof sketch.
func New() *Sketch { return &Sketch{} }

// Add appends a step of the given kind (e.g. "simplify", "chain",
// "accelerate", "prune") with the given textual description, and returns
// the fresh step's ID.
func (s *Sketch) Add(kind, text string) string {
	id := uuid.NewString()
	s.steps = append(s.steps, Step{ID: id, Kind: kind, Text: text})
	return id
}

// Addf is Add with fmt.Sprintf-style formatting of text.
func (s *Sketch) Addf(kind, format string, args ...any) string {
	return s.Add(kind, fmt.Sprintf(format, args...))
}

// Steps returns every step recorded so far, in the order Add was called.
func (s *Sketch) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// String renders the sketch as a flat, ordered text block, one line per
// step, matching spec.md 6's "textual and human-readable, not
// machine-checkable" requirement.
func (s *Sketch) String() string {
	var b strings.Builder
	for _, step := range s.steps {
		fmt.Fprintf(&b, "[%s] %s\n", step.Kind, step.Text)
	}
	return b.String()
}
