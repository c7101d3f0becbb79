// Package config carries the engine's tunable options (spec.md 6) and an
// optional YAML-file override, following the option-set shape of
// original_source/src/config.cpp/config.hpp while replacing its compiled-in
// globals with an explicit, loadable struct.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PolyStrategy names a polynomial-limit strategy (spec.md 6 PolyStrategy),
// mirroring the original's Smt/Calculus/SmtAndCalculus
// PolynomialLimitProblemStrategy trio. No package outside pkg/config reads
// it; pkg/asymptotic takes no strategy.
type PolyStrategy string

const (
	PolyStrategySMT      PolyStrategy = "smt-only"
	PolyStrategyCalculus PolyStrategy = "calculus-only"
	PolyStrategyBoth     PolyStrategy = "both"
)

// Options holds every named configuration flag from spec.md 6, with
// defaults matching original_source/src/config.cpp where that file gives
// one.
type Options struct {
	// MaxUpperboundsForPropagation caps instantiating the backward
	// acceleration iteration counter by upper bounds; above the cap the
	// counter is kept symbolic (spec.md 4.6, 6).
	MaxUpperboundsForPropagation int `yaml:"maxUpperboundsForPropagation"`

	// SimplifyRulesBefore makes the driver drop, before accelerating a
	// self-loop, every guard atom the rest of its guard already implies.
	SimplifyRulesBefore bool `yaml:"simplifyRulesBefore"`

	// PartialDeletionHeuristic retries metering on a branching rule by
	// deleting individual branches, one at a time, when metering the
	// whole rule fails.
	PartialDeletionHeuristic bool `yaml:"partialDeletionHeuristic"`

	// TryNesting attempts nesting accelerated self-loops inside one
	// another.
	TryNesting bool `yaml:"tryNesting"`

	// ChainCheckSat checks satisfiability of every chained guard before
	// keeping the composed rule.
	ChainCheckSat bool `yaml:"chainCheckSat"`

	// KeepIncomingInChainAccelerated is loaded and carried here only: no
	// package outside pkg/config reads it, so its value does not change
	// how incoming edges of an accelerated rule are handled.
	KeepIncomingInChainAccelerated bool `yaml:"keepIncomingInChainAccelerated"`

	// MaxParallelRules is pkg/simplify's parallel-rule pruning threshold.
	MaxParallelRules int `yaml:"maxParallelRules"`

	// AllowLinearization permits pkg/linearize to run at all.
	AllowLinearization bool `yaml:"allowLinearization"`

	// TempVarInstantiationMaxBounds caps temp-variable instantiations per
	// variable in farkas.SynthesizeWithHeuristics: each temporary is tried
	// at the integers 0 through this cap.
	TempVarInstantiationMaxBounds int `yaml:"tempVarInstantiationMaxBounds"`

	// PolyStrategy records a polynomial-limit strategy; no package outside
	// pkg/config reads it.
	PolyStrategy PolyStrategy `yaml:"polyStrategy"`

	// NonTermMode, when set, makes the driver search for nontermination
	// witnesses (pkg/driver's recurrent-set search) instead of finite
	// bounds.
	NonTermMode bool `yaml:"nonTermMode"`
}

// Default returns the option set the engine runs with absent an override
// file, matching original_source/src/config.cpp's compiled-in defaults
// where it states one, and a conservative choice otherwise.
func Default() Options {
	return Options{
		MaxUpperboundsForPropagation:   3,
		SimplifyRulesBefore:            true,
		PartialDeletionHeuristic:       true,
		TryNesting:                     true,
		ChainCheckSat:                  true,
		KeepIncomingInChainAccelerated: false,
		MaxParallelRules:               3,
		AllowLinearization:             true,
		TempVarInstantiationMaxBounds:  3,
		PolyStrategy:                   PolyStrategyBoth,
		NonTermMode:                    false,
	}
}

// Load reads a YAML override file on top of Default; a field absent from
// the file keeps its default value. Returns Default unchanged if path is
// empty.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "reading config override %q", path)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.Wrapf(err, "parsing config override %q", path)
	}
	return opts, nil
}
