// Command loatctl runs the acceleration engine end to end over a single
// ITS file: load, simplify, accelerate every self-loop (or search for a
// nontermination witness under -nonterm), chain what's left, and print the
// derived verdict with its proof sketch (spec.md 6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aprove-developers/loat-accel/pkg/asymptotic"
	"github.com/aprove-developers/loat-accel/pkg/chain"
	"github.com/aprove-developers/loat-accel/pkg/config"
	"github.com/aprove-developers/loat-accel/pkg/driver"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/simplify"
	"github.com/aprove-developers/loat-accel/pkg/smt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		inputPath   = flag.String("input", "", "path to a Format-B ITS file (default: stdin)")
		configPath  = flag.String("config", "", "path to a YAML config.Options override")
		softAfter   = flag.Duration("soft-deadline", 10*time.Second, "stop starting new acceleration work after this long")
		hardAfter   = flag.Duration("hard-deadline", 30*time.Second, "abort any in-flight attempt after this long")
		smtTimeout  = flag.Duration("smt-timeout", 500*time.Millisecond, "per-query timeout for the SMT oracle")
		maxWorkers  = flag.Int("max-workers", 4, "worker pool size for concurrent self-loop acceleration")
		maxRounds   = flag.Int("max-rounds", 20, "fixpoint round cap for the accelerate/chain loop")
		nonTerm     = flag.Bool("nonterm", false, "search for nontermination witnesses instead of finite bounds")
		verbose     = flag.Bool("verbose", false, "log SMT oracle queries to stderr at debug level")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	entry := logrus.NewEntry(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loatctl: loading config: %v\n", err)
		return 1
	}
	if *nonTerm {
		cfg.NonTermMode = true
	}

	in := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, errors.Wrapf(err, "loatctl: opening %q", *inputPath))
			return 1
		}
		defer f.Close()
		in = f
	}

	g, err := loadITS(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "loatctl: parsing input"))
		return 1
	}

	oracle := smt.Default(entry)
	d := driver.New(oracle, cfg, *smtTimeout, *maxWorkers)
	defer d.Shutdown()

	dl := driver.Deadlines{
		Soft: time.Now().Add(*softAfter),
		Hard: time.Now().Add(*hardAfter),
	}

	if cfg.NonTermMode {
		if verdict, ok := searchNonterm(d, g, dl); ok {
			printVerdict(d, asymptotic.Nonterm(), verdict)
			return 0
		}
		printVerdict(d, asymptotic.Unknown(), nil)
		return 0
	}

	runFixpoint(context.Background(), d, g, dl, *maxRounds)

	verdict := finalVerdict(g)
	printVerdict(d, verdict, nil)
	return 0
}

// estimator ranks a rule for pkg/simplify.PruneParallel by the same
// asymptotic complexity computation the driver uses to pick which
// accelerated branch to keep.
func estimator(r *its.Rule) int64 { return driver.ComplexityOf(r.Cost).Rank() }

func simplifyPass(g *its.ITS, d *driver.Driver) {
	simplify.RemoveUnreachable(g)
	simplify.RemoveConstLeaves(g)
	simplify.DedupRules(g)
	simplify.RemoveUnsatInitialEdges(g, d.Oracle, d.Timeout)
	simplify.PruneParallel(g, estimator, d.Config.MaxParallelRules)
}

// runFixpoint repeatedly accelerates every self-loop still standing,
// nests what accelerated against its siblings, folds the result back into
// the graph, simplifies, and chains the remaining linear paths, until a
// round changes nothing, the round cap is hit, or the deadline expires
// (spec.md 4.9/4.8 in alternation, spec.md 5's two-tier deadline).
func runFixpoint(ctx context.Context, d *driver.Driver, g *its.ITS, dl driver.Deadlines, maxRounds int) {
	simplifyPass(g, d)

	for round := 0; round < maxRounds; round++ {
		if dl.SoftExpired() {
			return
		}

		var selfLoops []*its.Rule
		for _, loc := range g.Locations() {
			for _, r := range g.RulesFrom(loc) {
				if r.IsSelfLoop() || r.IsBranching() {
					selfLoops = append(selfLoops, r)
				}
			}
		}
		if len(selfLoops) == 0 {
			break
		}

		outcomes := d.AccelerateAll(ctx, selfLoops, dl)
		changed := false
		var accelerated []*its.Rule
		for i, out := range outcomes {
			if out.State == driver.FinalFail {
				continue
			}
			g.RemoveRule(selfLoops[i].ID)
			for _, r := range out.Rules {
				g.AddRule(r)
				accelerated = append(accelerated, r)
			}
			changed = true
		}

		if d.Config.TryNesting && len(accelerated) > 1 {
			for _, nested := range d.Nest(accelerated, len(accelerated)*len(accelerated)) {
				g.AddRule(nested)
				changed = true
			}
		}

		simplifyPass(g, d)
		changed = chainPass(g, d) || changed

		if !changed {
			break
		}
	}
}

// chainPass contracts linear chains, folds branching chains, and
// eliminates locations with no self-loop of their own (spec.md 4.7),
// reporting whether it changed anything.
func chainPass(g *its.ITS, d *driver.Driver) bool {
	changed := false
	for _, loc := range g.Locations() {
		if loc == g.Initial {
			continue
		}
		if hasSelfLoop(g, loc) {
			continue
		}
		if chain.ContractLinearPath(g, loc, d.Oracle, d.Timeout, d.Config.ChainCheckSat) {
			changed = true
			continue
		}
		incoming := g.RulesInto(loc)
		for _, r1 := range incoming {
			changed = chain.BranchChain(g, r1, loc, d.Oracle, d.Timeout, d.Config.ChainCheckSat) || changed
		}
		changed = chain.EliminateLocation(g, loc, d.Oracle, d.Timeout, d.Config.ChainCheckSat) || changed
	}
	return changed
}

func hasSelfLoop(g *its.ITS, loc its.Location) bool {
	for _, r := range g.RulesFrom(loc) {
		if r.IsSelfLoop() || r.IsBranching() {
			for _, t := range r.Targets() {
				if t == loc {
					return true
				}
			}
		}
	}
	return false
}

// searchNonterm tries every self-loop reachable from the initial location
// for a recurrent set, returning the first one found.
func searchNonterm(d *driver.Driver, g *its.ITS, dl driver.Deadlines) (*its.Rule, bool) {
	simplify.RemoveUnreachable(g)
	for _, loc := range g.Locations() {
		for _, r := range g.RulesFrom(loc) {
			if dl.HardExpired() || dl.SoftExpired() {
				return nil, false
			}
			if !r.IsSelfLoop() {
				continue
			}
			if _, ok := d.FindRecurrentSet(r, dl); ok {
				return r, true
			}
		}
	}
	return nil, false
}

// finalVerdict joins the complexity of every rule still reachable from
// g.Initial: the highest-ranked cost any surviving path can incur.
func finalVerdict(g *its.ITS) asymptotic.Complexity {
	best := asymptotic.Unknown()
	for i, r := range g.Rules() {
		c := driver.ComplexityOf(r.Cost)
		if i == 0 {
			best = c
			continue
		}
		best = asymptotic.Join(best, c)
	}
	return best
}

func printVerdict(d *driver.Driver, verdict asymptotic.Complexity, witness *its.Rule) {
	fmt.Printf("verdict: %s\n", verdict)
	if witness != nil {
		fmt.Printf("witness: %s\n  guard: %s\n  cost:  %s\n", witness.Source, witness.Guard, witness.Cost)
	}
	fmt.Print(d.Sketch.String())
}
