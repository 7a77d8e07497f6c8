package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
	"github.com/roach88/gaplus/internal/relalg"
)

// DefaultMaxIterations is the default iteration budget of a run.
const DefaultMaxIterations = 1000

// DefaultWorkers is the default number of rules evaluated concurrently.
const DefaultWorkers = 4

// Runner drives a compiled rule set to its fixpoint over a fact store.
//
// Thread-safety: Run must not be called concurrently on the same Runner.
type Runner struct {
	rules         []compiler.Compiled
	store         facts.Store
	agent         relalg.Agent
	logger        *slog.Logger
	clock         *Clock
	workers       int
	maxIterations int
}

// RunnerOption allows configuration of runner parameters.
type RunnerOption func(*Runner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithWorkers sets how many zones and update groups run at once.
// Values below 1 mean 1.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = max(n, 1)
	}
}

// WithMaxIterations sets the iteration budget.
//
// Default: 1000 iterations (DefaultMaxIterations)
func WithMaxIterations(n int) RunnerOption {
	return func(r *Runner) {
		r.maxIterations = n
	}
}

// WithAgent replaces the relational agent. Default: relalg.NewCPU().
func WithAgent(a relalg.Agent) RunnerOption {
	return func(r *Runner) {
		r.agent = a
	}
}

// NewRunner creates a Runner. rules must come from compiler.Driver.PreRun,
// so that rules[i].Index == i.
func NewRunner(rules []compiler.Compiled, st facts.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		rules:         rules,
		store:         st,
		agent:         relalg.NewCPU(),
		logger:        slog.Default(),
		clock:         NewClock(),
		workers:       DefaultWorkers,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report summarises a run. Added, Changed and Iterations are reproducible
// only with one worker; the fixpoint is the same for any worker count.
type Report struct {
	Iterations  int           `json:"iterations"`
	Converged   bool          `json:"converged"`
	Added       int           `json:"added"`
	Changed     int           `json:"changed"`
	Evaluations int           `json:"evaluations"` // rule evaluations across all iterations
	Duration    time.Duration `json:"duration_ns"`
}

// Run iterates until no rule adds or changes a fact. It returns a
// RuntimeError when a rule fails or the iteration budget runs out; the
// report then covers the iterations completed so far. The context is
// checked between iterations.
func (r *Runner) Run(ctx context.Context) (report Report, err error) {
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	r.clock.Reset()
	budget := NewIterationBudget(r.maxIterations)
	results := make([]ir.Result, len(r.rules))
	zones := make([]ir.Relation, len(r.rules))

	r.logger.Info("fixpoint starting",
		"rules", len(r.rules),
		"workers", r.workers,
		"max_iterations", r.maxIterations,
	)

	var changed map[string]bool // nil: first iteration, schedule everything
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("fixpoint stopping: context cancelled", "iteration", report.Iterations)
			return report, err
		}
		iteration := r.clock.Next()
		if err := budget.Check(); err != nil {
			r.logger.Error("iteration budget exhausted",
				"iteration", iteration,
				"limit", r.maxIterations,
				"event", "iterations_exceeded",
			)
			return report, err
		}

		scheduled := r.schedule(changed)
		clear(results)

		if err := r.computeZones(ctx, iteration, scheduled, zones); err != nil {
			return report, err
		}
		if err := r.applyUpdates(ctx, iteration, scheduled, zones, results); err != nil {
			return report, err
		}
		clear(zones)

		changed = make(map[string]bool)
		var added, updated int
		for _, c := range scheduled {
			res := results[c.Index]
			added += res.Added
			updated += res.Changed
			if !res.IsZero() {
				changed[c.Rule.Header.Predicate] = true
			}
		}

		report.Iterations = iteration
		report.Added += added
		report.Changed += updated
		report.Evaluations += len(scheduled)

		r.logger.Debug("iteration done",
			"iteration", iteration,
			"scheduled", len(scheduled),
			"added", added,
			"changed", updated,
		)

		if len(changed) == 0 {
			report.Converged = true
			r.logger.Info("fixpoint reached",
				"iterations", report.Iterations,
				"added", report.Added,
				"changed", report.Changed,
			)
			return report, nil
		}
	}
}

// schedule returns the rules to evaluate this iteration, in rule order.
func (r *Runner) schedule(changed map[string]bool) []compiler.Compiled {
	if changed == nil {
		return r.rules
	}
	var out []compiler.Compiled
	for _, c := range r.rules {
		for _, p := range c.Rule.Dependent {
			if changed[p] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// computeZones fills zones[c.Index] for every scheduled rule.
func (r *Runner) computeZones(ctx context.Context, iteration int, scheduled []compiler.Compiled, zones []ir.Relation) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, c := range scheduled {
		g.Go(func() error {
			zone, err := DefinitionZone(gctx, c.Rule, r.store, r.agent)
			if err != nil {
				r.logger.Error("definition zone failed",
					"rule", c.Rule.Text,
					"iteration", iteration,
					"error", err,
				)
				return NewExecutionError(c.Rule.Text, iteration, err)
			}
			zones[c.Index] = zone
			return nil
		})
	}
	return g.Wait()
}

// applyUpdates runs the update procedures, one goroutine per head
// predicate. Rules sharing a head run in rule order.
//
// Groups read each other's head weights while they write, so with more
// than one worker the per-iteration added/changed split depends on
// scheduling. The fixpoint does not. Counts are deterministic only at
// workers=1.
func (r *Runner) applyUpdates(ctx context.Context, iteration int, scheduled []compiler.Compiled, zones []ir.Relation, results []ir.Result) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, group := range groupByHead(scheduled) {
		g.Go(func() error {
			for _, c := range group {
				if err := c.Update(r.store, zones[c.Index], results); err != nil {
					r.logger.Error("update failed",
						"rule", c.Rule.Text,
						"iteration", iteration,
						"error", err,
					)
					return NewExecutionError(c.Rule.Text, iteration, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// groupByHead partitions rules by head predicate, groups in order of first
// appearance.
func groupByHead(rules []compiler.Compiled) [][]compiler.Compiled {
	index := make(map[string]int)
	var groups [][]compiler.Compiled
	for _, c := range rules {
		head := c.Rule.Header.Predicate
		i, ok := index[head]
		if !ok {
			i = len(groups)
			index[head] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}
