package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/reconf/pkg/constraint"
	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/log"
	"github.com/cuemby/reconf/pkg/metrics"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

// Config holds the planner settings
type Config struct {
	// MaxTime bounds the duration of a plan
	MaxTime int `yaml:"maxTime"`

	// Timeout bounds the time spent searching; zero disables it
	Timeout time.Duration `yaml:"timeout"`

	// NodeLimit caps the number of search decisions; zero disables it
	NodeLimit int `yaml:"nodeLimit"`

	Relocation reconf.RelocationPolicy `yaml:"relocation"`
}

// DefaultConfig returns the default planner settings
func DefaultConfig() Config {
	return Config{
		MaxTime:    reconf.DefaultMaxTime,
		Timeout:    30 * time.Second,
		Relocation: reconf.RelocationAuto,
	}
}

// Result is the outcome of a planning request. Plan is nil when the
// request is not feasible.
type Result struct {
	Plan     *plan.Plan
	Feasible bool

	// ProblemID correlates the result with the problem logs
	ProblemID string

	// Misplaced lists the VMs of the source model violating a constraint
	Misplaced []types.VMID

	Stats   csp.Stats
	Elapsed time.Duration
}

// Planner computes reconfiguration plans
type Planner struct {
	cfg       Config
	durations *duration.Evaluators
	logger    zerolog.Logger
}

// New creates a planner. A nil registry evaluates every action to 1.
func New(cfg Config, durations *duration.Evaluators) *Planner {
	if durations == nil {
		durations = duration.Defaults()
	}
	if cfg.MaxTime == 0 {
		cfg.MaxTime = reconf.DefaultMaxTime
	}
	return &Planner{
		cfg:       cfg,
		durations: durations,
		logger:    log.WithComponent("planner"),
	}
}

// Plan computes a plan bringing the VMs of src to the requested states
// while satisfying the constraints
func (p *Planner) Plan(ctx context.Context, src *types.Model, req reconf.Request, cs ...reconf.Constraint) (*Result, error) {
	timer := metrics.NewTimer()
	res := &Result{Misplaced: misplaced(src, cs)}

	pb, err := reconf.Build(src, req, reconf.Config{
		MaxTime:    p.cfg.MaxTime,
		Durations:  p.durations,
		Relocation: p.cfg.Relocation,
		Logger:     p.logger,
	})
	if err != nil {
		metrics.BuildErrors.WithLabelValues(buildErrorReason(err)).Inc()
		metrics.PlansTotal.WithLabelValues(metrics.ResultError).Inc()
		p.logger.Warn().Err(err).Msg("Unable to build the reconfiguration problem")
		return nil, fmt.Errorf("build problem: %w", err)
	}
	metrics.ProblemsBuilt.Inc()
	res.ProblemID = pb.ID
	logger := log.WithProblem(pb.ID).With().Str("component", "planner").Logger()

	if err := pb.Inject(cs...); err != nil {
		if constraint.IsUnsatisfiable(err) {
			logger.Info().Err(err).Msg("Constraints cannot be satisfied")
			return p.infeasible(res, timer), nil
		}
		metrics.BuildErrors.WithLabelValues(buildErrorReason(err)).Inc()
		metrics.PlansTotal.WithLabelValues(metrics.ResultError).Inc()
		logger.Warn().Err(err).Msg("Unable to inject constraints")
		return nil, fmt.Errorf("inject constraints: %w", err)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	solveTimer := metrics.NewTimer()
	pl, err := pb.Solve(ctx, reconf.SolveOptions{NodeLimit: p.cfg.NodeLimit})
	solveTimer.ObserveDuration(metrics.SolveDuration)
	res.Stats = pb.Store().Stats()
	metrics.SearchNodes.Add(float64(res.Stats.Nodes))
	metrics.PropagationFailures.Add(float64(res.Stats.Failures))
	if err != nil {
		metrics.PlansTotal.WithLabelValues(metrics.ResultError).Inc()
		logger.Warn().Err(err).Int("nodes", res.Stats.Nodes).Msg("Search aborted")
		return nil, fmt.Errorf("solve problem %s: %w", pb.ID, err)
	}
	if pl == nil {
		logger.Info().Int("nodes", res.Stats.Nodes).Msg("No plan satisfies the request")
		return p.infeasible(res, timer), nil
	}

	if err := plan.VerifyCapacity(pl); err != nil {
		metrics.PlansTotal.WithLabelValues(metrics.ResultError).Inc()
		logger.Error().Err(err).Str("plan", pl.ID).Msg("Plan exceeds node capacity")
		return nil, err
	}

	res.Plan = pl
	res.Feasible = true
	res.Elapsed = timer.Duration()
	metrics.PlansTotal.WithLabelValues(metrics.ResultFeasible).Inc()
	metrics.PlanActions.Observe(float64(pl.Size()))
	logger.Info().
		Str("plan", pl.ID).
		Int("actions", pl.Size()).
		Int("duration", pl.Duration()).
		Dur("elapsed", res.Elapsed).
		Msg("Plan computed")
	return res, nil
}

func (p *Planner) infeasible(res *Result, timer *metrics.Timer) *Result {
	res.Elapsed = timer.Duration()
	metrics.PlansTotal.WithLabelValues(metrics.ResultInfeasible).Inc()
	return res
}

func misplaced(src *types.Model, cs []reconf.Constraint) []types.VMID {
	if src == nil {
		return nil
	}
	seen := make(map[types.VMID]struct{})
	var out []types.VMID
	for _, c := range cs {
		for _, vm := range c.MisplacedVMs(src) {
			if _, ok := seen[vm]; !ok {
				seen[vm] = struct{}{}
				out = append(out, vm)
			}
		}
	}
	return out
}

// buildErrorReason labels a build error for metrics
func buildErrorReason(err error) string {
	switch {
	case errors.Is(err, reconf.ErrAmbiguousTransition):
		return "ambiguous_transition"
	case errors.Is(err, reconf.ErrUndefinedTransition):
		return "undefined_transition"
	case errors.Is(err, reconf.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, reconf.ErrDuration):
		return "duration"
	case errors.Is(err, reconf.ErrInvalidBounds):
		return "bounds"
	case errors.Is(err, reconf.ErrUnknownVM), errors.Is(err, reconf.ErrUnknownNode):
		return "unknown_entity"
	case errors.Is(err, reconf.ErrUnknownView):
		return "unknown_view"
	}
	return "other"
}
