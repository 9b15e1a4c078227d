// Package planner runs one lateral planning cycle: it projects the ego onto
// the reference line, builds the corridor, hands it to the solver and shifts
// the result back into reference-line arc length.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/corridor"
	"github.com/qppath/qppath/internal/solver"
	"github.com/qppath/qppath/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReferenceLine is the geometry the cycle is planned against.
type ReferenceLine interface {
	corridor.WidthOracle
	FrenetPoint(vehicle core.VehicleState) core.FrenetPoint
	SLBoundary(box core.Box) core.SLBoundary
	Cartesian(s, l float64) (x, y float64)
}

// ObstacleProvider supplies the obstacles for the current cycle. The order
// of the returned slice is significant.
type ObstacleProvider interface {
	Obstacles() []core.Obstacle
}

// Recorder receives a snapshot of every finished cycle. Record must not block.
type Recorder interface {
	Record(rec core.CycleRecord)
}

// SolverFactory builds the solver owned by an initialized Optimizer.
type SolverFactory func(cfg solver.Config) (solver.Solver, error)

// DefaultSolverFactory builds the piecewise-jerk solver.
func DefaultSolverFactory(cfg solver.Config) (solver.Solver, error) {
	return solver.New(cfg)
}

// Path is the output of a successful cycle. Points are in reference-line
// arc length.
type Path struct {
	Reference ReferenceLine
	Points    []core.FrenetPoint
}

// Cartesian maps every point back to world coordinates.
func (p *Path) Cartesian() []core.Position2D {
	out := make([]core.Position2D, len(p.Points))
	for i, pt := range p.Points {
		x, y := p.Reference.Cartesian(pt.S, pt.L)
		out[i] = core.Position2D{X: x, Y: y}
	}
	return out
}

// ready is the state of an initialized Optimizer.
type ready struct {
	cfg    config.PlannerConfig
	solver solver.Solver
}

// Optimizer owns the solver and drives planning cycles. It is not safe for
// concurrent use; callers serialize cycles.
type Optimizer struct {
	logger        *slog.Logger
	newSolver     SolverFactory
	solverCfg     solver.Config
	meterProvider metric.MeterProvider
	recorder      Recorder
	now           func() time.Time

	// nil until Init succeeds
	state *ready
	cycle uint64

	cycles         metric.Int64Counter
	solverDuration metric.Float64Histogram
	crossed        metric.Int64Counter
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSolverConfig sets the weights passed to the solver factory.
func WithSolverConfig(cfg solver.Config) Option {
	return func(o *Optimizer) {
		o.solverCfg = cfg
	}
}

// WithSolverFactory replaces the default piecewise-jerk solver.
func WithSolverFactory(f SolverFactory) Option {
	return func(o *Optimizer) {
		o.newSolver = f
	}
}

// WithMeterProvider records metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Optimizer) {
		o.meterProvider = mp
	}
}

// WithRecorder forwards a snapshot of every cycle to r.
func WithRecorder(r Recorder) Option {
	return func(o *Optimizer) {
		o.recorder = r
	}
}

// WithClock overrides the wall clock used for timestamps and solver timing.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		o.now = now
	}
}

// NewOptimizer creates an uninitialized Optimizer.
// Uses the global OTel meter for metrics unless WithMeterProvider is given.
func NewOptimizer(logger *slog.Logger, opts ...Option) (*Optimizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Optimizer{
		logger:    logger,
		newSolver: DefaultSolverFactory,
		solverCfg: solver.DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	m := meter(o.meterProvider)

	var err error
	o.cycles, err = m.Int64Counter(
		"planner.cycles",
		metric.WithDescription("Planning cycles by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cycles counter: %w", err)
	}

	o.solverDuration, err = m.Float64Histogram(
		"planner.solver.duration",
		metric.WithDescription("Wall time spent in the solver"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating solver duration histogram: %w", err)
	}

	o.crossed, err = m.Int64Counter(
		"planner.corridor.crossed",
		metric.WithDescription("Corridor stations whose lower bound exceeds the upper bound"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating crossed stations counter: %w", err)
	}

	return o, nil
}

// Init validates cfg, builds the solver and makes the Optimizer ready.
// Calling Init again replaces the configuration and solver.
func (o *Optimizer) Init(cfg config.PlannerConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid planner config: %w", err)
	}
	s, err := o.newSolver(o.solverCfg)
	if err != nil {
		return fmt.Errorf("creating solver: %w", err)
	}
	o.state = &ready{cfg: cfg, solver: s}
	o.logger.Info("Optimizer initialized",
		"qpDeltaS", cfg.QPDeltaS,
		"lateralBuffer", cfg.LateralBuffer,
		"minLookAheadTime", cfg.MinLookAheadTime,
		"minLookAheadDistance", cfg.MinLookAheadDistance,
	)
	return nil
}

// Ready reports whether Init has succeeded.
func (o *Optimizer) Ready() bool {
	return o.state != nil
}

// Corridor builds the corridor for vehicle without solving.
func (o *Optimizer) Corridor(vehicle core.VehicleState, ref ReferenceLine, obstacles ObstacleProvider) (core.Corridor, error) {
	st := o.state
	if st == nil {
		return core.Corridor{}, ErrNotInitialized
	}
	egoPoint := ref.FrenetPoint(vehicle)
	ego := ref.SLBoundary(vehicle.Footprint())
	return st.corridor(vehicle, egoPoint, ego, ref, obstacles.Obstacles()), nil
}

func (st *ready) corridor(
	vehicle core.VehicleState,
	egoPoint core.FrenetPoint,
	ego core.SLBoundary,
	ref ReferenceLine,
	obstacles []core.Obstacle,
) core.Corridor {
	p := corridor.Params{
		Spacing:       st.cfg.QPDeltaS,
		Length:        st.cfg.CorridorLength(vehicle.Speed),
		LateralBuffer: st.cfg.LateralBuffer,
	}
	return corridor.ComputeBounds(ego, egoPoint, p, ref, obstacles)
}

// Process runs one planning cycle. ctx carries logging and metric context
// only; a cycle is never interrupted.
func (o *Optimizer) Process(
	ctx context.Context,
	vehicle core.VehicleState,
	ref ReferenceLine,
	obstacles ObstacleProvider,
) (*Path, error) {
	o.cycle++
	rec := core.CycleRecord{Cycle: o.cycle, Time: o.now(), Vehicle: vehicle}

	st := o.state
	if st == nil {
		o.finish(ctx, &rec, core.CycleNotInitialized)
		return nil, ErrNotInitialized
	}

	rec.EgoPoint = ref.FrenetPoint(vehicle)
	rec.EgoBoundary = ref.SLBoundary(vehicle.Footprint())
	obs := obstacles.Obstacles()
	rec.ObstacleCount = len(obs)
	rec.Corridor = st.corridor(vehicle, rec.EgoPoint, rec.EgoBoundary, ref, obs)

	if crossed := rec.Corridor.CrossedStations(); len(crossed) > 0 {
		o.logger.WarnContext(ctx, "Corridor has crossed intervals",
			"cycle", rec.Cycle,
			"stations", crossed,
		)
		o.crossed.Add(ctx, int64(len(crossed)))
	}

	start := o.now()
	ok := st.solver.Optimize(rec.EgoPoint.LateralState(), st.cfg.QPDeltaS, rec.Corridor.Intervals)
	rec.SolverDuration = o.now().Sub(start)
	o.solverDuration.Record(ctx, float64(rec.SolverDuration)/float64(time.Millisecond))
	o.logger.DebugContext(ctx, "Solver finished",
		"cycle", rec.Cycle,
		"stations", rec.Corridor.Len(),
		"duration", rec.SolverDuration,
		"ok", ok,
	)

	if !ok {
		err := &Error{Kind: OptimizationFailed, Message: ErrOptimizationFailed.Message}
		if s, isErr := st.solver.(interface{ Err() error }); isErr {
			err.Err = s.Err()
		}
		o.logger.ErrorContext(ctx, "Path optimization failed", "cycle", rec.Cycle, "error", err)
		o.finish(ctx, &rec, core.CycleOptimizationFailed)
		return nil, err
	}

	points := slices.Clone(st.solver.FrenetPath())
	for i := range points {
		points[i].S += rec.EgoPoint.S
	}
	rec.Points = slices.Clone(points)
	o.finish(ctx, &rec, core.CycleOK)
	return &Path{Reference: ref, Points: points}, nil
}

func (o *Optimizer) finish(ctx context.Context, rec *core.CycleRecord, result core.CycleResult) {
	rec.Result = result
	o.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(result))))
	if o.recorder != nil {
		o.recorder.Record(*rec)
	}
}
