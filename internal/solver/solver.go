package solver

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/qppath/qppath/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// Solver turns a corridor and an initial lateral state into a smooth path.
type Solver interface {
	// Optimize reports whether a path was found. bounds holds one interval
	// per station, deltaS apart.
	Optimize(init core.LateralState, deltaS float64, bounds []core.Interval) bool
	// FrenetPath returns the last successful result with S measured from
	// the first station.
	FrenetPath() []core.FrenetPoint
}

var (
	ErrTooFewStations      = errors.New("at least two stations are required")
	ErrInvalidSpacing      = errors.New("station spacing must be positive")
	ErrInfeasible          = errors.New("crossed corridor interval")
	ErrNotPositiveDefinite = errors.New("normal matrix is not positive definite")
	ErrNonFinite           = errors.New("non-finite value")
	ErrNoConvergence       = errors.New("active set did not converge")
)

// PiecewiseJerk is the default Solver.
type PiecewiseJerk struct {
	cfg        Config
	path       []core.FrenetPoint
	err        error
	iterations int
}

var _ Solver = (*PiecewiseJerk)(nil)

func New(cfg Config) (*PiecewiseJerk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PiecewiseJerk{cfg: cfg}, nil
}

func (p *PiecewiseJerk) Optimize(init core.LateralState, deltaS float64, bounds []core.Interval) bool {
	p.path, p.iterations = nil, 0
	l, err := p.solve(init, deltaS, bounds)
	p.err = err
	if err != nil {
		return false
	}
	p.path = buildPath(l, init, deltaS)
	return true
}

func (p *PiecewiseJerk) FrenetPath() []core.FrenetPoint {
	return slices.Clone(p.path)
}

// Err returns why the last Optimize call failed, or nil.
func (p *PiecewiseJerk) Err() error {
	return p.err
}

// Iterations returns the number of active-set rounds used by the last call.
func (p *PiecewiseJerk) Iterations() int {
	return p.iterations
}

func (p *PiecewiseJerk) solve(init core.LateralState, ds float64, bounds []core.Interval) ([]float64, error) {
	n := len(bounds)
	if n < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewStations, n)
	}
	if !(ds > 0) || math.IsInf(ds, 1) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidSpacing, ds)
	}
	for i, v := range init {
		if !finite(v) {
			return nil, fmt.Errorf("%w in initial state component %d", ErrNonFinite, i)
		}
	}
	for i, iv := range bounds {
		if math.IsNaN(iv.Lower) || math.IsNaN(iv.Upper) {
			return nil, fmt.Errorf("%w in bounds at station %d", ErrNonFinite, i)
		}
		if iv.Crossed() {
			return nil, fmt.Errorf("%w at station %d: [%v, %v]", ErrInfeasible, i, iv.Lower, iv.Upper)
		}
	}

	a, b := p.assemble(init, ds, n)
	m := n - 1
	h := mat.NewSymDense(m, nil)
	h.SymOuterK(1, a.T())
	g := mat.NewVecDense(m, nil)
	g.MulVec(a.T(), b)

	lo := make([]float64, m)
	hi := make([]float64, m)
	for k := range m {
		lo[k], hi[k] = bounds[k+1].Lower, bounds[k+1].Upper
	}
	x, err := p.activeSet(h, g, lo, hi)
	if err != nil {
		return nil, err
	}

	l := make([]float64, n)
	l[0] = init[0]
	copy(l[1:], x)
	for i, v := range l {
		if !finite(v) {
			return nil, fmt.Errorf("%w in solution at station %d", ErrNonFinite, i)
		}
	}
	return l, nil
}

// term is one coefficient of a residual over the full profile l_0..l_{n-1}.
type term struct {
	i int
	c float64
}

// lsq stacks weighted residual rows over the free offsets l_1..l_{n-1}.
// l_0 is pinned, so its contribution moves into the target.
type lsq struct {
	l0   float64
	m    int
	rows []float64
	b    []float64
}

func (q *lsq) add(weight, target float64, terms ...term) {
	if weight == 0 {
		return
	}
	sw := math.Sqrt(weight)
	row := make([]float64, q.m)
	for _, t := range terms {
		if t.i == 0 {
			target -= t.c * q.l0
			continue
		}
		row[t.i-1] += t.c * sw
	}
	q.rows = append(q.rows, row...)
	q.b = append(q.b, target*sw)
}

func (p *PiecewiseJerk) assemble(init core.LateralState, ds float64, n int) (*mat.Dense, *mat.VecDense) {
	c := p.cfg
	q := &lsq{l0: init[0], m: n - 1}
	d1, d2, d3 := 1/ds, 1/(ds*ds), 1/(ds*ds*ds)

	for i := 1; i < n; i++ {
		q.add(c.LWeight, 0, term{i, 1})
	}
	for i := 0; i+1 < n; i++ {
		q.add(c.DLWeight, 0, term{i + 1, d1}, term{i, -d1})
	}
	for i := 1; i+1 < n; i++ {
		q.add(c.DDLWeight, 0, term{i + 1, d2}, term{i, -2 * d2}, term{i - 1, d2})
	}
	for i := 1; i+2 < n; i++ {
		q.add(c.DDDLWeight, 0, term{i + 2, d3}, term{i + 1, -3 * d3}, term{i, 3 * d3}, term{i - 1, -d3})
	}

	// forward slope and curvature at the first station match the initial state
	q.add(c.InitWeight, init[1]+0.5*init[2]*ds, term{1, d1}, term{0, -d1})
	if n > 2 {
		q.add(c.InitWeight, init[2], term{2, d2}, term{1, -2 * d2}, term{0, d2})
	}

	return mat.NewDense(len(q.b), q.m, q.rows), mat.NewVecDense(len(q.b), q.b)
}

const (
	stateFree int8 = iota
	stateLower
	stateUpper
)

// activeSet minimizes ½xᵀHx - gᵀx subject to lo ≤ x ≤ hi.
func (p *PiecewiseJerk) activeSet(h *mat.SymDense, g *mat.VecDense, lo, hi []float64) ([]float64, error) {
	m := len(lo)
	x := make([]float64, m)
	state := make([]int8, m)
	tol := p.cfg.Tolerance
	var diag float64
	for k := range m {
		diag = max(diag, h.At(k, k))
	}
	dualTol := tol * (1 + diag)

	for iter := 1; iter <= p.cfg.MaxIterations; iter++ {
		p.iterations = iter
		if err := solveFree(h, g, state, x); err != nil {
			return nil, err
		}

		pinned := false
		for k := range x {
			if state[k] != stateFree {
				continue
			}
			switch {
			case x[k] < lo[k]-tol:
				state[k], x[k], pinned = stateLower, lo[k], true
			case x[k] > hi[k]+tol:
				state[k], x[k], pinned = stateUpper, hi[k], true
			}
		}
		if pinned {
			continue
		}

		// release the pinned station whose multiplier is most wrong
		release, worst := -1, dualTol
		for k := range x {
			if state[k] == stateFree {
				continue
			}
			grad := -g.AtVec(k)
			for j := range x {
				grad += h.At(k, j) * x[j]
			}
			if state[k] == stateUpper {
				grad = -grad
			}
			if -grad > worst {
				release, worst = k, -grad
			}
		}
		if release < 0 {
			for k := range x {
				x[k] = min(max(x[k], lo[k]), hi[k])
			}
			return x, nil
		}
		state[release] = stateFree
	}
	return nil, fmt.Errorf("%w after %d iterations", ErrNoConvergence, p.cfg.MaxIterations)
}

// solveFree solves the free block of Hx = g with pinned entries of x held fixed.
func solveFree(h *mat.SymDense, g *mat.VecDense, state []int8, x []float64) error {
	var free []int
	for k, st := range state {
		if st == stateFree {
			free = append(free, k)
		}
	}
	if len(free) == 0 {
		return nil
	}

	hf := mat.NewSymDense(len(free), nil)
	rhs := mat.NewVecDense(len(free), nil)
	for a, i := range free {
		r := g.AtVec(i)
		for j, st := range state {
			if st != stateFree {
				r -= h.At(i, j) * x[j]
			}
		}
		rhs.SetVec(a, r)
		for b := a; b < len(free); b++ {
			hf.SetSym(a, b, h.At(i, free[b]))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hf); !ok {
		return ErrNotPositiveDefinite
	}
	sol := mat.NewVecDense(len(free), nil)
	if err := chol.SolveVecTo(sol, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("cholesky solve: %w", err)
		}
	}
	for a, i := range free {
		x[i] = sol.AtVec(a)
	}
	return nil
}

// buildPath derives slope and curvature by finite differences. The first
// point carries the initial state.
func buildPath(l []float64, init core.LateralState, ds float64) []core.FrenetPoint {
	n := len(l)
	out := make([]core.FrenetPoint, n)
	for i := range out {
		pt := core.FrenetPoint{S: float64(i) * ds, L: l[i]}
		switch i {
		case 0:
			pt.DL, pt.DDL = init[1], init[2]
		case n - 1:
			pt.DL = (l[i] - l[i-1]) / ds
			pt.DDL = out[i-1].DDL
		default:
			pt.DL = (l[i+1] - l[i-1]) / (2 * ds)
			pt.DDL = (l[i+1] - 2*l[i] + l[i-1]) / (ds * ds)
		}
		out[i] = pt
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
