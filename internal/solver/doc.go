// Package solver smooths a lateral offset profile inside a corridor.
//
// The piecewise-jerk formulation samples the lateral offset l at evenly
// spaced stations and penalizes the offset and its first three finite
// differences:
//
//	J = wL·Σ l² + wDL·Σ l'² + wDDL·Σ l''² + wDDDL·Σ l'''² + wInit·(init terms)
//
// subject to Lower_i ≤ l_i ≤ Upper_i. Station 0 is pinned to the initial
// offset; its interval is not enforced.
//
// Solution Strategy:
//
// Every term is a weighted least-squares residual, so the cost is assembled
// as a stacked matrix A and target b and the normal equations H = AᵀA,
// g = Aᵀb are solved by Cholesky factorization. If the unconstrained optimum
// leaves the corridor, an active-set loop pins violating stations to their
// bound and releases pinned stations whose gradient points back inside,
// re-solving the free subsystem each round until the KKT conditions hold.
//
// Example usage:
//
//	s, err := solver.New(solver.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if !s.Optimize(core.LateralState{l, dl, ddl}, 1.0, corridor.Intervals) {
//	    return s.Err()
//	}
//	for _, p := range s.FrenetPath() {
//	    // p.S is relative to the first station
//	}
//
// The solver is deterministic and keeps no state between calls other than
// the result of the last one.
package solver
