package curvemath

import "errors"

// Error classes for the solvers. Callers match with errors.Is; every failure
// site wraps one of these with context via fmt.Errorf.
var (
	// ErrUnsafeParameter indicates a precondition on A, gamma, or balance
	// ratios was violated before iterating. Fatal for that solve.
	ErrUnsafeParameter = errors.New("unsafe solver parameter")

	// ErrConvergence indicates the iteration budget was exhausted without
	// reaching a fixed point. Fatal for that solve.
	ErrConvergence = errors.New("solver did not converge")

	// ErrUnsafeState indicates a post-solve safety check failed (a balance
	// to invariant ratio left the allowed band). Fatal for that solve.
	ErrUnsafeState = errors.New("unsafe post-solve state")
)
