package pool

import "errors"

var (
	// ErrUnsupportedParameter indicates a parameter name that the pool family
	// has no setter for. Raised at configuration time, never mid-run.
	ErrUnsupportedParameter = errors.New("unsupported pool parameter")

	// ErrTradeExecution wraps any solver failure surfaced while pricing or
	// executing a trade. Terminal for the pool variant that hit it.
	ErrTradeExecution = errors.New("trade execution failed")

	// ErrUnknownCoin indicates a coin name that is not part of the pool.
	ErrUnknownCoin = errors.New("unknown coin")
)
