package types

import "context"

// Hooks defines callbacks for Solver lifecycle events.
//
// All hooks are optional and run synchronously on the worker's goroutine,
// between iterations. A hook that blocks stalls every other worker at the
// next collective, so hooks must complete quickly.
//
// Hook errors are logged but don't fail the run.
//
// Example:
//
//	hooks := &jacobi.Hooks{
//	    OnIteration: func(ctx context.Context, state jacobi.ConvergenceState) error {
//	        publisher.Update(state)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnIteration is called after every reduction with the shared loop state.
	OnIteration func(ctx context.Context, state ConvergenceState) error

	// OnComplete is called once the run finished successfully.
	OnComplete func(ctx context.Context, result *Result) error

	// OnError is called when the run fails, after the group was aborted.
	OnError func(ctx context.Context, err error) error
}
