// Package hooks provides default Hooks implementations.
package hooks

import (
	"context"

	"github.com/arloliu/jacobi/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.ConvergenceState) error = (*NopHooks)(nil).OnIteration
	_ func(context.Context, *types.Result) error         = (*NopHooks)(nil).OnComplete
	_ func(context.Context, error) error                 = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnIteration: h.OnIteration,
		OnComplete:  h.OnComplete,
		OnError:     h.OnError,
	}
}

// Fill returns a copy of h with every nil callback replaced by a no-op.
func Fill(h *types.Hooks) *types.Hooks {
	filled := NewNop()
	if h == nil {
		return &filled
	}
	if h.OnIteration != nil {
		filled.OnIteration = h.OnIteration
	}
	if h.OnComplete != nil {
		filled.OnComplete = h.OnComplete
	}
	if h.OnError != nil {
		filled.OnError = h.OnError
	}

	return &filled
}

// OnIteration is a no-op implementation.
func (h *NopHooks) OnIteration(_ context.Context, _ types.ConvergenceState) error {
	return nil
}

// OnComplete is a no-op implementation.
func (h *NopHooks) OnComplete(_ context.Context, _ *types.Result) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
