package jacobi

import "github.com/arloliu/jacobi/types"

// Re-export types from the types package.
//
// Internal packages depend on types, never on the root package, so the
// aliases here give callers jacobi.Partition, jacobi.Logger and so on
// without an import cycle.
type (
	Partition        = types.Partition
	GatherPlan       = types.GatherPlan
	ConvergenceState = types.ConvergenceState
	Result           = types.Result
	Initializer      = types.Initializer
	Tag              = types.Tag
)

// Re-export interfaces from the types package for convenience.
type (
	Communicator     = types.Communicator
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export message tags.
const (
	TagHaloDown = types.TagHaloDown
	TagHaloUp   = types.TagHaloUp
	TagGather   = types.TagGather
)
