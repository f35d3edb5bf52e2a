package types

// ConvergenceState tracks the loop guard shared by all workers.
//
// GlobalNorm is the square root of the reduced sum of squared deltas and is
// identical on every worker after each reduction, so Done returns the same
// answer everywhere without further communication.
type ConvergenceState struct {
	LocalSumSquares float64 `json:"localSumSquares"`
	GlobalNorm      float64 `json:"globalNorm"`
	Iteration       int     `json:"iteration"`
	Threshold       float64 `json:"threshold"`
	MaxIterations   int     `json:"maxIterations"`
}

// Converged reports whether the global norm fell to or below the threshold.
//
// Always false before the first reduction.
func (s ConvergenceState) Converged() bool {
	return s.Iteration > 0 && s.GlobalNorm <= s.Threshold
}

// Done reports whether the loop must stop.
func (s ConvergenceState) Done() bool {
	return s.Iteration >= s.MaxIterations || s.Converged()
}
