package telemetry

import "gonum.org/v1/gonum/stat"

// RoundEvents is what the engine reports about one committed round.
type RoundEvents struct {
	Round             int
	ParticlesMoved    int
	BondsReleased     int
	Handovers         int
	CircuitSizes      []int
	BeepsDelivered    int
	MessagesDelivered int
	Finished          bool
}

// RoundStats is the per-round record written to rounds.csv.
type RoundStats struct {
	Round             int     `csv:"round"`
	ParticlesMoved    int     `csv:"particles_moved"`
	BondsReleased     int     `csv:"bonds_released"`
	Handovers         int     `csv:"handovers"`
	Circuits          int     `csv:"circuits"`
	CircuitSizeMean   float64 `csv:"circuit_size_mean"`
	BeepsDelivered    int     `csv:"beeps_delivered"`
	MessagesDelivered int     `csv:"messages_delivered"`
	Finished          bool    `csv:"finished"`
}

// WindowStats aggregates a fixed number of rounds.
type WindowStats struct {
	WindowEndRound int `csv:"window_end"`
	Rounds         int `csv:"rounds"`
	Conflicts      int `csv:"conflicts"`

	MovesMean float64 `csv:"moves_mean"`
	MovesStd  float64 `csv:"moves_std"`

	CircuitSizeMean float64 `csv:"circuit_size_mean"`
	CircuitSizeStd  float64 `csv:"circuit_size_std"`

	TotalBeeps    int `csv:"total_beeps"`
	TotalMessages int `csv:"total_messages"`
}

// meanStd returns mean and standard deviation of xs, zero for short
// inputs.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean := stat.Mean(xs, nil)
	if len(xs) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(xs, nil)
}
