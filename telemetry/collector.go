// Package telemetry accumulates per-round statistics of a simulation
// and writes them as CSV, aggregated into fixed-size round windows.
package telemetry

import "log/slog"

// Collector accumulates round events and produces WindowStats. All
// methods are safe on a nil receiver, so the engine can run without
// telemetry attached.
type Collector struct {
	windowRounds int
	out          *Output

	// Current window accumulation.
	windowStart  int
	moves        []float64
	circuitSizes []float64
	conflicts    int
	totalBeeps   int
	totalMsgs    int
	roundsSeen   int
	lastRound    int

	lastWindow    WindowStats
	hasLastWindow bool
}

// NewCollector creates a stats collector aggregating the given number
// of rounds per window.
func NewCollector(windowRounds int) *Collector {
	if windowRounds < 1 {
		windowRounds = 1
	}
	return &Collector{windowRounds: windowRounds}
}

// SetOutput attaches a CSV output manager.
func (c *Collector) SetOutput(out *Output) {
	if c == nil {
		return
	}
	c.out = out
}

// RecordRound ingests one committed round.
func (c *Collector) RecordRound(ev RoundEvents) {
	if c == nil {
		return
	}
	if c.roundsSeen == 0 {
		c.windowStart = ev.Round
	}
	c.roundsSeen++
	c.lastRound = ev.Round
	c.moves = append(c.moves, float64(ev.ParticlesMoved))
	for _, sz := range ev.CircuitSizes {
		c.circuitSizes = append(c.circuitSizes, float64(sz))
	}
	c.totalBeeps += ev.BeepsDelivered
	c.totalMsgs += ev.MessagesDelivered

	sizeMean, _ := meanStd(floats(ev.CircuitSizes))
	rs := RoundStats{
		Round:             ev.Round,
		ParticlesMoved:    ev.ParticlesMoved,
		BondsReleased:     ev.BondsReleased,
		Handovers:         ev.Handovers,
		Circuits:          len(ev.CircuitSizes),
		CircuitSizeMean:   sizeMean,
		BeepsDelivered:    ev.BeepsDelivered,
		MessagesDelivered: ev.MessagesDelivered,
		Finished:          ev.Finished,
	}
	if err := c.out.WriteRound(rs); err != nil {
		slog.Warn("telemetry round write failed", "round", ev.Round, "error", err)
	}

	if c.roundsSeen >= c.windowRounds {
		c.flushWindow()
	}
}

// RecordConflict counts a rolled-back round in the current window.
func (c *Collector) RecordConflict(round int) {
	if c == nil {
		return
	}
	c.conflicts++
}

// LastWindow returns the most recently completed window.
func (c *Collector) LastWindow() (WindowStats, bool) {
	if c == nil {
		return WindowStats{}, false
	}
	return c.lastWindow, c.hasLastWindow
}

// Flush closes the current window early, if it holds any rounds.
func (c *Collector) Flush() {
	if c == nil || c.roundsSeen == 0 {
		return
	}
	c.flushWindow()
}

func (c *Collector) flushWindow() {
	movesMean, movesStd := meanStd(c.moves)
	sizeMean, sizeStd := meanStd(c.circuitSizes)
	ws := WindowStats{
		WindowEndRound:  c.lastRound,
		Rounds:          c.roundsSeen,
		Conflicts:       c.conflicts,
		MovesMean:       movesMean,
		MovesStd:        movesStd,
		CircuitSizeMean: sizeMean,
		CircuitSizeStd:  sizeStd,
		TotalBeeps:      c.totalBeeps,
		TotalMessages:   c.totalMsgs,
	}
	c.lastWindow = ws
	c.hasLastWindow = true
	if err := c.out.WriteWindow(ws); err != nil {
		slog.Warn("telemetry window write failed", "window_end", ws.WindowEndRound, "error", err)
	}

	c.moves = c.moves[:0]
	c.circuitSizes = c.circuitSizes[:0]
	c.conflicts = 0
	c.totalBeeps = 0
	c.totalMsgs = 0
	c.roundsSeen = 0
}

func floats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
