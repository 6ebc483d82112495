package sim

import "github.com/pthm-cable/amoebot/grid"

// Algorithm is the distributed algorithm the particles execute. One
// instance serves the whole system; all per-particle state lives in
// attributes created during Init.
//
// Callbacks run on the caller's goroutine and may only mutate the
// activated particle through its view. Returned errors and panics abort
// the round; the system rolls back to the previous round.
type Algorithm interface {
	// PinsPerEdge is the number of pins on every edge, fixed per
	// algorithm.
	PinsPerEdge() int
	// Init runs once per particle in initialization mode and creates
	// the particle's attributes.
	Init(p *ParticleView) error
	// ActivateMove may schedule at most one movement action.
	ActivateMove(p *ParticleView) error
	// ActivateBeep may read last round's signals and plan a new pin
	// configuration, beeps and messages.
	ActivateBeep(p *ParticleView) error
	// IsFinished reports whether the particle considers the algorithm
	// terminated. The system finishes when all particles do.
	IsFinished(p *ParticleView) bool
}

// Sink consumes one snapshot per committed round. The graphics layer is
// the intended implementation; the engine never interprets snapshots.
type Sink interface {
	PublishRound(snap RoundSnapshot)
}

// RoundSnapshot describes everything that happened in one round, for
// external consumers.
type RoundSnapshot struct {
	Round    int
	Moves    []ParticleMove
	Bonds    []BondInfo
	Circuits []CircuitAssignment
}

// ParticleMove records one particle's motion during a round.
type ParticleMove struct {
	ID        int
	OldHead   grid.Node
	NewHead   grid.Node
	OldExpDir grid.Direction
	NewExpDir grid.Direction
	JMOffset  grid.Vector
}

// BondInfo records one bond edge for rendering.
type BondInfo struct {
	From    grid.Node
	To      grid.Node
	Visible bool
}

// CircuitAssignment records the circuit membership of one partition
// set after discovery.
type CircuitAssignment struct {
	Particle int
	Set      int
	Circuit  int
	Beep     bool
	Message  bool
}
