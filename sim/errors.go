package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInReplay is returned when SimulateRound is called while the
	// history marker is detached from the latest round.
	ErrInReplay = errors.New("sim: cannot simulate while in replay")
	// ErrStarted is returned when particles or objects are added after
	// the first round was simulated.
	ErrStarted = errors.New("sim: system already left initialization mode")
	// ErrAtEarliest is returned by StepBack at the earliest round.
	ErrAtEarliest = errors.New("sim: already at earliest round")
	// ErrAtLatest is returned by StepForward at the latest round.
	ErrAtLatest = errors.New("sim: already at latest round")
	// ErrNodeOccupied is returned when an added particle or object
	// overlaps an existing one.
	ErrNodeOccupied = errors.New("sim: node already occupied")
	// ErrRoundOutOfRange is returned by SetMarkerToRound for rounds
	// outside [earliest, latest].
	ErrRoundOutOfRange = errors.New("sim: round outside recorded range")
)

// InvalidActionError reports an action scheduled by an algorithm whose
// preconditions do not hold. It is returned by the scheduler the
// callback invoked; the callback may recover from it. If it propagates
// out of the callback, the round aborts.
type InvalidActionError struct {
	Particle int
	Action   ActionKind
	Reason   string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("sim: particle %d: invalid %s: %s", e.Particle, e.Action, e.Reason)
}

// SimulationError reports a movement conflict, collision, or broken
// bond graph detected by the engine. The round is rolled back.
type SimulationError struct {
	Round  int
	Reason string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("sim: round %d: %s", e.Round, e.Reason)
}

func simErrorf(round int, format string, args ...any) *SimulationError {
	return &SimulationError{Round: round, Reason: fmt.Sprintf(format, args...)}
}

// AlgorithmError wraps an error or panic raised inside an algorithm
// callback, preserving the offending particle and the captured stack.
// The round is rolled back.
type AlgorithmError struct {
	Particle int
	Phase    string
	Err      error
	Stack    []byte
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("sim: particle %d: %s phase: %v", e.Particle, e.Phase, e.Err)
}

func (e *AlgorithmError) Unwrap() error { return e.Err }
