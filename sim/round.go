package sim

import (
	"fmt"
	"runtime/debug"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/amoebot/telemetry"
)

// SimulateRound runs one fully synchronous round: move activations,
// bond resolution, joint movement (or the static bond pass), beep
// activations, pin application, circuit discovery with signal delivery,
// history commit and termination detection.
//
// It must be called while the history marker is at the latest round and
// returns ErrInReplay otherwise. On any error the system is rolled back
// to the previous round.
func (s *System) SimulateRound() error {
	if !s.tracking {
		return ErrInReplay
	}
	s.started = true
	round := s.currentRound + 1

	if len(s.particles) == 0 {
		// An empty system still advances its clock.
		s.currentRound = round
		s.latestRound = round
		s.anchorHist.Record(s.anchor, round)
		return nil
	}

	s.clearTransients()

	// Move phase.
	for _, e := range s.particles {
		if err := s.activate(e, "move"); err != nil {
			s.rollbackRound(round)
			return err
		}
	}
	anyAction, anyRelease := s.resolveBonds()

	var moves []ParticleMove
	var bonds []BondInfo
	if anyAction || anyRelease {
		var err error
		moves, bonds, err = s.runJointMovements(round, anyAction)
		if err != nil {
			s.col.RecordConflict(round)
			s.rollbackRound(round)
			return err
		}
		s.resetMovedPins()
	} else {
		bonds = s.staticBondPass()
	}

	// Beep phase.
	for _, e := range s.particles {
		if err := s.activate(e, "beep"); err != nil {
			s.rollbackRound(round)
			return err
		}
	}
	s.applyPinConfigs()
	assignments, sizes, beeps, msgs := s.discoverCircuits()

	// Termination predicate, before commit so a raising IsFinished
	// still rolls back cleanly.
	finished := true
	for _, e := range s.particles {
		fin, err := s.checkFinished(e)
		if err != nil {
			s.rollbackRound(round)
			return err
		}
		finished = finished && fin
	}

	// Commit.
	s.currentRound = round
	s.latestRound = round
	s.anchorHist.Record(s.anchor, round)
	for _, e := range s.particles {
		s.particleMap.Get(e).commit(round)
	}
	for _, e := range s.objects {
		s.objectMap.Get(e).commit(round)
	}
	s.clearPlannedSignals()
	if finished && s.finishedRound < 0 {
		s.finishedRound = round
	}

	s.col.RecordRound(telemetry.RoundEvents{
		Round:             round,
		ParticlesMoved:    s.countMoved(),
		BondsReleased:     s.countReleased(),
		Handovers:         s.countHandovers(),
		CircuitSizes:      sizes,
		BeepsDelivered:    beeps,
		MessagesDelivered: msgs,
		Finished:          finished,
	})
	if s.sink != nil {
		s.sink.PublishRound(RoundSnapshot{
			Round:    round,
			Moves:    moves,
			Bonds:    bonds,
			Circuits: assignments,
		})
	}
	return nil
}

// activate runs one algorithm callback with panic isolation.
func (s *System) activate(e ecs.Entity, phase string) (err error) {
	p := s.particleMap.Get(e)
	defer func() {
		if r := recover(); r != nil {
			err = &AlgorithmError{
				Particle: p.ID,
				Phase:    phase,
				Err:      fmt.Errorf("panic: %v", r),
				Stack:    debug.Stack(),
			}
		}
	}()
	var cerr error
	if phase == "move" {
		cerr = s.algo.ActivateMove(s.view(e))
	} else {
		cerr = s.algo.ActivateBeep(s.view(e))
	}
	if cerr != nil {
		return &AlgorithmError{Particle: p.ID, Phase: phase, Err: cerr}
	}
	return nil
}

// checkFinished queries the termination predicate with panic isolation.
func (s *System) checkFinished(e ecs.Entity) (fin bool, err error) {
	p := s.particleMap.Get(e)
	defer func() {
		if r := recover(); r != nil {
			err = &AlgorithmError{
				Particle: p.ID,
				Phase:    "finished",
				Err:      fmt.Errorf("panic: %v", r),
				Stack:    debug.Stack(),
			}
		}
	}()
	return s.algo.IsFinished(s.view(e)), nil
}

// rollbackRound restores the live state of the previous round after a
// failed round.
func (s *System) rollbackRound(round int) {
	s.restoreLiveState(s.currentRound)
	s.clearTransients()
	s.log.Warn("round rolled back", "round", round)
}

func (s *System) countMoved() int {
	n := 0
	for _, e := range s.particles {
		if s.particleMap.Get(e).moved {
			n++
		}
	}
	return n
}

func (s *System) countReleased() int {
	n := 0
	for _, e := range s.particles {
		if s.particleMap.Get(e).releasedBond {
			n++
		}
	}
	return n
}

func (s *System) countHandovers() int {
	n := 0
	for _, e := range s.particles {
		if s.particleMap.Get(e).action.Kind == ActPush {
			n++
		}
	}
	return n
}
