package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pthm-cable/amoebot/config"
	"github.com/pthm-cable/amoebot/grid"
)

func TestAddParticleOccupied(t *testing.T) {
	s := newTestSystem(t, &testAlgo{}, grid.Node{X: 0, Y: 0})
	if _, err := s.AddParticle(grid.Node{X: 0, Y: 0}, true, grid.E); !errors.Is(err, ErrNodeOccupied) {
		t.Errorf("expected ErrNodeOccupied, got %v", err)
	}
	if _, err := s.AddExpandedParticle(grid.Node{X: 1, Y: 0}, grid.E, true, grid.E); !errors.Is(err, ErrNodeOccupied) {
		t.Errorf("expected ErrNodeOccupied for overlapping tail, got %v", err)
	}
	if _, err := s.AddObject(grid.Node{X: 0, Y: 0}, nil); !errors.Is(err, ErrNodeOccupied) {
		t.Errorf("expected ErrNodeOccupied for object, got %v", err)
	}
}

func TestAddAfterStartFails(t *testing.T) {
	s := newTestSystem(t, &testAlgo{}, grid.Node{X: 0, Y: 0})
	mustRound(t, s)
	if _, err := s.AddParticle(grid.Node{X: 5, Y: 0}, true, grid.E); !errors.Is(err, ErrStarted) {
		t.Errorf("expected ErrStarted, got %v", err)
	}
	if _, err := s.AddObject(grid.Node{X: 5, Y: 0}, nil); !errors.Is(err, ErrStarted) {
		t.Errorf("expected ErrStarted for object, got %v", err)
	}
}

func TestInvalidActions(t *testing.T) {
	var errExpand, errContract, errPush, errPull error
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if v.Expanded() {
				errExpand = v.Expand(grid.E)
			} else {
				errContract = v.ContractHead()
				errPush = v.PushHandover(grid.E)    // no expanded partner there
				errPull = v.PullHandoverHead(grid.E) // contracted cannot pull
			}
			return nil
		},
	}
	s := newTestSystem(t, algo, grid.Node{X: 0, Y: 0}, grid.Node{X: 1, Y: 0})
	mustRound(t, s)

	for name, err := range map[string]error{
		"contract while contracted": errContract,
		"push without partner":      errPush,
		"pull while contracted":     errPull,
	} {
		var iae *InvalidActionError
		if !errors.As(err, &iae) {
			t.Errorf("%s: expected InvalidActionError, got %v", name, err)
		}
	}
	if errExpand != nil {
		t.Errorf("unexpected error from valid state check: %v", errExpand)
	}
	// The invalid schedulers left no action behind.
	if s.CurrentRound() != 1 {
		t.Errorf("round is %d, want 1", s.CurrentRound())
	}
	if pos := positions(s); pos[0][0] != (grid.Node{X: 0, Y: 0}) {
		t.Errorf("particle 0 moved: %v", pos)
	}
}

func TestAlgorithmErrorAbortsRound(t *testing.T) {
	fail := false
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if fail && v.ID() == 1 {
				return fmt.Errorf("boom")
			}
			if fail && v.ID() == 0 {
				return v.Expand(grid.NNE)
			}
			return nil
		},
	}
	s := newTestSystem(t, algo, grid.Node{X: 0, Y: 0}, grid.Node{X: 1, Y: 0})
	mustRound(t, s)

	fail = true
	err := s.SimulateRound()
	var ae *AlgorithmError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlgorithmError, got %v", err)
	}
	if ae.Particle != 1 || ae.Phase != "move" {
		t.Errorf("wrong blame: particle %d phase %s", ae.Particle, ae.Phase)
	}
	if s.CurrentRound() != 1 {
		t.Errorf("round advanced to %d after abort", s.CurrentRound())
	}
	if s.particle(0).Expanded() {
		t.Error("earlier particle's action survived the abort")
	}
}

func TestAlgorithmPanicIsWrapped(t *testing.T) {
	algo := &testAlgo{
		beep: func(v *ParticleView) error {
			panic("beep panic")
		},
	}
	s := newTestSystem(t, algo, grid.Node{X: 0, Y: 0})

	err := s.SimulateRound()
	var ae *AlgorithmError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlgorithmError, got %v", err)
	}
	if ae.Phase != "beep" || len(ae.Stack) == 0 {
		t.Errorf("panic not captured with stack: phase %s stack %d bytes", ae.Phase, len(ae.Stack))
	}
	if s.CurrentRound() != 0 {
		t.Errorf("round advanced to %d after panic", s.CurrentRound())
	}
}

func TestDirectionPanicBecomesAlgorithmError(t *testing.T) {
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			grid.None.Opposite() // algorithm bug
			return nil
		},
	}
	s := newTestSystem(t, algo, grid.Node{X: 0, Y: 0})
	err := s.SimulateRound()
	var ae *AlgorithmError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlgorithmError from direction misuse, got %v", err)
	}
}

func TestDuplicateAttributePanics(t *testing.T) {
	algo := &testAlgo{
		init: func(v *ParticleView) error {
			v.NewIntAttr("x", 0)
			v.NewIntAttr("x", 1)
			return nil
		},
	}
	s := NewSystem(algo, config.Default())
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate attribute")
		}
	}()
	s.AddParticle(grid.Node{X: 0, Y: 0}, true, grid.E)
}

func TestNeighborQueries(t *testing.T) {
	checked := false
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if v.ID() != 0 {
				return nil
			}
			checked = true
			if !v.HasNeighborAt(grid.E, true) {
				t.Error("expanded neighbor east not found")
			}
			if !v.IsHeadAt(grid.E, true) {
				t.Error("east node should be the neighbor's head")
			}
			if v.IsTailAt(grid.E, true) {
				t.Error("east node reported as tail")
			}
			if !v.IsTailAt(grid.NNE, true) {
				t.Error("north-east node should be the neighbor's tail")
			}
			if v.HasNeighborAt(grid.W, true) {
				t.Error("phantom neighbor west")
			}
			if !v.HasObjectAt(grid.SSW, true) {
				t.Error("object south-west not found")
			}
			nv, ok := v.NeighborAt(grid.E, true)
			if !ok || nv.ID() != 1 {
				t.Errorf("NeighborAt returned %v ok=%v", nv, ok)
			}
			return nil
		},
	}
	s := NewSystem(algo, config.Default())
	if _, err := s.AddParticle(grid.Node{X: 0, Y: 0}, true, grid.E); err != nil {
		t.Fatal(err)
	}
	// Expanded neighbor: head east of particle 0, tail north-east.
	if _, err := s.AddExpandedParticle(grid.Node{X: 1, Y: 0}, grid.SSE, true, grid.E); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddObject(grid.Node{X: 0, Y: -1}, nil); err != nil {
		t.Fatal(err)
	}
	mustRound(t, s)
	if !checked {
		t.Fatal("move hook never ran")
	}
}

func TestFindNeighborsYieldsEachOnce(t *testing.T) {
	var found []int
	var foundTwice []int
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if v.ID() != 0 {
				return nil
			}
			found = found[:0]
			for _, n := range v.FindNeighbors(grid.E, true, 0, 0) {
				found = append(found, n.View.ID())
			}
			foundTwice = foundTwice[:0]
			for _, n := range v.FindNeighbors(grid.E, true, 12, 0) {
				foundTwice = append(foundTwice, n.View.ID())
			}
			return nil
		},
	}
	s := NewSystem(algo, config.Default())
	if _, err := s.AddParticle(grid.Node{X: 0, Y: 0}, true, grid.E); err != nil {
		t.Fatal(err)
	}
	// An expanded neighbor touching particle 0 on two labels.
	if _, err := s.AddExpandedParticle(grid.Node{X: 1, Y: 0}, grid.SSE, true, grid.E); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddParticle(grid.Node{X: -1, Y: 0}, true, grid.E); err != nil {
		t.Fatal(err)
	}
	mustRound(t, s)

	if len(found) != 2 {
		t.Errorf("full sweep found %v, want the two distinct neighbors", found)
	}
	if len(foundTwice) <= len(found) {
		t.Errorf("oversized sweep %v did not double-count", foundTwice)
	}
}

func TestFindNeighborsRespectsLimits(t *testing.T) {
	var got []int
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if v.ID() != 0 {
				return nil
			}
			got = got[:0]
			for _, n := range v.FindNeighbors(grid.E, true, 0, 1) {
				got = append(got, n.View.ID())
			}
			return nil
		},
	}
	s := newTestSystem(t, algo,
		grid.Node{X: 0, Y: 0}, grid.Node{X: 1, Y: 0}, grid.Node{X: -1, Y: 0})
	mustRound(t, s)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("limited search returned %v, want just the east neighbor", got)
	}
}

func TestLastScheduledActionWins(t *testing.T) {
	algo := &testAlgo{
		move: func(v *ParticleView) error {
			if err := v.Expand(grid.E); err != nil {
				return err
			}
			return v.Expand(grid.NNE)
		},
	}
	s := newTestSystem(t, algo, grid.Node{X: 0, Y: 0})
	mustRound(t, s)
	p := s.particle(0)
	if p.Head != (grid.Node{X: 0, Y: 1}) {
		t.Errorf("head at %s, want (0,1) from the second action", p.Head)
	}
}

func TestSetAnchorValidation(t *testing.T) {
	s := newTestSystem(t, &testAlgo{}, grid.Node{X: 0, Y: 0})
	if err := s.SetAnchor(3); err == nil {
		t.Error("expected error for unknown particle")
	}
	if err := s.SetAnchor(0); err != nil {
		t.Errorf("SetAnchor(0): %v", err)
	}
	mustRound(t, s)
	if err := s.SetMarkerToRound(0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnchor(0); !errors.Is(err, ErrInReplay) {
		t.Errorf("expected ErrInReplay, got %v", err)
	}
}
