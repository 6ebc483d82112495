package sim

import (
	"testing"

	"github.com/pthm-cable/amoebot/config"
	"github.com/pthm-cable/amoebot/grid"
)

// testAlgo is a scriptable algorithm: per-phase hooks keyed off the
// particle view. Nil hooks do nothing.
type testAlgo struct {
	pins int
	init func(v *ParticleView) error
	move func(v *ParticleView) error
	beep func(v *ParticleView) error
	done func(v *ParticleView) bool
}

func (a *testAlgo) PinsPerEdge() int {
	if a.pins == 0 {
		return 1
	}
	return a.pins
}

func (a *testAlgo) Init(v *ParticleView) error {
	if a.init != nil {
		return a.init(v)
	}
	return nil
}

func (a *testAlgo) ActivateMove(v *ParticleView) error {
	if a.move != nil {
		return a.move(v)
	}
	return nil
}

func (a *testAlgo) ActivateBeep(v *ParticleView) error {
	if a.beep != nil {
		return a.beep(v)
	}
	return nil
}

func (a *testAlgo) IsFinished(v *ParticleView) bool {
	if a.done != nil {
		return a.done(v)
	}
	return false
}

// newTestSystem creates a system with the default config, all particles
// counter-clockwise with an east compass so local and global frames
// coincide.
func newTestSystem(t *testing.T, algo Algorithm, nodes ...grid.Node) *System {
	t.Helper()
	s := NewSystem(algo, config.Default())
	for _, n := range nodes {
		if _, err := s.AddParticle(n, true, grid.E); err != nil {
			t.Fatalf("AddParticle(%s): %v", n, err)
		}
	}
	return s
}

// mustRound simulates one round and fails the test on error.
func mustRound(t *testing.T, s *System) {
	t.Helper()
	if err := s.SimulateRound(); err != nil {
		t.Fatalf("SimulateRound: %v", err)
	}
}

// positions returns head (and tail, when expanded) of every particle.
func positions(s *System) map[int][]grid.Node {
	out := make(map[int][]grid.Node, s.NumParticles())
	for i := 0; i < s.NumParticles(); i++ {
		p := s.particle(i)
		out[i] = p.OccupiedNodes()
	}
	return out
}
