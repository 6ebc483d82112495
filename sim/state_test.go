package sim

import (
	"path/filepath"
	"testing"

	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/savestate"
)

func TestCaptureRestoreRoundTrip(t *testing.T) {
	s, algo := newOscillatorSystem(t)
	for r := 0; r < 7; r++ {
		mustRound(t, s)
	}
	want := observe(s, algo)

	st := s.CaptureState()
	if st.Version != savestate.Version || st.RunID == "" {
		t.Fatalf("state header incomplete: %+v", st)
	}

	algo2 := &oscillator{steps: map[int]*IntAttr{}}
	s2, err := RestoreSystem(algo2, nil, st)
	if err != nil {
		t.Fatalf("RestoreSystem: %v", err)
	}
	if s2.CurrentRound() != 7 || s2.LatestRound() != 7 || !s2.IsTracking() {
		t.Fatalf("restored clock %d/%d tracking %v",
			s2.CurrentRound(), s2.LatestRound(), s2.IsTracking())
	}
	if got := observe(s2, algo2); !equalObserved(got, want) {
		t.Fatalf("restored state %v, want %v", got, want)
	}

	// The restored system replays the same past.
	if err := s2.SetMarkerToRound(3); err != nil {
		t.Fatal(err)
	}
	if got := algo2.steps[0].Get(); got != 3 {
		t.Errorf("restored steps at round 3 = %d, want 3", got)
	}
	s2.ContinueTracking()

	// And it keeps simulating.
	mustRound(t, s2)
	if s2.LatestRound() != 8 {
		t.Errorf("restored system stuck at round %d", s2.LatestRound())
	}
}

func TestCaptureDuringReplayKeepsPosition(t *testing.T) {
	s, algo := newOscillatorSystem(t)
	for r := 0; r < 5; r++ {
		mustRound(t, s)
	}
	if err := s.SetMarkerToRound(2); err != nil {
		t.Fatal(err)
	}
	st := s.CaptureState()

	algo2 := &oscillator{steps: map[int]*IntAttr{}}
	s2, err := RestoreSystem(algo2, nil, st)
	if err != nil {
		t.Fatalf("RestoreSystem: %v", err)
	}
	if s2.CurrentRound() != 2 || s2.LatestRound() != 5 || s2.IsTracking() {
		t.Fatalf("replay position lost: %d/%d tracking %v",
			s2.CurrentRound(), s2.LatestRound(), s2.IsTracking())
	}
	if got := algo2.steps[0].Get(); got != 2 {
		t.Errorf("restored replay attr = %d, want 2", got)
	}
	_ = algo
}

func TestSaveLoadFileRoundTrip(t *testing.T) {
	s, _ := newOscillatorSystem(t)
	if _, err := s.AddObject(grid.Node{X: 5, Y: 5}, []grid.Vector{{}, {X: 1, Y: 0}}); err != nil {
		t.Fatal(err)
	}
	for r := 0; r < 4; r++ {
		mustRound(t, s)
	}
	st := s.CaptureState()

	path := filepath.Join(t.TempDir(), "runs", "state.json")
	if err := savestate.Save(path, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := savestate.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.RunID != st.RunID || back.LatestRound != st.LatestRound {
		t.Errorf("header changed: %+v vs %+v", back, st)
	}
	if len(back.Particles) != len(st.Particles) {
		t.Fatalf("particle count changed: %d vs %d", len(back.Particles), len(st.Particles))
	}

	algo2 := &oscillator{steps: map[int]*IntAttr{}}
	s2, err := RestoreSystem(algo2, nil, back)
	if err != nil {
		t.Fatalf("RestoreSystem from file: %v", err)
	}
	if s2.LatestRound() != s.LatestRound() {
		t.Errorf("restored latest %d, want %d", s2.LatestRound(), s.LatestRound())
	}
}

func TestRestoreRejectsWrongAlgorithm(t *testing.T) {
	s, _ := newOscillatorSystem(t)
	for r := 0; r < 2; r++ {
		mustRound(t, s)
	}
	st := s.CaptureState()

	// An algorithm that creates no attributes cannot host the record.
	if _, err := RestoreSystem(&testAlgo{}, nil, st); err == nil {
		t.Error("expected error restoring with a mismatched algorithm")
	}
}
