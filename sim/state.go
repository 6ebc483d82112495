package sim

import (
	"fmt"

	"github.com/pthm-cable/amoebot/config"
	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/history"
	"github.com/pthm-cable/amoebot/savestate"
)

// CaptureState serializes the complete simulation - all histories and
// the replay position - into a save-state record.
func (s *System) CaptureState() *savestate.State {
	st := savestate.New()
	st.EarliestRound = s.earliestRound
	st.CurrentRound = s.currentRound
	st.LatestRound = s.latestRound
	if s.finishedRound >= 0 {
		fr := s.finishedRound
		st.FinishedRound = &fr
	}

	rounds, values := s.anchorHist.Entries()
	st.Anchor = savestate.IntHistory{Rounds: rounds, Values: values, Latest: s.anchorHist.LatestRound()}

	for _, e := range s.particles {
		p := s.particleMap.Get(e)
		st.Particles = append(st.Particles, captureParticle(p))
	}
	for _, e := range s.objects {
		o := s.objectMap.Get(e)
		rounds, nodes := o.posHist.Entries()
		st.Objects = append(st.Objects, savestate.ObjectRecord{
			ID:    o.ID,
			Cells: append([]grid.Vector(nil), o.Cells...),
			Pos:   savestate.NodeHistory{Rounds: rounds, Values: nodes, Latest: o.posHist.LatestRound()},
		})
	}
	return st
}

func captureParticle(p *Particle) savestate.ParticleRecord {
	rec := savestate.ParticleRecord{
		ID:        p.ID,
		Chirality: p.Chirality,
		Compass:   int(p.Compass),
	}

	rounds, nodes := p.headHist.Entries()
	rec.Head = savestate.NodeHistory{Rounds: rounds, Values: nodes, Latest: p.headHist.LatestRound()}

	rounds, dirs := p.expHist.Entries()
	ints := make([]int, len(dirs))
	for i, d := range dirs {
		ints[i] = int(d)
	}
	rec.ExpDir = savestate.IntHistory{Rounds: rounds, Values: ints, Latest: p.expHist.LatestRound()}

	rounds, pins := p.pinHist.Entries()
	pinRecs := make([]savestate.PinConfigRecord, len(pins))
	for i, pc := range pins {
		pinRecs[i] = savestate.PinConfigRecord{
			PinsPerEdge: pc.pinsPerEdge,
			HeadDir:     int(pc.headDir),
			SetOf:       append([]int(nil), pc.setOf...),
		}
	}
	rec.Pins = savestate.PinHistory{Rounds: rounds, Values: pinRecs, Latest: p.pinHist.LatestRound()}

	rounds, flags := p.bondHist.Entries()
	masks := make([]uint16, len(flags))
	for i, f := range flags {
		masks[i] = bondMask(f)
	}
	rec.Bonds = savestate.BondHistory{Rounds: rounds, Values: masks, Latest: p.bondHist.LatestRound()}

	rounds, sigs := p.sigHist.Entries()
	sigRecs := make([]savestate.SignalRecord, len(sigs))
	for i, sig := range sigs {
		sigRecs[i] = savestate.SignalRecord{Beeps: sig.beeps, Msgs: sig.msgs}
	}
	rec.Signals = savestate.SignalHistory{Rounds: rounds, Values: sigRecs, Latest: p.sigHist.LatestRound()}

	for _, a := range p.attrs {
		ar, av, latest := a.entries()
		rec.Attrs = append(rec.Attrs, savestate.AttrRecord{
			Name:   a.attrName(),
			Kind:   a.attrKind(),
			Rounds: ar,
			Values: av,
			Latest: latest,
		})
	}
	return rec
}

func bondMask(f bondFlags) uint16 {
	var m uint16
	for i, b := range f {
		if b {
			m |= 1 << i
		}
	}
	return m
}

func bondUnmask(m uint16) bondFlags {
	var f bondFlags
	for i := range f {
		f[i] = m&(1<<i) != 0
	}
	return f
}

// RestoreSystem rebuilds a system from a save-state record. The
// algorithm must be the one the state was captured with: its Init must
// create the recorded attributes.
func RestoreSystem(algo Algorithm, cfg *config.Config, st *savestate.State, opts ...Option) (*System, error) {
	s := NewSystem(algo, cfg, opts...)

	for i := range st.Particles {
		rec := &st.Particles[i]
		if err := restoreParticle(s, rec); err != nil {
			return nil, fmt.Errorf("sim: restoring particle %d: %w", rec.ID, err)
		}
	}
	for i := range st.Objects {
		rec := &st.Objects[i]
		if len(rec.Pos.Values) == 0 {
			return nil, fmt.Errorf("sim: restoring object %d: empty position history", rec.ID)
		}
		id, err := s.AddObject(rec.Pos.Values[0], rec.Cells)
		if err != nil {
			return nil, fmt.Errorf("sim: restoring object %d: %w", rec.ID, err)
		}
		o := s.objectMap.Get(s.objects[id])
		o.posHist, err = history.FromEntries(
			func(a, b grid.Node) bool { return a == b },
			rec.Pos.Rounds, rec.Pos.Values, rec.Pos.Latest)
		if err != nil {
			return nil, fmt.Errorf("sim: restoring object %d: %w", rec.ID, err)
		}
	}

	var err error
	s.anchorHist, err = history.FromEntries(
		func(a, b int) bool { return a == b },
		st.Anchor.Rounds, st.Anchor.Values, st.Anchor.Latest)
	if err != nil {
		return nil, fmt.Errorf("sim: restoring anchor history: %w", err)
	}

	s.earliestRound = st.EarliestRound
	s.latestRound = st.LatestRound
	s.currentRound = st.LatestRound
	s.finishedRound = -1
	if st.FinishedRound != nil {
		s.finishedRound = *st.FinishedRound
	}
	s.started = st.LatestRound > st.EarliestRound

	if st.CurrentRound < st.LatestRound {
		if err := s.SetMarkerToRound(st.CurrentRound); err != nil {
			return nil, fmt.Errorf("sim: restoring replay position: %w", err)
		}
	} else {
		s.restoreLiveState(s.latestRound)
	}
	return s, nil
}

func restoreParticle(s *System, rec *savestate.ParticleRecord) error {
	if len(rec.Head.Values) == 0 || len(rec.ExpDir.Values) == 0 {
		return fmt.Errorf("empty geometry history")
	}
	compass, err := directionFromInt(rec.Compass)
	if err != nil {
		return err
	}
	expDir, err := directionFromInt(rec.ExpDir.Values[0])
	if err != nil {
		return err
	}
	if _, err := s.addParticle(rec.Head.Values[0], expDir, rec.Chirality, compass); err != nil {
		return err
	}
	p := s.particle(rec.ID)

	p.headHist, err = history.FromEntries(
		func(a, b grid.Node) bool { return a == b },
		rec.Head.Rounds, rec.Head.Values, rec.Head.Latest)
	if err != nil {
		return err
	}

	dirs := make([]grid.Direction, len(rec.ExpDir.Values))
	for i, v := range rec.ExpDir.Values {
		if dirs[i], err = directionFromInt(v); err != nil {
			return err
		}
	}
	p.expHist, err = history.FromEntries(
		func(a, b grid.Direction) bool { return a == b },
		rec.ExpDir.Rounds, dirs, rec.ExpDir.Latest)
	if err != nil {
		return err
	}

	pins := make([]*PinConfig, len(rec.Pins.Values))
	for i := range rec.Pins.Values {
		if pins[i], err = pinConfigFromRecord(&rec.Pins.Values[i]); err != nil {
			return err
		}
	}
	p.pinHist, err = history.FromEntries(pinsEqual, rec.Pins.Rounds, pins, rec.Pins.Latest)
	if err != nil {
		return err
	}

	flags := make([]bondFlags, len(rec.Bonds.Values))
	for i, m := range rec.Bonds.Values {
		flags[i] = bondUnmask(m)
	}
	p.bondHist, err = history.FromEntries(
		func(a, b bondFlags) bool { return a == b },
		rec.Bonds.Rounds, flags, rec.Bonds.Latest)
	if err != nil {
		return err
	}

	sigs := make([]*signalState, len(rec.Signals.Values))
	for i, sr := range rec.Signals.Values {
		sigs[i] = &signalState{beeps: sr.Beeps, msgs: sr.Msgs}
	}
	p.sigHist, err = history.FromEntries(signalsEqual, rec.Signals.Rounds, sigs, rec.Signals.Latest)
	if err != nil {
		return err
	}

	for _, ar := range rec.Attrs {
		idx, ok := p.attrIndex[ar.Name]
		if !ok {
			return fmt.Errorf("algorithm did not create recorded attribute %q", ar.Name)
		}
		a := p.attrs[idx]
		if a.attrKind() != ar.Kind {
			return fmt.Errorf("attribute %q has kind %s, state has %s", ar.Name, a.attrKind(), ar.Kind)
		}
		if err := a.load(ar.Rounds, ar.Values, ar.Latest); err != nil {
			return err
		}
	}
	return nil
}

func directionFromInt(v int) (grid.Direction, error) {
	if v < 0 || v > int(grid.None) {
		return grid.None, fmt.Errorf("direction value %d out of range", v)
	}
	return grid.Direction(v), nil
}

func pinConfigFromRecord(rec *savestate.PinConfigRecord) (*PinConfig, error) {
	headDir, err := directionFromInt(rec.HeadDir)
	if err != nil {
		return nil, err
	}
	want := grid.LabelCount(headDir != grid.None) * rec.PinsPerEdge
	if len(rec.SetOf) != want {
		return nil, fmt.Errorf("pin config has %d pins, want %d", len(rec.SetOf), want)
	}
	numSets := 0
	for _, set := range rec.SetOf {
		if set < 0 {
			return nil, fmt.Errorf("negative partition set %d", set)
		}
		if set+1 > numSets {
			numSets = set + 1
		}
	}
	pc := &PinConfig{
		pinsPerEdge: rec.PinsPerEdge,
		headDir:     headDir,
		setOf:       append([]int(nil), rec.SetOf...),
		sets:        make([][]int, numSets),
		beep:        make([]bool, numSets),
		msg:         make([][]byte, numSets),
		placement:   make([]PlacementHint, numSets),
	}
	for pin, set := range pc.setOf {
		pc.sets[set] = append(pc.sets[set], pin)
	}
	return pc, nil
}
