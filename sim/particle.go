package sim

import (
	"bytes"
	"fmt"

	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/history"
)

// bondFlags holds one flag per global edge label. Contracted particles
// use the first six entries.
type bondFlags [grid.ExpandedLabels]bool

// signalState holds the beeps and messages a particle received from the
// last beep phase, indexed by partition set of the pin config that was
// in effect.
type signalState struct {
	beeps []bool
	msgs  [][]byte
}

func signalsEqual(a, b *signalState) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if len(a.beeps) != len(b.beeps) || len(a.msgs) != len(b.msgs) {
		return false
	}
	for i := range a.beeps {
		if a.beeps[i] != b.beeps[i] {
			return false
		}
	}
	for i := range a.msgs {
		if !bytes.Equal(a.msgs[i], b.msgs[i]) {
			return false
		}
	}
	return true
}

// Particle is the per-particle component stored in the system's entity
// world. Live fields mirror the history entry at the current round;
// the engine keeps them in sync on commit, rollback and replay.
type Particle struct {
	ID        int
	Chirality bool
	Compass   grid.Direction

	// Live geometry. ExpDir is the global tail-to-head cardinal while
	// expanded, None while contracted. Head is the single node while
	// contracted.
	Head   grid.Node
	ExpDir grid.Direction

	// AutomaticBonds selects the engine-derived bond flags; algorithms
	// can switch to manual flags per particle.
	AutomaticBonds bool

	pins    *PinConfig
	signals *signalState

	headHist *history.History[grid.Node]
	expHist  *history.History[grid.Direction]
	pinHist  *history.History[*PinConfig]
	bondHist *history.History[bondFlags]
	sigHist  *history.History[*signalState]

	attrs     []attribute
	attrIndex map[string]int

	// Per-round transients, reset by resetTransients.
	action       Action
	localActive  bondFlags
	localMarked  bondFlags
	localVisible bondFlags
	bondActive   bondFlags
	bondMarked   bondFlags
	bondVisible  bondFlags
	isHeadOrigin bool
	moveOffset   grid.Vector
	releasedBond bool
	jmOffset     grid.Vector
	queued       bool
	processed    bool
	shapeChanged bool
	moved        bool
	plannedPins  *PinConfig
}

// Expanded reports whether the particle occupies two nodes.
func (p *Particle) Expanded() bool { return p.ExpDir != grid.None }

// Tail returns the tail node; for a contracted particle it equals the
// head.
func (p *Particle) Tail() grid.Node {
	if !p.Expanded() {
		return p.Head
	}
	return grid.Neighbor(p.Head, p.ExpDir.Opposite(), 1)
}

// OccupiedNodes returns the one or two nodes the particle occupies.
func (p *Particle) OccupiedNodes() []grid.Node {
	if !p.Expanded() {
		return []grid.Node{p.Head}
	}
	return []grid.Node{p.Head, p.Tail()}
}

// labelCount returns 6 or 10 depending on the expansion state.
func (p *Particle) labelCount() int { return grid.LabelCount(p.Expanded()) }

// localHeadDir returns the tail-to-head direction in the particle's
// local frame, or None while contracted.
func (p *Particle) localHeadDir() grid.Direction {
	if !p.Expanded() {
		return grid.None
	}
	return grid.GlobalToLocal(p.ExpDir, p.Compass, p.Chirality)
}

// localLabelToGlobal maps a label in the particle's local frame to the
// global frame. The halves agree between frames; only the direction is
// transformed.
func (p *Particle) localLabelToGlobal(label int) int {
	localHead := p.localHeadDir()
	dir := grid.DirectionOfLabel(label, localHead)
	fromHead := grid.IsHeadLabel(label, localHead)
	global := grid.LocalToGlobal(dir, p.Compass, p.Chirality)
	return grid.LabelInDirection(global, p.ExpDir, fromHead)
}

// globalLabelToLocal inverts localLabelToGlobal.
func (p *Particle) globalLabelToLocal(label int) int {
	dir := grid.DirectionOfLabel(label, p.ExpDir)
	fromHead := grid.IsHeadLabel(label, p.ExpDir)
	local := grid.GlobalToLocal(dir, p.Compass, p.Chirality)
	return grid.LabelInDirection(local, p.localHeadDir(), fromHead)
}

// localPinToGlobal maps a local (label, offset) pin to a global pin
// index. Pins on an edge are ordered with the particle's chirality, so
// a clockwise particle mirrors the offset.
func (p *Particle) localPinToGlobal(pin Pin, ppe int) int {
	global := p.localLabelToGlobal(pin.Label)
	offset := pin.Offset
	if !p.Chirality {
		offset = ppe - 1 - offset
	}
	return global*ppe + offset
}

// nodeOfLabel returns the node the labeled edge leaves from, in global
// labeling.
func (p *Particle) nodeOfLabel(label int) grid.Node {
	if grid.IsHeadLabel(label, p.ExpDir) {
		return p.Head
	}
	return p.Tail()
}

// neighborNodeOfLabel returns the node the labeled edge points at.
func (p *Particle) neighborNodeOfLabel(label int) grid.Node {
	return grid.Neighbor(p.nodeOfLabel(label), grid.DirectionOfLabel(label, p.ExpDir), 1)
}

// labelTowards returns the global label of the edge from the given half
// toward an adjacent node.
func (p *Particle) labelTowards(target grid.Node, fromHead bool) int {
	from := p.Head
	if !fromHead {
		from = p.Tail()
	}
	dir := grid.DirectionBetween(from, target)
	if dir == grid.None {
		panic(fmt.Sprintf("sim: node %s not adjacent to particle %d", target, p.ID))
	}
	return grid.LabelInDirection(dir, p.ExpDir, fromHead)
}

// origin returns the node that stays occupied under the scheduled
// action: the head if isHeadOrigin, the tail otherwise.
func (p *Particle) origin() grid.Node {
	if p.isHeadOrigin {
		return p.Head
	}
	return p.Tail()
}

// vacated returns the node a contraction gives up.
func (p *Particle) vacated() grid.Node {
	if p.isHeadOrigin {
		return p.Tail()
	}
	return p.Head
}

// resetTransients clears all per-round scratch state and restores the
// default all-active bond flags.
func (p *Particle) resetTransients() {
	p.action = Action{}
	for i := range p.localActive {
		p.localActive[i] = true
		p.localMarked[i] = false
		p.localVisible[i] = true
		p.bondActive[i] = false
		p.bondMarked[i] = false
		p.bondVisible[i] = false
	}
	p.isHeadOrigin = false
	p.moveOffset = grid.Vector{}
	p.releasedBond = false
	p.jmOffset = grid.Vector{}
	p.queued = false
	p.processed = false
	p.shapeChanged = false
	p.moved = false
	p.plannedPins = nil
}

// commit records the live state for the given round into every history.
func (p *Particle) commit(round int) {
	p.headHist.Record(p.Head, round)
	p.expHist.Record(p.ExpDir, round)
	p.pinHist.Record(p.pins, round)
	p.bondHist.Record(p.bondActive, round)
	p.sigHist.Record(p.signals, round)
	for _, a := range p.attrs {
		a.commit(round)
	}
}

// restoreLive re-reads the live state from the histories at the given
// round.
func (p *Particle) restoreLive(round int) {
	p.Head = p.headHist.ValueAt(round)
	p.ExpDir = p.expHist.ValueAt(round)
	p.pins = p.pinHist.ValueAt(round)
	p.signals = p.sigHist.ValueAt(round)
	for _, a := range p.attrs {
		a.restoreLive(round)
	}
}

// forEachHistory applies f to every history the particle owns.
func (p *Particle) forEachHistory(f func(history.Rewindable)) {
	f(p.headHist)
	f(p.expHist)
	f(p.pinHist)
	f(p.bondHist)
	f(p.sigHist)
	for _, a := range p.attrs {
		f(a)
	}
}
