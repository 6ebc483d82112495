package sim

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/amoebot/grid"
)

// ParticleView is the handle an algorithm callback receives for its
// particle. Views are valid for the duration of one callback and must
// not be retained across rounds.
type ParticleView struct {
	s *System
	e ecs.Entity
	p *Particle
}

// ID returns the particle's stable identifier.
func (v *ParticleView) ID() int { return v.p.ID }

// Expanded reports whether the particle occupies two nodes.
func (v *ParticleView) Expanded() bool { return v.p.Expanded() }

// HeadDirection returns the local tail-to-head direction, or None while
// contracted.
func (v *ParticleView) HeadDirection() grid.Direction { return v.p.localHeadDir() }

// Chirality reports the particle's handedness; true counts
// counter-clockwise.
func (v *ParticleView) Chirality() bool { return v.p.Chirality }

// Round returns the round currently being simulated.
func (v *ParticleView) Round() int { return v.s.currentRound + 1 }

// --- attributes -------------------------------------------------------

// NewBoolAttr creates a boolean attribute. Attributes may only be
// created during Init.
func (v *ParticleView) NewBoolAttr(name string, initial bool) *BoolAttr {
	v.checkInit(name)
	return newAttr(v.p, name, kindBool, initial, v.s.currentRound, encodeBool, decodeBool)
}

// NewIntAttr creates an integer attribute.
func (v *ParticleView) NewIntAttr(name string, initial int) *IntAttr {
	v.checkInit(name)
	return newAttr(v.p, name, kindInt, initial, v.s.currentRound, encodeInt, decodeInt)
}

// NewStringAttr creates a string attribute, typically used for
// algorithm phases.
func (v *ParticleView) NewStringAttr(name string, initial string) *StringAttr {
	v.checkInit(name)
	return newAttr(v.p, name, kindString, initial, v.s.currentRound, encodeString, decodeString)
}

// NewDirAttr creates a direction attribute.
func (v *ParticleView) NewDirAttr(name string, initial grid.Direction) *DirAttr {
	v.checkInit(name)
	return newAttr(v.p, name, kindDir, initial, v.s.currentRound, encodeDir, decodeDir)
}

func (v *ParticleView) checkInit(name string) {
	if v.s.started {
		panic(fmt.Sprintf("sim: particle %d: attribute %q created outside initialization", v.p.ID, name))
	}
}

// --- action scheduling ------------------------------------------------

// Expand schedules an expansion in the local cardinal direction.
func (v *ParticleView) Expand(dir grid.Direction) error {
	if v.p.Expanded() {
		return v.invalid(ActExpand, "particle is already expanded")
	}
	if err := v.checkCardinal(ActExpand, dir); err != nil {
		return err
	}
	v.schedule(Action{Kind: ActExpand, Dir: dir})
	return nil
}

// ContractHead schedules a contraction into the head node.
func (v *ParticleView) ContractHead() error {
	if !v.p.Expanded() {
		return v.invalid(ActContractHead, "particle is contracted")
	}
	v.schedule(Action{Kind: ActContractHead})
	return nil
}

// ContractTail schedules a contraction into the tail node.
func (v *ParticleView) ContractTail() error {
	if !v.p.Expanded() {
		return v.invalid(ActContractTail, "particle is contracted")
	}
	v.schedule(Action{Kind: ActContractTail})
	return nil
}

// PushHandover schedules an expansion into the node at the local
// cardinal dir, which must be occupied by an expanded particle that
// will contract away in the same round.
func (v *ParticleView) PushHandover(dir grid.Direction) error {
	if v.p.Expanded() {
		return v.invalid(ActPush, "particle is already expanded")
	}
	if err := v.checkCardinal(ActPush, dir); err != nil {
		return err
	}
	global := grid.LocalToGlobal(dir, v.p.Compass, v.p.Chirality)
	target := grid.Neighbor(v.p.Head, global, 1)
	n, _, ok := v.s.particleAt(target)
	if !ok || !n.Expanded() {
		return v.invalid(ActPush, "target is not an expanded particle")
	}
	v.schedule(Action{Kind: ActPush, Dir: dir})
	return nil
}

// PullHandoverHead schedules a contraction into the head; the
// contracted particle at the local cardinal dir from the tail expands
// into the vacated tail node.
func (v *ParticleView) PullHandoverHead(dir grid.Direction) error {
	return v.pullHandover(ActPullHead, dir)
}

// PullHandoverTail schedules a contraction into the tail; the
// contracted particle at the local cardinal dir from the head expands
// into the vacated head node.
func (v *ParticleView) PullHandoverTail(dir grid.Direction) error {
	return v.pullHandover(ActPullTail, dir)
}

func (v *ParticleView) pullHandover(kind ActionKind, dir grid.Direction) error {
	if !v.p.Expanded() {
		return v.invalid(kind, "particle is contracted")
	}
	if err := v.checkCardinal(kind, dir); err != nil {
		return err
	}
	vacated := v.p.Tail()
	if kind == ActPullTail {
		vacated = v.p.Head
	}
	global := grid.LocalToGlobal(dir, v.p.Compass, v.p.Chirality)
	partner := grid.Neighbor(vacated, global, 1)
	n, _, ok := v.s.particleAt(partner)
	if !ok || n.Expanded() {
		return v.invalid(kind, "partner is not a contracted particle")
	}
	v.schedule(Action{Kind: kind, Dir: dir})
	return nil
}

func (v *ParticleView) checkCardinal(kind ActionKind, dir grid.Direction) error {
	if !dir.IsCardinal() {
		return v.invalid(kind, fmt.Sprintf("direction %s is not cardinal", dir))
	}
	return nil
}

func (v *ParticleView) invalid(kind ActionKind, reason string) error {
	return &InvalidActionError{Particle: v.p.ID, Action: kind, Reason: reason}
}

func (v *ParticleView) schedule(a Action) {
	if !v.p.action.IsNone() {
		v.s.log.Warn("action rescheduled, last one wins",
			"particle", v.p.ID, "previous", v.p.action.Kind.String(), "new", a.Kind.String())
	}
	v.p.action = a
}

// --- bonds ------------------------------------------------------------

// SetAutomaticBonds switches the particle between engine-derived and
// algorithm-set bond flags.
func (v *ParticleView) SetAutomaticBonds(auto bool) { v.p.AutomaticBonds = auto }

// ReleaseBond clears the active flag of the local label's bond for this
// round. Releasing counts as movement.
func (v *ParticleView) ReleaseBond(label int) {
	v.checkLabel(label)
	v.p.localActive[label] = false
}

// MarkBond marks the local label's bond for handover transfer: it moves
// with the particle's non-origin half.
func (v *ParticleView) MarkBond(label int) {
	v.checkLabel(label)
	v.p.localMarked[label] = true
}

// SetBondVisible sets the rendering visibility of the local label's
// bond. The engine stores the flag for the sink only.
func (v *ParticleView) SetBondVisible(label int, visible bool) {
	v.checkLabel(label)
	v.p.localVisible[label] = visible
}

func (v *ParticleView) checkLabel(label int) {
	if label < 0 || label >= v.p.labelCount() {
		panic(fmt.Sprintf("sim: particle %d: label %d out of range", v.p.ID, label))
	}
}

// --- pins and signals -------------------------------------------------

// PinsPerEdge returns the algorithm's per-edge pin count.
func (v *ParticleView) PinsPerEdge() int { return v.s.pinsPerEdge }

// PlanPinConfig starts a new pin configuration for the particle's
// current shape, initialized to the singleton pattern. The returned
// builder operates in the particle's local frame; the configuration
// replaces the current one when the round commits.
func (v *ParticleView) PlanPinConfig() *PinConfigBuilder {
	pc := newSingletonPins(v.s.pinsPerEdge, v.p.ExpDir)
	v.p.plannedPins = pc
	return &PinConfigBuilder{p: v.p, pc: pc}
}

// BeepOnSet plans a beep on a partition set of the effective pin
// configuration: the one built this round, or the current one.
func (v *ParticleView) BeepOnSet(set int) {
	v.effectivePins().planBeep(set)
}

// SendMessageOnSet plans a message on a partition set of the effective
// pin configuration.
func (v *ParticleView) SendMessageOnSet(set int, msg []byte) {
	v.effectivePins().planMessage(set, msg)
}

func (v *ParticleView) effectivePins() *PinConfig {
	if v.p.plannedPins != nil {
		return v.p.plannedPins
	}
	return v.p.pins
}

// ReceivedBeep reports whether the partition set received a beep in the
// previous round. Sets that no longer exist report false.
func (v *ParticleView) ReceivedBeep(set int) bool {
	sig := v.p.signals
	if sig == nil || set < 0 || set >= len(sig.beeps) {
		return false
	}
	return sig.beeps[set]
}

// ReceivedMessage returns the message the partition set received in the
// previous round, or nil.
func (v *ParticleView) ReceivedMessage(set int) []byte {
	sig := v.p.signals
	if sig == nil || set < 0 || set >= len(sig.msgs) {
		return nil
	}
	return sig.msgs[set]
}

// HeardBeep reports whether any partition set received a beep in the
// previous round.
func (v *ParticleView) HeardBeep() bool {
	sig := v.p.signals
	if sig == nil {
		return false
	}
	for _, b := range sig.beeps {
		if b {
			return true
		}
	}
	return false
}

// PinConfigBuilder assembles a pin configuration in the particle's
// local frame.
type PinConfigBuilder struct {
	p  *Particle
	pc *PinConfig
}

// MakeSet moves the given local pins into a fresh partition set and
// returns its index.
func (b *PinConfigBuilder) MakeSet(pins ...Pin) int {
	global := make([]int, len(pins))
	for i, pin := range pins {
		b.checkPin(pin)
		global[i] = b.p.localPinToGlobal(pin, b.pc.pinsPerEdge)
	}
	return b.pc.makeSet(global)
}

// UnifyAll joins every pin into a single partition set and returns its
// index.
func (b *PinConfigBuilder) UnifyAll() int { return b.pc.unifyAll() }

// SendBeep plans a beep on the given partition set.
func (b *PinConfigBuilder) SendBeep(set int) { b.pc.planBeep(set) }

// SendMessage plans a message on the given partition set.
func (b *PinConfigBuilder) SendMessage(set int, msg []byte) { b.pc.planMessage(set, msg) }

// SetPlacement stores a rendering hint for the given partition set.
func (b *PinConfigBuilder) SetPlacement(set int, hint PlacementHint) { b.pc.setPlacement(set, hint) }

func (b *PinConfigBuilder) checkPin(pin Pin) {
	if pin.Label < 0 || pin.Label >= b.p.labelCount() {
		panic(fmt.Sprintf("sim: particle %d: pin label %d out of range", b.p.ID, pin.Label))
	}
	if pin.Offset < 0 || pin.Offset >= b.pc.pinsPerEdge {
		panic(fmt.Sprintf("sim: particle %d: pin offset %d out of range", b.p.ID, pin.Offset))
	}
}

// --- neighbor read access ---------------------------------------------

// NeighborView is the read-only handle to another particle returned by
// neighbor queries.
type NeighborView struct {
	p *Particle
}

// ID returns the neighbor's identifier.
func (n *NeighborView) ID() int { return n.p.ID }

// Expanded reports the neighbor's expansion state.
func (n *NeighborView) Expanded() bool { return n.p.Expanded() }

// BoolAttr reads a neighbor's boolean attribute by name.
func (n *NeighborView) BoolAttr(name string) (bool, bool) {
	return readAttr[bool](n.p, name)
}

// IntAttr reads a neighbor's integer attribute by name.
func (n *NeighborView) IntAttr(name string) (int, bool) {
	return readAttr[int](n.p, name)
}

// StringAttr reads a neighbor's string attribute by name.
func (n *NeighborView) StringAttr(name string) (string, bool) {
	return readAttr[string](n.p, name)
}

// DirAttr reads a neighbor's direction attribute by name.
func (n *NeighborView) DirAttr(name string) (grid.Direction, bool) {
	return readAttr[grid.Direction](n.p, name)
}

// readAttr resolves a neighbor attribute to its value at the start of
// the round. All particles are activated on the same snapshot, so a
// neighbor's in-round writes stay invisible until the next round.
func readAttr[T comparable](p *Particle, name string) (T, bool) {
	var zero T
	i, ok := p.attrIndex[name]
	if !ok {
		return zero, false
	}
	a, ok := p.attrs[i].(*Attr[T])
	if !ok {
		return zero, false
	}
	return a.snapshot(), true
}

// ObjectView is the read-only handle to an object.
type ObjectView struct {
	o *Object
}

// ID returns the object's identifier.
func (o *ObjectView) ID() int { return o.o.ID }

// Size returns the object's cell count.
func (o *ObjectView) Size() int { return len(o.o.Cells) }
