package sim

import (
	"fmt"

	"github.com/pthm-cable/amoebot/grid"
)

// Pin addresses one pin in a particle's local frame: the local edge
// label and the pin offset on that edge, counted with the particle's
// chirality.
type Pin struct {
	Label  int
	Offset int
}

// PlacementHint is an algorithm-chosen rendering hint for a partition
// set. The engine stores hints but never interprets them.
type PlacementHint uint8

const (
	PlacementAutomatic PlacementHint = iota
	PlacementCentered
	PlacementLine
)

// PinConfig partitions the pins of a particle into partition sets for
// one round. Internally pins are kept in the global frame: pin index
// globalLabel*pinsPerEdge + globalOffset, with headDir the global
// expansion direction of the shape the config belongs to (None for a
// contracted shape). Each set may carry one planned beep and one
// planned message, consumed by circuit discovery at round end.
type PinConfig struct {
	pinsPerEdge int
	headDir     grid.Direction
	setOf       []int
	sets        [][]int

	beep      []bool
	msg       [][]byte
	placement []PlacementHint
}

// newSingletonPins builds the default pattern: one partition set per
// pin.
func newSingletonPins(pinsPerEdge int, headDir grid.Direction) *PinConfig {
	n := grid.LabelCount(headDir != grid.None) * pinsPerEdge
	pc := &PinConfig{
		pinsPerEdge: pinsPerEdge,
		headDir:     headDir,
		setOf:       make([]int, n),
		sets:        make([][]int, n),
		beep:        make([]bool, n),
		msg:         make([][]byte, n),
		placement:   make([]PlacementHint, n),
	}
	for i := 0; i < n; i++ {
		pc.setOf[i] = i
		pc.sets[i] = []int{i}
	}
	return pc
}

// NumPins returns the number of pins of the config's shape.
func (pc *PinConfig) NumPins() int { return len(pc.setOf) }

// NumSets returns the number of partition set slots. Sets emptied by
// MakeSet remain as empty slots so set indices stay stable.
func (pc *PinConfig) NumSets() int { return len(pc.sets) }

// PinsPerEdge returns the per-edge pin count.
func (pc *PinConfig) PinsPerEdge() int { return pc.pinsPerEdge }

// pinIndex converts a global (label, offset) pair to a pin index.
func (pc *PinConfig) pinIndex(label, offset int) int {
	return label*pc.pinsPerEdge + offset
}

// setOfPin returns the partition set holding the global pin index.
func (pc *PinConfig) setOfPin(pin int) int { return pc.setOf[pin] }

// makeSet moves the given global pin indices into a fresh partition set
// and returns its index.
func (pc *PinConfig) makeSet(pins []int) int {
	id := len(pc.sets)
	pc.sets = append(pc.sets, nil)
	pc.beep = append(pc.beep, false)
	pc.msg = append(pc.msg, nil)
	pc.placement = append(pc.placement, PlacementAutomatic)
	for _, pin := range pins {
		old := pc.setOf[pin]
		pc.sets[old] = removeInt(pc.sets[old], pin)
		pc.setOf[pin] = id
		pc.sets[id] = append(pc.sets[id], pin)
	}
	return id
}

// unifyAll moves every pin into one fresh set and returns its index.
func (pc *PinConfig) unifyAll() int {
	all := make([]int, len(pc.setOf))
	for i := range all {
		all[i] = i
	}
	return pc.makeSet(all)
}

func (pc *PinConfig) planBeep(set int) {
	pc.checkSet(set)
	pc.beep[set] = true
}

func (pc *PinConfig) planMessage(set int, msg []byte) {
	pc.checkSet(set)
	pc.msg[set] = msg
}

func (pc *PinConfig) setPlacement(set int, hint PlacementHint) {
	pc.checkSet(set)
	pc.placement[set] = hint
}

func (pc *PinConfig) checkSet(set int) {
	if set < 0 || set >= len(pc.sets) {
		panic(fmt.Sprintf("sim: partition set %d out of range (have %d)", set, len(pc.sets)))
	}
}

// clearPlans drops planned beeps and messages after circuit discovery
// consumed them.
func (pc *PinConfig) clearPlans() {
	for i := range pc.beep {
		pc.beep[i] = false
		pc.msg[i] = nil
	}
}

// canonicalSetOf renumbers partition sets in order of their smallest
// pin, giving a representation independent of builder call order.
func (pc *PinConfig) canonicalSetOf() []int {
	out := make([]int, len(pc.setOf))
	rename := make(map[int]int, len(pc.sets))
	next := 0
	for pin, set := range pc.setOf {
		id, ok := rename[set]
		if !ok {
			id = next
			next++
			rename[set] = id
		}
		out[pin] = id
	}
	return out
}

// pinsEqual compares two configs as partitions, ignoring planned
// signals and placement hints.
func pinsEqual(a, b *PinConfig) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.pinsPerEdge != b.pinsPerEdge || a.headDir != b.headDir || len(a.setOf) != len(b.setOf) {
		return false
	}
	ca, cb := a.canonicalSetOf(), b.canonicalSetOf()
	for i := range ca {
		if ca[i] != cb[i] {
			return false
		}
	}
	return true
}

func removeInt(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
