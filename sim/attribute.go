package sim

import (
	"fmt"
	"strconv"

	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/history"
)

// attribute is the type-erased face of an algorithm attribute, letting
// the system forward replay primitives and serialize histories without
// knowing the value type.
type attribute interface {
	history.Rewindable
	attrName() string
	attrKind() string
	commit(round int)
	restoreLive(round int)
	entries() (rounds []int, values []string, latest int)
	load(rounds []int, values []string, latest int) error
}

// Attr is an algorithm-defined particle attribute with a value history.
// Attributes are created during Init through the particle view and keep
// their identity for the simulation's lifetime.
type Attr[T comparable] struct {
	name string
	kind string
	live T
	hist *history.History[T]
	enc  func(T) string
	dec  func(string) (T, error)
}

func newAttr[T comparable](p *Particle, name, kind string, initial T, round int,
	enc func(T) string, dec func(string) (T, error)) *Attr[T] {
	if _, dup := p.attrIndex[name]; dup {
		panic(fmt.Sprintf("sim: particle %d: duplicate attribute %q", p.ID, name))
	}
	a := &Attr[T]{
		name: name,
		kind: kind,
		live: initial,
		hist: history.NewComparable(initial, round),
		enc:  enc,
		dec:  dec,
	}
	p.attrIndex[name] = len(p.attrs)
	p.attrs = append(p.attrs, a)
	return a
}

// Get returns the attribute value at the current round.
func (a *Attr[T]) Get() T { return a.live }

// Set updates the attribute value. The new value becomes part of the
// round's history when the round commits.
func (a *Attr[T]) Set(v T) { a.live = v }

// ValueAt returns the value effective at a past round.
func (a *Attr[T]) ValueAt(round int) T { return a.hist.ValueAt(round) }

// snapshot returns the last committed value, ignoring in-round writes.
func (a *Attr[T]) snapshot() T { return a.hist.Value() }

func (a *Attr[T]) attrName() string { return a.name }
func (a *Attr[T]) attrKind() string { return a.kind }

func (a *Attr[T]) commit(round int)      { a.hist.Record(a.live, round) }
func (a *Attr[T]) restoreLive(round int) { a.live = a.hist.ValueAt(round) }

func (a *Attr[T]) SetMarker(round int)      { a.hist.SetMarker(round) }
func (a *Attr[T]) ContinueTracking()        { a.hist.ContinueTracking() }
func (a *Attr[T]) CutOffAtMarker()          { a.hist.CutOffAtMarker() }
func (a *Attr[T]) ShiftTimescale(offset int) { a.hist.ShiftTimescale(offset) }

func (a *Attr[T]) entries() ([]int, []string, int) {
	rounds, values := a.hist.Entries()
	enc := make([]string, len(values))
	for i, v := range values {
		enc[i] = a.enc(v)
	}
	return rounds, enc, a.hist.LatestRound()
}

func (a *Attr[T]) load(rounds []int, values []string, latest int) error {
	dec := make([]T, len(values))
	for i, s := range values {
		v, err := a.dec(s)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.name, err)
		}
		dec[i] = v
	}
	h, err := history.FromEntries(func(x, y T) bool { return x == y }, rounds, dec, latest)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", a.name, err)
	}
	a.hist = h
	a.live = h.Value()
	return nil
}

// BoolAttr, IntAttr, StringAttr and DirAttr are the attribute kinds an
// algorithm can attach to a particle.
type (
	BoolAttr   = Attr[bool]
	IntAttr    = Attr[int]
	StringAttr = Attr[string]
	DirAttr    = Attr[grid.Direction]
)

const (
	kindBool   = "bool"
	kindInt    = "int"
	kindString = "string"
	kindDir    = "direction"
)

func encodeBool(v bool) string { return strconv.FormatBool(v) }
func decodeBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

func encodeInt(v int) string { return strconv.Itoa(v) }
func decodeInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func encodeString(v string) string          { return v }
func decodeString(s string) (string, error) { return s, nil }

func encodeDir(v grid.Direction) string { return strconv.Itoa(int(v)) }
func decodeDir(s string) (grid.Direction, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return grid.None, err
	}
	if n < 0 || n > int(grid.None) {
		return grid.None, fmt.Errorf("direction value %d out of range", n)
	}
	return grid.Direction(n), nil
}
