package sim

import (
	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/history"
)

// Object is a rigid multi-cell obstacle. Objects perform no actions but
// can be bonded by particles and dragged by joint movements.
type Object struct {
	ID  int
	Pos grid.Node
	// Cells are the occupied nodes relative to Pos; the zero vector is
	// always a member.
	Cells []grid.Vector

	posHist *history.History[grid.Node]

	// Per-round joint-movement state.
	jmOffset grid.Vector
	jmForced bool
}

// OccupiedNodes returns the absolute nodes the object covers.
func (o *Object) OccupiedNodes() []grid.Node {
	nodes := make([]grid.Node, len(o.Cells))
	for i, c := range o.Cells {
		nodes[i] = o.Pos.Add(c)
	}
	return nodes
}

// Occupies reports whether the object covers the given node.
func (o *Object) Occupies(n grid.Node) bool {
	d := n.Sub(o.Pos)
	for _, c := range o.Cells {
		if c == d {
			return true
		}
	}
	return false
}

func (o *Object) resetTransients() {
	o.jmOffset = grid.Vector{}
	o.jmForced = false
}

func (o *Object) commit(round int)      { o.posHist.Record(o.Pos, round) }
func (o *Object) restoreLive(round int) { o.Pos = o.posHist.ValueAt(round) }
