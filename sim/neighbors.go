package sim

import (
	"github.com/pthm-cable/amoebot/grid"
)

// Neighbor is one result of a neighbor search: the neighbor's read-only
// view, the local direction it was found in, whether that node touches
// the caller's head, and the caller's local label of the shared edge.
type Neighbor struct {
	View     *NeighborView
	LocalDir grid.Direction
	AtHead   bool
	Label    int
}

// nodeInDir resolves a local cardinal direction from one of the
// particle's halves to the adjacent node.
func (v *ParticleView) nodeInDir(localDir grid.Direction, fromHead bool) grid.Node {
	global := grid.LocalToGlobal(localDir, v.p.Compass, v.p.Chirality)
	from := v.p.Head
	if !fromHead && v.p.Expanded() {
		from = v.p.Tail()
	}
	return grid.Neighbor(from, global, 1)
}

// HasNeighborAt reports whether a particle occupies the node in the
// local direction from the given half. The particle's own other half
// does not count.
func (v *ParticleView) HasNeighborAt(localDir grid.Direction, fromHead bool) bool {
	_, ok := v.NeighborAt(localDir, fromHead)
	return ok
}

// NeighborAt returns the particle occupying the node in the local
// direction from the given half.
func (v *ParticleView) NeighborAt(localDir grid.Direction, fromHead bool) (*NeighborView, bool) {
	target := v.nodeInDir(localDir, fromHead)
	n, _, ok := v.s.particleAt(target)
	if !ok || n.ID == v.p.ID {
		return nil, false
	}
	return &NeighborView{p: n}, true
}

// IsHeadAt reports whether the node in the local direction holds a
// neighbor's head.
func (v *ParticleView) IsHeadAt(localDir grid.Direction, fromHead bool) bool {
	target := v.nodeInDir(localDir, fromHead)
	n, _, ok := v.s.particleAt(target)
	return ok && n.ID != v.p.ID && n.Head == target
}

// IsTailAt reports whether the node in the local direction holds an
// expanded neighbor's tail.
func (v *ParticleView) IsTailAt(localDir grid.Direction, fromHead bool) bool {
	target := v.nodeInDir(localDir, fromHead)
	n, _, ok := v.s.particleAt(target)
	return ok && n.ID != v.p.ID && n.Expanded() && n.Tail() == target
}

// HasObjectAt reports whether an object covers the node in the local
// direction.
func (v *ParticleView) HasObjectAt(localDir grid.Direction, fromHead bool) bool {
	_, ok := v.ObjectAt(localDir, fromHead)
	return ok
}

// ObjectAt returns the object covering the node in the local direction.
func (v *ParticleView) ObjectAt(localDir grid.Direction, fromHead bool) (*ObjectView, bool) {
	target := v.nodeInDir(localDir, fromHead)
	o, _, ok := v.s.objectAt(target)
	if !ok {
		return nil, false
	}
	return &ObjectView{o: o}, true
}

// FindNeighbors collects neighbors by walking the particle's labels,
// starting at the label in startDir and progressing with the chirality
// (or against it). maxSearch bounds the labels probed and maxResults
// the neighbors returned; zero means no bound beyond the defaults. For
// maxSearch up to the label count every neighbor is yielded exactly
// once; larger maxima may double-count.
func (v *ParticleView) FindNeighbors(startDir grid.Direction, withChirality bool, maxSearch, maxResults int) []Neighbor {
	return v.FindNeighborsWithProperty(startDir, withChirality, maxSearch, maxResults, nil)
}

// FindNeighborsWithProperty is FindNeighbors restricted to neighbors
// satisfying prop.
func (v *ParticleView) FindNeighborsWithProperty(startDir grid.Direction, withChirality bool,
	maxSearch, maxResults int, prop func(Neighbor) bool) []Neighbor {

	labels := v.p.labelCount()
	if maxSearch <= 0 {
		maxSearch = labels
	}
	if maxSearch > labels {
		v.s.log.Warn("neighbor search exceeds label count, neighbors may repeat",
			"particle", v.p.ID, "max_search", maxSearch, "labels", labels)
	}
	if maxResults <= 0 {
		maxResults = maxSearch
	}

	start := v.startLabel(startDir)
	localHead := v.p.localHeadDir()
	seen := make(map[int]bool, labels)
	var out []Neighbor
	for i := 0; i < maxSearch && len(out) < maxResults; i++ {
		step := i
		if !withChirality {
			step = -i
		}
		label := ((start+step)%labels + labels) % labels
		dir := grid.DirectionOfLabel(label, localHead)
		fromHead := grid.IsHeadLabel(label, localHead)
		nv, ok := v.NeighborAt(dir, fromHead)
		if !ok {
			continue
		}
		// Within one full sweep each neighbor is reported once even
		// when it touches the particle on several labels.
		if i < labels {
			if seen[nv.ID()] {
				continue
			}
			seen[nv.ID()] = true
		}
		n := Neighbor{View: nv, LocalDir: dir, AtHead: fromHead, Label: label}
		if prop != nil && !prop(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// startLabel picks the first label whose local direction matches
// startDir, preferring the head side of an expanded particle.
func (v *ParticleView) startLabel(startDir grid.Direction) int {
	localHead := v.p.localHeadDir()
	labels := v.p.labelCount()
	for l := 0; l < labels; l++ {
		if grid.IsHeadLabel(l, localHead) && grid.DirectionOfLabel(l, localHead) == startDir {
			return l
		}
	}
	for l := 0; l < labels; l++ {
		if grid.DirectionOfLabel(l, localHead) == startDir {
			return l
		}
	}
	// No label points in startDir (it is not a cardinal direction); fall
	// back to the first label.
	return 0
}
