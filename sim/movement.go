package sim

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/amoebot/grid"
)

// bondPair is one resolved bond between two particles, in both
// particles' global labels.
type bondPair struct {
	labelP int
	labelN int
}

// bondDisp is the displacement a bond undergoes in its owner's frame:
// zero for an idle particle and for origin-half bonds, the movement
// offset for marked bonds of the moving half.
func bondDisp(p *Particle, label int) grid.Vector {
	a := p.action
	switch {
	case a.IsNone():
		return grid.Vector{}
	case a.isExpansion():
		if p.bondMarked[label] {
			return p.moveOffset
		}
	case a.isContraction():
		if grid.IsHeadLabel(label, p.ExpDir) == p.isHeadOrigin {
			return grid.Vector{} // origin half
		}
		if p.bondMarked[label] {
			return p.moveOffset
		}
	}
	return grid.Vector{}
}

// handoverBond reports whether the bond is the coordinated push/pull
// pair of a handover: the contracted side expands into the exact node
// the expanded side vacates, and both scheduled the matching actions.
func handoverBond(p, n *Particle, labelP, labelN int) bool {
	return pushPullPair(p, n, labelP) || pushPullPair(n, p, labelN)
}

// pushPullPair checks the directed variant: c pushes, e pulls.
func pushPullPair(c, e *Particle, labelC int) bool {
	if c.Expanded() || !e.Expanded() {
		return false
	}
	if c.action.Kind != ActPush {
		return false
	}
	if e.action.Kind != ActPullHead && e.action.Kind != ActPullTail {
		return false
	}
	vacated := e.vacated()
	if grid.Neighbor(c.Head, c.actionDirGlobal(), 1) != vacated {
		return false
	}
	if grid.Neighbor(vacated, e.actionDirGlobal(), 1) != c.Head {
		return false
	}
	// The bond under consideration must be the handover edge itself.
	return c.neighborNodeOfLabel(labelC) == vacated
}

// pairOffset computes the jm offset of n relative to p required by
// their shared bonds, or a conflict when the bonds disagree or a
// contraction would sever the pair.
func (s *System) pairOffset(p, n *Particle, pairs []bondPair, round int) (grid.Vector, error) {
	var rel grid.Vector
	have := false
	for _, b := range pairs {
		var r grid.Vector
		if !handoverBond(p, n, b.labelP, b.labelN) {
			r = bondDisp(p, b.labelP).Sub(bondDisp(n, b.labelN))
		}
		if !have {
			rel = r
			have = true
			continue
		}
		if rel != r {
			return grid.Vector{}, simErrorf(round,
				"particles %d and %d schedule incompatible movements across %d bonds",
				p.ID, n.ID, len(pairs))
		}
	}
	if err := s.checkContractionKeepsPair(p, n, pairs, true, round); err != nil {
		return grid.Vector{}, err
	}
	if err := s.checkContractionKeepsPair(n, p, pairs, false, round); err != nil {
		return grid.Vector{}, err
	}
	return rel, nil
}

// checkContractionKeepsPair verifies that a contracting particle keeps
// at least one connection to each bonded neighbor: an origin-half bond,
// a marked (dragged) vacated bond, or a handover replacing the node.
func (s *System) checkContractionKeepsPair(x, other *Particle, pairs []bondPair, xIsP bool, round int) error {
	if !x.action.isContraction() {
		return nil
	}
	for _, b := range pairs {
		lx, lo := b.labelP, b.labelN
		if !xIsP {
			lx, lo = b.labelN, b.labelP
		}
		if grid.IsHeadLabel(lx, x.ExpDir) == x.isHeadOrigin {
			return nil // bond at the kept half
		}
		if x.bondMarked[lx] {
			return nil // neighbor dragged along
		}
		if xIsP && handoverBond(x, other, lx, lo) {
			return nil
		}
		if !xIsP && handoverBond(other, x, lo, lx) {
			return nil
		}
	}
	return simErrorf(round, "particle %d contracts away from its bond to particle %d", x.ID, other.ID)
}

// runJointMovements resolves the round's movements: a BFS over the bond
// graph from the anchor assigns every particle a global offset, then
// all particles and objects are placed into a fresh occupancy map.
// Returns the movement and bond records for the sink. The connectivity
// check only applies when a movement action was scheduled; a round of
// pure bond releases leaves unreachable particles in place.
func (s *System) runJointMovements(round int, checkConnectivity bool) ([]ParticleMove, []BondInfo, error) {
	anchorE := s.particles[s.anchor]
	s.particleMap.Get(anchorE).queued = true
	queue := []ecs.Entity{anchorE}
	var bonds []BondInfo

	for qi := 0; qi < len(queue); qi++ {
		e := queue[qi]
		p := s.particleMap.Get(e)
		p.processed = true

		// Group the bonds of this particle by neighbor, keeping label
		// order for determinism.
		type nbBonds struct {
			entity ecs.Entity
			n      *Particle
			pairs  []bondPair
		}
		var order []*nbBonds
		byID := make(map[int]*nbBonds)

		for l := 0; l < p.labelCount(); l++ {
			if !p.bondActive[l] {
				continue
			}
			target := p.neighborNodeOfLabel(l)
			if o, _, ok := s.objectAt(target); ok {
				if err := s.dragObject(p, o, l, round); err != nil {
					return nil, nil, err
				}
				bonds = append(bonds, BondInfo{
					From:    p.nodeOfLabel(l),
					To:      target,
					Visible: p.bondVisible[l],
				})
				continue
			}
			n, ne, ok := s.particleAt(target)
			if !ok || n.ID == p.ID {
				continue
			}
			ln := n.labelTowards(p.nodeOfLabel(l), target == n.Head)
			if !n.bondActive[ln] {
				if s.cfg.Simulation.WarnOnBondDisagreement {
					s.log.Warn("bond flag disagreement, treating bond as absent",
						"particle", p.ID, "label", l, "neighbor", n.ID, "neighbor_label", ln)
				}
				continue
			}
			if n.processed {
				continue // edge handled from the other side
			}
			nb, seen := byID[n.ID]
			if !seen {
				nb = &nbBonds{entity: ne, n: n}
				byID[n.ID] = nb
				order = append(order, nb)
			}
			nb.pairs = append(nb.pairs, bondPair{labelP: l, labelN: ln})
			bonds = append(bonds, BondInfo{
				From:    p.nodeOfLabel(l),
				To:      target,
				Visible: p.bondVisible[l] && n.bondVisible[ln],
			})
		}

		for _, nb := range order {
			rel, err := s.pairOffset(p, nb.n, nb.pairs, round)
			if err != nil {
				return nil, nil, err
			}
			want := p.jmOffset.Add(rel)
			if nb.n.queued {
				if nb.n.jmOffset != want {
					return nil, nil, simErrorf(round,
						"movement conflict: particle %d requires offset %s for particle %d, already %s",
						p.ID, want, nb.n.ID, nb.n.jmOffset)
				}
				continue
			}
			nb.n.jmOffset = want
			nb.n.queued = true
			queue = append(queue, nb.entity)
		}
	}

	if checkConnectivity {
		for _, e := range s.particles {
			if !s.particleMap.Get(e).processed {
				return nil, nil, simErrorf(round,
					"bond graph disconnected: particle %d unreachable from anchor %d",
					s.particleMap.Get(e).ID, s.anchor)
			}
		}
	}

	moves, err := s.placeAll(round)
	if err != nil {
		return nil, nil, err
	}
	return moves, bonds, nil
}

// dragObject applies the offset a particle bond forces on an object.
// Two bonds forcing different offsets is a conflict.
func (s *System) dragObject(p *Particle, o *Object, label int, round int) error {
	off := p.jmOffset.Add(bondDisp(p, label))
	if o.jmForced && o.jmOffset != off {
		return simErrorf(round, "object %d dragged to conflicting offsets %s and %s",
			o.ID, o.jmOffset, off)
	}
	o.jmOffset = off
	o.jmForced = true
	return nil
}

// newGeometry returns the particle's post-round head and expansion
// direction, applying its own motion plus the joint-movement offset.
func newGeometry(p *Particle) (grid.Node, grid.Direction) {
	switch p.action.Kind {
	case ActExpand, ActPush:
		d := p.actionDirGlobal()
		origin := p.Head.Add(p.jmOffset)
		return grid.Neighbor(origin, d, 1), d
	case ActContractHead, ActPullHead:
		return p.Head.Add(p.jmOffset), grid.None
	case ActContractTail, ActPullTail:
		return p.Tail().Add(p.jmOffset), grid.None
	default:
		return p.Head.Add(p.jmOffset), p.ExpDir
	}
}

// placeAll moves every particle and object into a fresh occupancy map,
// detecting collisions, then commits the new positions.
func (s *System) placeAll(round int) ([]ParticleMove, error) {
	newMap := make(map[grid.Node]occupant, len(s.nodeMap))
	moves := make([]ParticleMove, 0, len(s.particles))

	type placement struct {
		head grid.Node
		exp  grid.Direction
	}
	placements := make([]placement, len(s.particles))

	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		head, exp := newGeometry(p)
		placements[i] = placement{head: head, exp: exp}

		if prev, taken := newMap[head]; taken {
			return nil, s.collisionError(prev, p.ID, head, round)
		}
		newMap[head] = occupant{entity: e, head: true}
		if exp != grid.None {
			tail := grid.Neighbor(head, exp.Opposite(), 1)
			if prev, taken := newMap[tail]; taken {
				return nil, s.collisionError(prev, p.ID, tail, round)
			}
			newMap[tail] = occupant{entity: e}
		}
	}

	objPos := make([]grid.Node, len(s.objects))
	for i, e := range s.objects {
		o := s.objectMap.Get(e)
		objPos[i] = o.Pos.Add(o.jmOffset)
		for _, c := range o.Cells {
			n := objPos[i].Add(c)
			if prev, taken := newMap[n]; taken {
				return nil, s.collisionError(prev, o.ID, n, round)
			}
			newMap[n] = occupant{entity: e, object: true}
		}
	}

	// All checks passed; commit.
	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		pl := placements[i]
		moves = append(moves, ParticleMove{
			ID:        p.ID,
			OldHead:   p.Head,
			NewHead:   pl.head,
			OldExpDir: p.ExpDir,
			NewExpDir: pl.exp,
			JMOffset:  p.jmOffset,
		})
		p.shapeChanged = p.ExpDir != pl.exp
		p.moved = p.shapeChanged || p.Head != pl.head
		p.Head = pl.head
		p.ExpDir = pl.exp
	}
	for i, e := range s.objects {
		o := s.objectMap.Get(e)
		o.Pos = objPos[i]
	}
	s.nodeMap = newMap
	return moves, nil
}

func (s *System) collisionError(prev occupant, id int, node grid.Node, round int) error {
	kind := "particle"
	prevID := 0
	if prev.object {
		kind = "object"
		prevID = s.objectMap.Get(prev.entity).ID
	} else {
		prevID = s.particleMap.Get(prev.entity).ID
	}
	return simErrorf(round, "collision at %s between %s %d and particle/object %d",
		node, kind, prevID, id)
}

// staticBondPass publishes the round's bonds when nothing moved. It
// walks the bond graph from the anchor with zero offsets and performs
// no connectivity check.
func (s *System) staticBondPass() []BondInfo {
	if len(s.particles) == 0 {
		return nil
	}
	anchorE := s.particles[s.anchor]
	s.particleMap.Get(anchorE).queued = true
	queue := []ecs.Entity{anchorE}
	var bonds []BondInfo

	for qi := 0; qi < len(queue); qi++ {
		p := s.particleMap.Get(queue[qi])
		p.processed = true
		for l := 0; l < p.labelCount(); l++ {
			if !p.bondActive[l] {
				continue
			}
			target := p.neighborNodeOfLabel(l)
			if _, _, ok := s.objectAt(target); ok {
				bonds = append(bonds, BondInfo{
					From:    p.nodeOfLabel(l),
					To:      target,
					Visible: p.bondVisible[l],
				})
				continue
			}
			n, ne, ok := s.particleAt(target)
			if !ok || n.ID == p.ID {
				continue
			}
			ln := n.labelTowards(p.nodeOfLabel(l), target == n.Head)
			if !n.bondActive[ln] {
				if s.cfg.Simulation.WarnOnBondDisagreement {
					s.log.Warn("bond flag disagreement, treating bond as absent",
						"particle", p.ID, "label", l, "neighbor", n.ID, "neighbor_label", ln)
				}
				continue
			}
			if n.processed {
				continue
			}
			bonds = append(bonds, BondInfo{
				From:    p.nodeOfLabel(l),
				To:      target,
				Visible: p.bondVisible[l] && n.bondVisible[ln],
			})
			if !n.queued {
				n.queued = true
				queue = append(queue, ne)
			}
		}
	}
	return bonds
}
