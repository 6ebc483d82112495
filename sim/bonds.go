package sim

import (
	"github.com/pthm-cable/amoebot/grid"
)

// resolveBonds translates every particle's scheduled action into global
// bond flags and movement offsets. It returns whether any particle
// scheduled an action and whether any bond was released; if neither,
// the round runs the static bond pass instead of the joint-movement
// engine. Releases without actions run the engine but skip the
// connectivity check, so a system that only drops bonds does not fault.
func (s *System) resolveBonds() (anyAction, anyRelease bool) {
	for _, e := range s.particles {
		p := s.particleMap.Get(e)
		a := p.action
		p.isHeadOrigin = (!p.Expanded() && a.IsNone()) || (p.Expanded() && a.contractsIntoHead())

		p.moveOffset = grid.Vector{}
		switch a.Kind {
		case ActExpand, ActPush:
			p.moveOffset = grid.Offset(p.actionDirGlobal())
		case ActContractHead, ActPullHead:
			p.moveOffset = grid.Offset(p.ExpDir)
		case ActContractTail, ActPullTail:
			p.moveOffset = grid.Offset(p.ExpDir.Opposite())
		}

		if p.AutomaticBonds {
			s.autoBondFlags(p)
		} else {
			s.manualBondFlags(p)
		}

		if !a.IsNone() {
			anyAction = true
		}
		if p.releasedBond {
			anyRelease = true
		}
	}
	return anyAction, anyRelease
}

// actionDirGlobal resolves the scheduled action's local direction to
// the global frame, or None without a directed action.
func (p *Particle) actionDirGlobal() grid.Direction {
	if p.action.Dir == grid.None {
		return grid.None
	}
	return grid.LocalToGlobal(p.action.Dir, p.Compass, p.Chirality)
}

// pullPartnerLabel returns the global label of the pull handover's
// partner bond: the edge from the vacated half toward the partner.
// Returns -1 for non-pull actions.
func (p *Particle) pullPartnerLabel() int {
	if p.action.Kind != ActPullHead && p.action.Kind != ActPullTail {
		return -1
	}
	partner := grid.Neighbor(p.vacated(), p.actionDirGlobal(), 1)
	return p.labelTowards(partner, !p.isHeadOrigin)
}

// autoBondFlags derives the round's bond flags from the action alone:
// every bond active, expansion and push mark the leading bond,
// contractions mark the vacated half's bonds so neighbors are dragged
// along, releasing a vacated bond whose neighbor is also held from the
// origin half. Pull handovers additionally keep their partner bond.
func (s *System) autoBondFlags(p *Particle) {
	for l := 0; l < p.labelCount(); l++ {
		p.bondActive[l] = true
		p.bondMarked[l] = false
		p.bondVisible[l] = true
	}
	a := p.action
	switch {
	case a.isExpansion():
		d := p.actionDirGlobal()
		lead := grid.LabelInDirection(d, grid.None, true)
		p.bondMarked[lead] = true
		if a.Kind == ActExpand {
			target := grid.Neighbor(p.Head, d, 1)
			if _, taken := s.nodeMap[target]; taken {
				s.log.Warn("expansion into occupied node",
					"particle", p.ID, "node", target.String())
			}
		}
	case a.isContraction():
		partnerLabel := p.pullPartnerLabel()
		origin := p.origin()
		for l := 0; l < p.labelCount(); l++ {
			if grid.IsHeadLabel(l, p.ExpDir) == p.isHeadOrigin {
				continue // origin-half bond stays as is
			}
			node := p.neighborNodeOfLabel(l)
			occ, ok := s.nodeMap[node]
			if !ok {
				continue
			}
			if l != partnerLabel && s.occupantAdjacentTo(occ, origin) {
				// The neighbor keeps its origin-half bond; drop the
				// vacated one so the contraction does not drag it.
				p.bondActive[l] = false
				continue
			}
			p.bondMarked[l] = true
		}
	}
}

// occupantAdjacentTo reports whether the occupant entity also covers a
// node adjacent to the given node.
func (s *System) occupantAdjacentTo(occ occupant, node grid.Node) bool {
	if occ.object {
		o := s.objectMap.Get(occ.entity)
		for _, c := range o.OccupiedNodes() {
			if grid.AreAdjacent(c, node) {
				return true
			}
		}
		return false
	}
	p := s.particleMap.Get(occ.entity)
	for _, c := range p.OccupiedNodes() {
		if grid.AreAdjacent(c, node) {
			return true
		}
	}
	return false
}

// manualBondFlags copies the algorithm-set local flags into the global
// frame. A cleared active flag counts as movement.
func (s *System) manualBondFlags(p *Particle) {
	for l := 0; l < p.labelCount(); l++ {
		g := p.localLabelToGlobal(l)
		p.bondActive[g] = p.localActive[l]
		p.bondMarked[g] = p.localMarked[l]
		p.bondVisible[g] = p.localVisible[l]
		if !p.localActive[l] {
			p.releasedBond = true
		}
	}
}
