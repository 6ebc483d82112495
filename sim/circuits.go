package sim

// circuitState is the per-round result of circuit discovery: a
// union-find over all partition sets of the system, with aggregated
// beeps and messages at the roots.
type circuitState struct {
	base   []int // partition-set id offset per particle
	parent []int
	rank   []int
	beep   []bool
	msg    [][]byte
}

// find walks to the root with path compression.
func (c *circuitState) find(x int) int {
	for c.parent[x] != x {
		c.parent[x] = c.parent[c.parent[x]]
		x = c.parent[x]
	}
	return x
}

// union merges two circuits by rank.
func (c *circuitState) union(a, b int) {
	ra, rb := c.find(a), c.find(b)
	if ra == rb {
		return
	}
	if c.rank[ra] < c.rank[rb] {
		ra, rb = rb, ra
	}
	c.parent[rb] = ra
	if c.rank[ra] == c.rank[rb] {
		c.rank[ra]++
	}
}

// circuitBondActive reports whether an edge participates in circuit
// discovery. After a shape change the move-phase flags no longer
// address the new labels, so every edge of the new shape counts.
func (s *System) circuitBondActive(p *Particle, label int) bool {
	if p.shapeChanged {
		return true
	}
	return p.bondActive[label]
}

// discoverCircuits partitions all partition sets into circuits,
// aggregates planned beeps and messages per circuit, and delivers them
// into the particles' received buffers for the next round. Returns the
// sink assignments and the circuit sizes for telemetry.
func (s *System) discoverCircuits() (assignments []CircuitAssignment, sizes []int, beeps, msgs int) {
	n := len(s.particles)
	if n == 0 {
		return nil, nil, 0, 0
	}
	ppe := s.pinsPerEdge

	cs := &circuitState{base: make([]int, n+1)}
	for i, e := range s.particles {
		cs.base[i+1] = cs.base[i] + s.particleMap.Get(e).pins.NumSets()
	}
	total := cs.base[n]
	cs.parent = make([]int, total)
	cs.rank = make([]int, total)
	cs.beep = make([]bool, total)
	cs.msg = make([][]byte, total)
	for i := range cs.parent {
		cs.parent[i] = i
	}

	// Union pin pairs across every bonded edge. Particles are swept in
	// insertion order; each edge is handled once, from the higher side.
	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		for l := 0; l < p.labelCount(); l++ {
			if !s.circuitBondActive(p, l) {
				continue
			}
			target := p.neighborNodeOfLabel(l)
			q, _, ok := s.particleAt(target)
			if !ok || q.ID >= p.ID {
				continue
			}
			lq := q.labelTowards(p.nodeOfLabel(l), target == q.Head)
			if !s.circuitBondActive(q, lq) {
				continue
			}
			for o := 0; o < ppe; o++ {
				pinP := p.pins.pinIndex(l, o)
				pinQ := q.pins.pinIndex(lq, ppe-1-o)
				setP := cs.base[i] + p.pins.setOfPin(pinP)
				setQ := cs.base[q.ID] + q.pins.setOfPin(pinQ)
				cs.union(setP, setQ)
			}
		}
	}

	// Aggregate planned signals at the roots. Sweeping sets in
	// ascending (particle, set) order makes the delivered message the
	// plan of the smallest key, independent of traversal order.
	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		for set := 0; set < p.pins.NumSets(); set++ {
			root := cs.find(cs.base[i] + set)
			if p.pins.beep[set] {
				cs.beep[root] = true
			}
			if cs.msg[root] == nil && p.pins.msg[set] != nil {
				cs.msg[root] = p.pins.msg[set]
			}
		}
	}

	// Count circuit sizes in partition sets. Set slots emptied by the
	// builder carry no pins and do not form circuits.
	sizeOf := make(map[int]int)
	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		for set := 0; set < p.pins.NumSets(); set++ {
			if len(p.pins.sets[set]) == 0 {
				continue
			}
			sizeOf[cs.find(cs.base[i]+set)]++
		}
	}
	sizes = make([]int, 0, len(sizeOf))
	for _, sz := range sizeOf {
		sizes = append(sizes, sz)
	}

	// Deliver into the received buffers, observable next round.
	deliver := s.cfg.Simulation.SendBeepsAndMessages
	for i, e := range s.particles {
		p := s.particleMap.Get(e)
		numSets := p.pins.NumSets()
		sig := &signalState{
			beeps: make([]bool, numSets),
			msgs:  make([][]byte, numSets),
		}
		for set := 0; set < numSets; set++ {
			if len(p.pins.sets[set]) == 0 {
				continue
			}
			root := cs.find(cs.base[i] + set)
			if deliver {
				sig.beeps[set] = cs.beep[root]
				sig.msgs[set] = cs.msg[root]
				if sig.beeps[set] {
					beeps++
				}
				if sig.msgs[set] != nil {
					msgs++
				}
			}
			assignments = append(assignments, CircuitAssignment{
				Particle: p.ID,
				Set:      set,
				Circuit:  root,
				Beep:     cs.beep[root],
				Message:  cs.msg[root] != nil,
			})
		}
		p.signals = sig
	}
	return assignments, sizes, beeps, msgs
}

// applyPinConfigs installs the configurations planned during the beep
// phase. Particles that moved without planning one fall back to the
// singleton pattern; the reset happened at the end of the move phase.
func (s *System) applyPinConfigs() {
	for _, e := range s.particles {
		p := s.particleMap.Get(e)
		if p.plannedPins != nil {
			p.pins = p.plannedPins
			p.plannedPins = nil
		}
	}
}

// resetMovedPins replaces the pin configuration of every particle whose
// shape or position changed with the singleton pattern for its new
// shape. Runs at the end of the move phase; a configuration planned in
// the beep phase overrides it.
func (s *System) resetMovedPins() {
	for _, e := range s.particles {
		p := s.particleMap.Get(e)
		if p.moved {
			p.pins = newSingletonPins(s.pinsPerEdge, p.ExpDir)
		}
	}
}

// clearPlannedSignals drops consumed beep and message plans after
// discovery so they do not leak into the next round.
func (s *System) clearPlannedSignals() {
	for _, e := range s.particles {
		s.particleMap.Get(e).pins.clearPlans()
	}
}
