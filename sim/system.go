// Package sim implements the round-based amoebot simulation engine:
// particle and object state, the fully synchronous round scheduler,
// bond resolution, the joint-movement engine, circuit discovery with
// signal distribution, and the reversible history layer.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/amoebot/config"
	"github.com/pthm-cable/amoebot/grid"
	"github.com/pthm-cable/amoebot/history"
	"github.com/pthm-cable/amoebot/telemetry"
)

// occupant is one entry of the node occupancy map.
type occupant struct {
	entity ecs.Entity
	object bool
	head   bool
}

// System owns the particles, objects and the simulation clock. All
// mutation goes through the engine; algorithm callbacks only reach
// their own particle through a ParticleView.
type System struct {
	algo Algorithm
	cfg  *config.Config
	log  *slog.Logger
	sink Sink
	col  *telemetry.Collector

	world       *ecs.World
	particleMap *ecs.Map1[Particle]
	objectMap   *ecs.Map1[Object]
	particles   []ecs.Entity
	objects     []ecs.Entity
	nodeMap     map[grid.Node]occupant

	pinsPerEdge int

	anchor     int
	anchorHist *history.History[int]

	earliestRound int
	currentRound  int
	latestRound   int
	finishedRound int // -1 while unfinished
	tracking      bool
	started       bool
}

// Option configures a System at construction.
type Option func(*System)

// WithLogger sets the structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *System) { s.log = l } }

// WithSink attaches a consumer for per-round snapshots.
func WithSink(sink Sink) Option { return func(s *System) { s.sink = sink } }

// WithCollector attaches a telemetry collector.
func WithCollector(c *telemetry.Collector) Option { return func(s *System) { s.col = c } }

// NewSystem creates an empty system in initialization mode.
func NewSystem(algo Algorithm, cfg *config.Config, opts ...Option) *System {
	if cfg == nil {
		cfg = config.Default()
	}
	ppe := algo.PinsPerEdge()
	if ppe < 1 {
		panic(fmt.Sprintf("sim: algorithm reports %d pins per edge", ppe))
	}
	world := ecs.NewWorld()
	s := &System{
		algo:          algo,
		cfg:           cfg,
		log:           slog.Default(),
		world:         world,
		particleMap:   ecs.NewMap1[Particle](world),
		objectMap:     ecs.NewMap1[Object](world),
		nodeMap:       make(map[grid.Node]occupant),
		pinsPerEdge:   ppe,
		anchorHist:    history.NewComparable(0, 0),
		finishedRound: -1,
		tracking:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NumParticles returns the particle count.
func (s *System) NumParticles() int { return len(s.particles) }

// NumObjects returns the object count.
func (s *System) NumObjects() int { return len(s.objects) }

// PinsPerEdge returns the algorithm's per-edge pin count.
func (s *System) PinsPerEdge() int { return s.pinsPerEdge }

// AddParticle adds a contracted particle in initialization mode and
// returns its ID. Chirality true is counter-clockwise; compass is the
// global cardinal the particle's local east points at.
func (s *System) AddParticle(node grid.Node, chirality bool, compass grid.Direction) (int, error) {
	return s.addParticle(node, grid.None, chirality, compass)
}

// AddExpandedParticle adds an expanded particle occupying head and the
// node opposite expDir from it.
func (s *System) AddExpandedParticle(head grid.Node, expDir grid.Direction, chirality bool, compass grid.Direction) (int, error) {
	if !expDir.IsCardinal() {
		return 0, fmt.Errorf("sim: expansion direction %s is not cardinal", expDir)
	}
	return s.addParticle(head, expDir, chirality, compass)
}

func (s *System) addParticle(head grid.Node, expDir grid.Direction, chirality bool, compass grid.Direction) (int, error) {
	if s.started {
		return 0, ErrStarted
	}
	if !compass.IsCardinal() {
		return 0, fmt.Errorf("sim: compass %s is not cardinal", compass)
	}
	id := len(s.particles)
	p := Particle{
		ID:             id,
		Chirality:      chirality,
		Compass:        compass,
		Head:           head,
		ExpDir:         expDir,
		AutomaticBonds: s.cfg.Simulation.AutomaticBonds,
		attrIndex:      make(map[string]int),
	}
	nodes := p.OccupiedNodes()
	for _, n := range nodes {
		if _, taken := s.nodeMap[n]; taken {
			return 0, fmt.Errorf("%w: %s", ErrNodeOccupied, n)
		}
	}

	p.pins = newSingletonPins(s.pinsPerEdge, expDir)
	p.signals = &signalState{}
	p.headHist = history.NewComparable(head, 0)
	p.expHist = history.NewComparable(expDir, 0)
	p.pinHist = history.New(pinsEqual, p.pins, 0)
	p.bondHist = history.NewComparable(bondFlags{}, 0)
	p.sigHist = history.New(signalsEqual, p.signals, 0)
	p.resetTransients()

	e := s.particleMap.NewEntity(&p)
	s.particles = append(s.particles, e)
	s.nodeMap[head] = occupant{entity: e, head: true}
	if expDir != grid.None {
		s.nodeMap[s.particleMap.Get(e).Tail()] = occupant{entity: e}
	}

	if err := s.algo.Init(s.view(e)); err != nil {
		return 0, &AlgorithmError{Particle: id, Phase: "init", Err: err}
	}
	return id, nil
}

// AddObject adds a rigid object anchored at pos. Cells are relative to
// pos; the zero vector is added when missing.
func (s *System) AddObject(pos grid.Node, cells []grid.Vector) (int, error) {
	if s.started {
		return 0, ErrStarted
	}
	hasOrigin := false
	for _, c := range cells {
		if c.IsZero() {
			hasOrigin = true
			break
		}
	}
	if !hasOrigin {
		cells = append([]grid.Vector{{}}, cells...)
	}
	id := len(s.objects)
	o := Object{
		ID:      id,
		Pos:     pos,
		Cells:   append([]grid.Vector(nil), cells...),
		posHist: history.NewComparable(pos, 0),
	}
	for _, n := range o.OccupiedNodes() {
		if _, taken := s.nodeMap[n]; taken {
			return 0, fmt.Errorf("%w: %s", ErrNodeOccupied, n)
		}
	}
	e := s.objectMap.NewEntity(&o)
	s.objects = append(s.objects, e)
	for _, n := range s.objectMap.Get(e).OccupiedNodes() {
		s.nodeMap[n] = occupant{entity: e, object: true}
	}
	return id, nil
}

// SetAnchor designates the particle whose position is fixed during
// joint movements.
func (s *System) SetAnchor(id int) error {
	if id < 0 || id >= len(s.particles) {
		return fmt.Errorf("sim: no particle %d", id)
	}
	if !s.tracking {
		return ErrInReplay
	}
	s.anchor = id
	s.anchorHist.Record(id, s.currentRound)
	return nil
}

// Anchor returns the current anchor particle's ID.
func (s *System) Anchor() int { return s.anchor }

// particle returns the component of the i-th particle.
func (s *System) particle(i int) *Particle { return s.particleMap.Get(s.particles[i]) }

// particleAt resolves a node to a particle, if one occupies it.
func (s *System) particleAt(n grid.Node) (*Particle, ecs.Entity, bool) {
	occ, ok := s.nodeMap[n]
	if !ok || occ.object {
		return nil, ecs.Entity{}, false
	}
	return s.particleMap.Get(occ.entity), occ.entity, true
}

// objectAt resolves a node to an object, if one covers it.
func (s *System) objectAt(n grid.Node) (*Object, ecs.Entity, bool) {
	occ, ok := s.nodeMap[n]
	if !ok || !occ.object {
		return nil, ecs.Entity{}, false
	}
	return s.objectMap.Get(occ.entity), occ.entity, true
}

// view wraps a particle entity for an algorithm callback.
func (s *System) view(e ecs.Entity) *ParticleView {
	return &ParticleView{s: s, e: e, p: s.particleMap.Get(e)}
}

// rebuildNodeMap reconstructs the occupancy index from live positions.
func (s *System) rebuildNodeMap() {
	s.nodeMap = make(map[grid.Node]occupant, len(s.nodeMap))
	for _, e := range s.particles {
		p := s.particleMap.Get(e)
		s.nodeMap[p.Head] = occupant{entity: e, head: true}
		if p.Expanded() {
			s.nodeMap[p.Tail()] = occupant{entity: e}
		}
	}
	for _, e := range s.objects {
		o := s.objectMap.Get(e)
		for _, n := range o.OccupiedNodes() {
			s.nodeMap[n] = occupant{entity: e, object: true}
		}
	}
}

// restoreLiveState re-reads every particle's and object's live state
// from the histories at the given round and rebuilds the occupancy
// index.
func (s *System) restoreLiveState(round int) {
	for _, e := range s.particles {
		s.particleMap.Get(e).restoreLive(round)
	}
	for _, e := range s.objects {
		s.objectMap.Get(e).restoreLive(round)
	}
	s.anchor = s.anchorHist.ValueAt(round)
	s.rebuildNodeMap()
}

// forEachHistory applies f to every history in the system.
func (s *System) forEachHistory(f func(history.Rewindable)) {
	f(s.anchorHist)
	for _, e := range s.particles {
		s.particleMap.Get(e).forEachHistory(f)
	}
	for _, e := range s.objects {
		f(s.objectMap.Get(e).posHist)
	}
}

// clearTransients resets per-round scratch state on all particles and
// objects.
func (s *System) clearTransients() {
	for _, e := range s.particles {
		s.particleMap.Get(e).resetTransients()
	}
	for _, e := range s.objects {
		s.objectMap.Get(e).resetTransients()
	}
}
