// Package environment implements the Environment: it owns the population
// keyed by organism id, advances one generation at a time (evaluate,
// apply pressures, select, reproduce), and enforces the population and
// fitness invariants the rest of the system depends on.
package environment

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"evosim/internal/config"
	"evosim/internal/generator"
	"evosim/internal/opcode"
	"evosim/internal/organism"
	"evosim/internal/vm"
)

// initialPrimitiveRangeMin/Max bound the randomized primitive count used
// for every organism except the guaranteed-non-blank seed organism.
const (
	initialPrimitiveRangeMin = 2
	initialPrimitiveRangeMax = 6

	reproductionSafetyMultiplier = 10
)

// Stats mirrors the spec's EnvironmentStats: counters mutated only during
// Update, under the environment lock.
type Stats struct {
	Generation        int
	PopulationSize    int
	BirthsThisGen     int
	DeathsThisGen     int
	AvgFitness        float64
	MinFitness        float64
	MaxFitness        float64
	FitnessVariance   float64
	CumulativeBirths  int
	CumulativeDeaths  int
	LastUpdate        time.Time
}

// Environment owns the population map and advances it one generation at a
// time. All mutation of the population happens under mu, and only during
// the short, bounded snapshot and state-modifying phases of Update; the
// expensive VM-and-analyzer evaluation phase runs with the lock released.
type Environment struct {
	mu sync.Mutex

	cfg         config.Environment
	vmCfg       config.VM
	analyzerCfg config.Analyzer

	rng  *rand.Rand
	seed int64

	population map[uint64]*organism.Organism
	stats      Stats
}

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// New constructs an Environment and seeds its initial population: a
// guaranteed-non-blank organism (one primitive, a circle in a non-black
// color) inserted first, followed by initial_population-1 organisms with
// randomized primitive counts.
func New(cfg config.Environment, vmCfg config.VM, analyzerCfg config.Analyzer, seed int64) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := vmCfg.Validate(); err != nil {
		return nil, err
	}
	if err := analyzerCfg.Validate(); err != nil {
		return nil, err
	}

	e := &Environment{
		cfg:         cfg,
		vmCfg:       vmCfg,
		analyzerCfg: analyzerCfg,
		rng:         newRNG(seed),
		seed:        seed,
		population:  make(map[uint64]*organism.Organism),
	}
	e.seedInitialPopulation()
	e.recomputeStatsLocked()
	return e, nil
}

func (e *Environment) newVM() *vm.VM {
	return vm.NewSeeded(e.vmCfg, e.rng.Int63())
}

func (e *Environment) seedInitialPopulation() {
	m := e.newVM()

	seedBytecode := seedOrganismBytecode()
	seed := organism.New(seedBytecode, m, 0, 0)
	e.population[seed.ID()] = seed

	for i := 1; i < e.cfg.InitialPopulation; i++ {
		n := initialPrimitiveRangeMin + e.rng.Intn(initialPrimitiveRangeMax-initialPrimitiveRangeMin+1)
		gen := generator.New(e.vmCfg, e.rng, generator.DefaultCompositeChance)
		bytecode := gen.GenerateInitial(n)
		o := organism.New(bytecode, m, 0, 0)
		e.population[o.ID()] = o
	}
}

// seedOrganismBytecode is the fixed guaranteed-non-blank starting
// program: a single circle in a bright, non-black color near the middle
// of the canvas.
func seedOrganismBytecode() []byte {
	return []byte{
		byte(opcode.PUSH), 220, byte(opcode.SET_COLOR_R),
		byte(opcode.PUSH), 60, byte(opcode.SET_COLOR_G),
		byte(opcode.PUSH), 60, byte(opcode.SET_COLOR_B),
		byte(opcode.SET_X), 25,
		byte(opcode.SET_Y), 25,
		byte(opcode.PUSH), 10, byte(opcode.DRAW_CIRCLE),
		byte(opcode.HALT),
	}
}

// Population returns a defensive copy of the id-to-organism map.
func (e *Environment) Population() map[uint64]*organism.Organism {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint64]*organism.Organism, len(e.population))
	for id, o := range e.population {
		out[id] = o
	}
	return out
}

// Organism returns the organism with the given id, if it exists.
func (e *Environment) Organism(id uint64) (*organism.Organism, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.population[id]
	return o, ok
}

// Size returns the current population size.
func (e *Environment) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.population)
}

// Stats returns a self-consistent snapshot of the last fully-committed
// generation's stats.
func (e *Environment) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// FullConfig returns the environment/VM/analyzer configuration this
// environment was constructed with.
func (e *Environment) FullConfig() (config.Environment, config.VM, config.Analyzer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.vmCfg, e.analyzerCfg
}

// GetTopFittest returns the count highest-fitness organisms, descending.
func (e *Environment) GetTopFittest(count int) []*organism.Organism {
	e.mu.Lock()
	defer e.mu.Unlock()
	ranked := e.rankedByFitnessLocked()
	if count > len(ranked) {
		count = len(ranked)
	}
	return append([]*organism.Organism(nil), ranked[:count]...)
}

// GetBestOrganism returns the single fittest organism, or nil if the
// population is empty.
func (e *Environment) GetBestOrganism() *organism.Organism {
	best := e.GetTopFittest(1)
	if len(best) == 0 {
		return nil
	}
	return best[0]
}

// GetOrganismStats returns a Stats snapshot for every organism currently
// in the population.
func (e *Environment) GetOrganismStats() []organism.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]organism.Stats, 0, len(e.population))
	for _, o := range e.population {
		out = append(out, o.GetStats())
	}
	return out
}

func (e *Environment) rankedByFitnessLocked() []*organism.Organism {
	ranked := make([]*organism.Organism, 0, len(e.population))
	for _, o := range e.population {
		ranked = append(ranked, o)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].GetFitness() > ranked[j].GetFitness()
	})
	return ranked
}

// Update advances the environment by exactly one generation: snapshot,
// evaluate (lock released), then re-lock to apply pressures, selection,
// elites, and reproduction. A panic during the state-modifying phase is
// recovered and reported as an error; the environment remains on the
// last committed generation.
func (e *Environment) Update() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("environment: generation update failed: %v", r)
		}
	}()

	e.mu.Lock()
	snapshot := make([]*organism.Organism, 0, len(e.population))
	for _, o := range e.population {
		snapshot = append(snapshot, o)
	}
	e.mu.Unlock()

	e.evaluateAll(snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.BirthsThisGen = 0
	e.stats.DeathsThisGen = 0

	elites := e.pickAndRemoveElitesLocked()
	e.applyEnvironmentalPressuresLocked()
	e.applySelectionLocked()
	e.reinsertElitesLocked(elites)

	pool := e.rankedByFitnessLocked()
	e.reproduceLocked(pool)

	e.stats.Generation++
	e.stats.LastUpdate = time.Now()
	e.recomputeStatsLocked()

	return nil
}

func (e *Environment) recomputeStatsLocked() {
	e.stats.PopulationSize = len(e.population)
	if len(e.population) == 0 {
		e.stats.AvgFitness = 0
		e.stats.MinFitness = 0
		e.stats.MaxFitness = 0
		e.stats.FitnessVariance = 0
		return
	}

	var sum, min, max float64
	first := true
	for _, o := range e.population {
		f := o.GetFitness()
		sum += f
		if first || f < min {
			min = f
		}
		if first || f > max {
			max = f
		}
		first = false
	}
	n := float64(len(e.population))
	mean := sum / n

	var variance float64
	for _, o := range e.population {
		d := o.GetFitness() - mean
		variance += d * d
	}
	variance /= n

	e.stats.AvgFitness = mean
	e.stats.MinFitness = min
	e.stats.MaxFitness = max
	e.stats.FitnessVariance = variance
}
