// Package organism implements the organism model: an entity that owns its
// bytecode genotype and rendered phenotype image, and that can produce
// offspring either asexually (Replicate) or sexually (ReproduceWith) via
// structure-aware crossover.
package organism

import (
	"sync"
	"sync/atomic"
	"time"

	"evosim/internal/vm"
)

// nextID is the process-wide monotonic organism id counter. IDs are
// assigned once at construction and never reused; overflow of a uint64
// counter is not a concern at any realistic runtime.
var nextID uint64

func allocateID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

// Stats is the introspectable subset of an organism's bookkeeping fields,
// returned by GetStats without exposing the bytecode or phenotype.
type Stats struct {
	ID                  uint64
	Generation          int
	ParentID            uint64
	FitnessScore        float64
	BirthTime           time.Time
	LastReplicationTime time.Time
	ReplicationCount    int
	MutationCount       int
	Age                 time.Duration
}

// Organism owns bytecode, a derived phenotype, and identity/lineage
// metadata. Every mutable field is guarded by mu so an organism can be
// safely evaluated and mutated without the caller holding the
// environment's lock.
type Organism struct {
	mu sync.Mutex

	id           uint64
	generation   int
	parentID     uint64
	fitnessScore float64

	birthTime           time.Time
	lastReplicationTime time.Time
	replicationCount    int
	mutationCount       int

	bytecode  []byte
	phenotype *vm.Image
}

// New constructs an organism from bytecode, immediately executing m to
// populate its phenotype, per the invariant that a phenotype is always
// exactly what the VM produces from the current bytecode.
func New(bytecode []byte, m *vm.VM, generation int, parentID uint64) *Organism {
	o := &Organism{
		id:         allocateID(),
		generation: generation,
		parentID:   parentID,
		bytecode:   append([]byte(nil), bytecode...),
		birthTime:  time.Now(),
	}
	o.render(m)
	return o
}

func (o *Organism) render(m *vm.VM) {
	o.phenotype = m.Execute(o.bytecode)
}

// ID returns the organism's unique id.
func (o *Organism) ID() uint64 {
	return o.id
}

// Generation returns the organism's generation number.
func (o *Organism) Generation() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// ParentID returns the id of the organism this one was replicated or
// reproduced from, or 0 if it has no parent (e.g. an immigrant).
func (o *Organism) ParentID() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.parentID
}

// SetFitness assigns the organism's fitness score, used by the
// environment's evaluation phase.
func (o *Organism) SetFitness(fitness float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fitnessScore = fitness
}

// GetFitness returns the organism's current fitness score.
func (o *Organism) GetFitness() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fitnessScore
}

// GetBytecode returns a defensive copy of the organism's genotype.
func (o *Organism) GetBytecode() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]byte(nil), o.bytecode...)
}

// GetPhenotype returns the organism's rendered phenotype image, which is
// always exactly what executing GetBytecode() through the VM produces.
func (o *Organism) GetPhenotype() *vm.Image {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phenotype == nil {
		return nil
	}
	return o.phenotype.Clone()
}

// GetAge returns how long the organism has existed.
func (o *Organism) GetAge() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Since(o.birthTime)
}

// GetStats returns a snapshot of the organism's bookkeeping fields.
func (o *Organism) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		ID:                  o.id,
		Generation:          o.generation,
		ParentID:            o.parentID,
		FitnessScore:        o.fitnessScore,
		BirthTime:           o.birthTime,
		LastReplicationTime: o.lastReplicationTime,
		ReplicationCount:    o.replicationCount,
		MutationCount:       o.mutationCount,
		Age:                 time.Since(o.birthTime),
	}
}

// Record is the structured serialization of an organism, matching the
// per-organism entry of the persisted checkpoint format.
type Record struct {
	ID           uint64
	Generation   int
	ParentID     uint64
	FitnessScore float64
	Bytecode     []byte
}

// Serialize returns a structured record suitable for checkpointing.
func (o *Organism) Serialize() Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Record{
		ID:           o.id,
		Generation:   o.generation,
		ParentID:     o.parentID,
		FitnessScore: o.fitnessScore,
		Bytecode:     append([]byte(nil), o.bytecode...),
	}
}

// Deserialize restores an organism from a Record, re-executing m against
// the record's bytecode to rebuild the phenotype (phenotypes are never
// themselves persisted). The organism's original id is preserved so
// lineage links in a reloaded checkpoint remain valid; the process-wide
// id counter is advanced past it so freshly-created organisms never
// collide with a restored one.
func Deserialize(rec Record, m *vm.VM) *Organism {
	bumpNextIDPast(rec.ID)
	o := &Organism{
		id:           rec.ID,
		generation:   rec.Generation,
		parentID:     rec.ParentID,
		fitnessScore: rec.FitnessScore,
		bytecode:     append([]byte(nil), rec.Bytecode...),
		birthTime:    time.Now(),
	}
	o.render(m)
	return o
}

func bumpNextIDPast(id uint64) {
	for {
		cur := atomic.LoadUint64(&nextID)
		if id <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&nextID, cur, id) {
			return
		}
	}
}
