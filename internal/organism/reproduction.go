package organism

import (
	"math/rand"
	"time"

	"evosim/internal/vm"
)

// Replicate deep-copies the organism's bytecode, applies mutation, and
// re-renders through m, producing a child one generation ahead whose
// parent id is this organism's id. The parent's replication bookkeeping
// (count and last-replication timestamp) is updated in place.
func (o *Organism) Replicate(m *vm.VM, rng *rand.Rand, mutationRate float64, maxMutations int) *Organism {
	o.mu.Lock()
	bytecode := append([]byte(nil), o.bytecode...)
	generation := o.generation
	parentID := o.id
	o.replicationCount++
	o.lastReplicationTime = time.Now()
	o.mu.Unlock()

	mutated, applied := mutate(bytecode, rng, mutationRate, maxMutations)

	child := New(mutated, m, generation+1, parentID)
	child.mutationCount = applied
	return child
}

// ReproduceWith performs structure-aware crossover between this organism
// (as parent1) and other (as parent2), mutates the result, and re-renders
// through m. It returns nil if either parent has empty bytecode.
func (o *Organism) ReproduceWith(other *Organism, m *vm.VM, rng *rand.Rand, mutationRate float64, maxMutations int) *Organism {
	bc1 := o.GetBytecode()
	bc2 := other.GetBytecode()
	if len(bc1) == 0 || len(bc2) == 0 {
		return nil
	}

	child := crossover(bc1, bc2, rng)
	mutated, applied := mutate(child, rng, mutationRate, maxMutations)

	generation := o.Generation() + 1
	offspring := New(mutated, m, generation, o.ID())
	offspring.mutationCount = applied
	return offspring
}
