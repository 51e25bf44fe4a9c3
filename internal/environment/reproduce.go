package environment

import (
	"math"

	"evosim/internal/generator"
	"evosim/internal/organism"
	"evosim/internal/vm"
)

// reproduceLocked grows the population from pool (fitness-descending,
// the state after elites and pressures have been settled) up to a
// target size, stepping through the pool as a mating pool and rolling
// immigration on every slot. A safety cap bounds the number of
// iterations. An empty pool produces no offspring at all, immigrants
// included.
func (e *Environment) reproduceLocked(pool []*organism.Organism) {
	target := e.targetSizeLocked()
	if len(e.population) >= target || len(pool) == 0 {
		return
	}

	m := e.newVM()
	maxIterations := target * reproductionSafetyMultiplier
	if maxIterations < reproductionSafetyMultiplier {
		maxIterations = reproductionSafetyMultiplier
	}

	for i := 0; len(e.population) < target && i < maxIterations; i++ {
		var child *organism.Organism

		if e.rng.Float64() < e.cfg.ImmigrationChance {
			child = e.immigrant(m)
		} else if len(pool) >= 2 {
			p1 := pool[i%len(pool)]
			p2 := pool[(i+1)%len(pool)]
			child = p1.ReproduceWith(p2, m, e.rng, e.cfg.MutationRate, e.cfg.MaxMutations)
			if child == nil {
				child = pool[i%len(pool)].Replicate(m, e.rng, e.cfg.MutationRate, e.cfg.MaxMutations)
			}
		} else {
			child = pool[0].Replicate(m, e.rng, e.cfg.MutationRate, e.cfg.MaxMutations)
		}

		if child == nil {
			continue
		}
		e.population[child.ID()] = child
		e.stats.BirthsThisGen++
		e.stats.CumulativeBirths++
	}
}

func (e *Environment) immigrant(m *vm.VM) *organism.Organism {
	gen := generator.New(e.vmCfg, e.rng, generator.DefaultCompositeChance)
	n := initialPrimitiveRangeMin + e.rng.Intn(initialPrimitiveRangeMax-initialPrimitiveRangeMin+1)
	bytecode := gen.GenerateInitial(n)
	return organism.New(bytecode, m, e.stats.Generation+1, 0)
}

// targetSizeLocked computes the post-reproduction target population:
// 1.1x the current size, rounded up, clamped to [min_population,
// max_population].
func (e *Environment) targetSizeLocked() int {
	target := int(math.Ceil(float64(len(e.population)) * 1.1))
	if target < e.cfg.MinPopulation {
		target = e.cfg.MinPopulation
	}
	if target > e.cfg.MaxPopulation {
		target = e.cfg.MaxPopulation
	}
	return target
}
