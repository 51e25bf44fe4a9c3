package environment

import (
	"time"

	"evosim/internal/organism"
)

// pickAndRemoveElitesLocked removes the elite_count fittest organisms
// from the population and returns them, so environmental pressures and
// selection cannot touch them.
func (e *Environment) pickAndRemoveElitesLocked() []*organism.Organism {
	if e.cfg.EliteCount <= 0 || len(e.population) == 0 {
		return nil
	}
	ranked := e.rankedByFitnessLocked()
	n := e.cfg.EliteCount
	if n > len(ranked) {
		n = len(ranked)
	}
	elites := append([]*organism.Organism(nil), ranked[:n]...)
	for _, o := range elites {
		delete(e.population, o.ID())
	}
	return elites
}

func (e *Environment) reinsertElitesLocked(elites []*organism.Organism) {
	for _, o := range elites {
		e.population[o.ID()] = o
	}
}

// applyEnvironmentalPressuresLocked applies resource scarcity, random
// catastrophe, and predation, in that order, to the non-elite
// population. Each removal is counted toward this generation's death
// total.
func (e *Environment) applyEnvironmentalPressuresLocked() {
	e.applyResourceScarcityLocked()
	if e.cfg.EnableRandomCatastrophes {
		e.applyCatastropheLocked()
	}
	if e.cfg.EnablePredation {
		e.applyPredationLocked()
	}
}

func (e *Environment) applyResourceScarcityLocked() {
	capacity := int(float64(e.cfg.MaxPopulation) * e.cfg.ResourceAbundance)
	if capacity < 0 {
		capacity = 0
	}
	excess := len(e.population) - capacity
	if excess <= 0 {
		return
	}
	e.removeRandomLocked(excess)
}

func (e *Environment) applyCatastropheLocked() {
	if e.rng.Float64() >= 0.01 {
		return
	}
	n := len(e.population) / 10
	if n < 1 {
		n = 1
	}
	e.removeRandomLocked(n)
}

// applyPredationLocked removes a small fraction of the population,
// weighted toward the least fit: an organism's removal weight is
// (1-fitness)+epsilon, so even a perfectly fit organism retains a
// nonzero (if small) chance of being culled.
func (e *Environment) applyPredationLocked() {
	const epsilon = 0.01
	if len(e.population) < 2 {
		return
	}
	n := len(e.population) / 20
	if n < 1 {
		n = 1
	}
	if n >= len(e.population) {
		n = len(e.population) - 1
	}

	ids := make([]uint64, 0, len(e.population))
	weights := make([]float64, 0, len(e.population))
	for id, o := range e.population {
		ids = append(ids, id)
		weights = append(weights, (1-o.GetFitness())+epsilon)
	}

	for i := 0; i < n && len(ids) > 1; i++ {
		idx := weightedPick(weights, e.rng.Float64())
		id := ids[idx]
		delete(e.population, id)
		e.stats.DeathsThisGen++
		e.stats.CumulativeDeaths++

		ids[idx] = ids[len(ids)-1]
		ids = ids[:len(ids)-1]
		weights[idx] = weights[len(weights)-1]
		weights = weights[:len(weights)-1]
	}
}

func weightedPick(weights []float64, r float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	target := r * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

func (e *Environment) removeRandomLocked(n int) {
	if n <= 0 || len(e.population) == 0 {
		return
	}
	if n > len(e.population) {
		n = len(e.population)
	}
	ids := make([]uint64, 0, len(e.population))
	for id := range e.population {
		ids = append(ids, id)
	}
	e.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for i := 0; i < n; i++ {
		delete(e.population, ids[i])
		e.stats.DeathsThisGen++
		e.stats.CumulativeDeaths++
	}
}

// applySelectionLocked applies aging, competition, and cooperation, in
// that order, to the non-elite population.
func (e *Environment) applySelectionLocked() {
	if e.cfg.EnableAging {
		e.applyAgingLocked()
	}
	if e.cfg.EnableCompetition {
		e.applyCompetitionLocked()
	}
	if e.cfg.EnableCooperation {
		e.applyCooperationLocked()
	}
}

func (e *Environment) applyAgingLocked() {
	maxAge := time.Duration(e.cfg.MaxAgeMs) * time.Millisecond
	for id, o := range e.population {
		if o.GetAge() > maxAge {
			delete(e.population, id)
			e.stats.DeathsThisGen++
			e.stats.CumulativeDeaths++
		}
	}
}

func (e *Environment) applyCompetitionLocked() {
	for id, o := range e.population {
		removalChance := (1 - o.GetFitness()) * e.cfg.CompetitionIntensity
		if e.rng.Float64() < removalChance {
			delete(e.population, id)
			e.stats.DeathsThisGen++
			e.stats.CumulativeDeaths++
		}
	}
}

// applyCooperationLocked adds cooperation_bonus directly to every
// surviving organism's fitness, mutating it in place rather than
// re-scoring through the analyzer. This is deliberate: cooperation
// models a social bonus layered on top of the phenotype's intrinsic
// score, not a change to the phenotype itself.
func (e *Environment) applyCooperationLocked() {
	for _, o := range e.population {
		o.SetFitness(clamp01(o.GetFitness() + e.cfg.CooperationBonus))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
