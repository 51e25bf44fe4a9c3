package environment

import (
	"math"
	"runtime"
	"sync"

	"evosim/internal/analyzer"
	"evosim/internal/config"
	"evosim/internal/organism"
	"evosim/internal/vm"
)

// blankStdDevThreshold is the combined (R+G+B) channel standard deviation
// below which a phenotype is treated as blank and scored a hard zero,
// regardless of what the symmetry analyzer would otherwise report (a
// blank canvas is trivially "symmetric" but conveys nothing).
const blankStdDevThreshold = 1.0

// variationNormalizer turns the combined channel standard deviation into
// a [0,1] variation signal: full marks once the combined spread reaches
// 3*128, i.e. an average of 128 per channel.
const variationNormalizer = 3.0 * 128.0

// evaluateAll scores every organism in snapshot concurrently, using a
// worker pool sized to the host, each worker owning its own VM (VMs are
// not safe for concurrent use). Results are written back onto the
// organisms directly since SetFitness is self-synchronized; no
// environment lock is held while this runs.
func (e *Environment) evaluateAll(snapshot []*organism.Organism) {
	if len(snapshot) == 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(snapshot) {
		workers = len(snapshot)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *organism.Organism)
	var wg sync.WaitGroup
	wg.Add(workers)

	analyzerCfg := e.analyzerCfg
	weightSymmetry := e.cfg.FitnessWeightSymmetry
	weightVariation := e.cfg.FitnessWeightVariation
	for w := 0; w < workers; w++ {
		m := vm.NewSeeded(e.vmCfg, seedFor(w))
		go func(m *vm.VM) {
			defer wg.Done()
			for o := range jobs {
				score(o, m, analyzerCfg, weightSymmetry, weightVariation)
			}
		}(m)
	}

	for _, o := range snapshot {
		jobs <- o
	}
	close(jobs)
	wg.Wait()
}

// seedFor derives a deterministic per-worker VM seed from the worker
// index so evaluation is reproducible across runs with the same
// population but does not require workers to share an RNG.
func seedFor(worker int) int64 {
	return int64(worker)*2654435761 + 1
}

func score(o *organism.Organism, m *vm.VM, analyzerCfg config.Analyzer, weightSymmetry, weightVariation float64) {
	phenotype := m.Execute(o.GetBytecode())

	rStd, gStd, bStd := phenotype.ChannelStdDev()
	spread := rStd + gStd + bStd
	if spread < blankStdDevThreshold {
		o.SetFitness(0)
		return
	}

	result := analyzer.AnalyzeWithConfig(phenotype, analyzerCfg)
	variation := math.Min(1, spread/variationNormalizer)
	fitness := weightSymmetry*result.Fitness + weightVariation*variation
	if fitness < 0 {
		fitness = 0
	}
	if fitness > 1 {
		fitness = 1
	}
	o.SetFitness(fitness)
}
