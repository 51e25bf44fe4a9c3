// Package config defines the plain configuration records the core is
// constructed from. Nothing in this package reads a file, an environment
// variable, or a command-line flag — an external config loader is
// responsible for populating these structs (for example by unmarshalling a
// TOML or JSON document) and calling Validate before handing them to the
// environment, VM, analyzer, or engine constructors.
package config

import "fmt"

// Environment holds the tunables that drive one generation update.
type Environment struct {
	MaxPopulation     int
	InitialPopulation int
	MinPopulation     int

	InitialBytecodeSize int
	EliteCount          int

	MutationRate float64
	MaxMutations int

	ResourceAbundance float64
	GenerationTimeMs  int

	EnableAging bool
	MaxAgeMs    int64

	EnableCompetition    bool
	CompetitionIntensity float64

	EnableCooperation bool
	CooperationBonus  float64

	EnablePredation           bool
	EnableRandomCatastrophes  bool

	FitnessWeightSymmetry  float64
	FitnessWeightVariation float64

	ImmigrationChance float64
}

// DefaultEnvironment returns a conservative, internally-consistent config.
func DefaultEnvironment() Environment {
	return Environment{
		MaxPopulation:     200,
		InitialPopulation: 50,
		MinPopulation:     10,

		InitialBytecodeSize: 8,
		EliteCount:          5,

		MutationRate: 0.05,
		MaxMutations: 10,

		ResourceAbundance: 1.0,
		GenerationTimeMs:  10,

		EnableAging: false,
		MaxAgeMs:    600000,

		EnableCompetition:    false,
		CompetitionIntensity: 0.3,

		EnableCooperation: false,
		CooperationBonus:  0.02,

		EnablePredation:          false,
		EnableRandomCatastrophes: false,

		FitnessWeightSymmetry:  0.8,
		FitnessWeightVariation: 0.2,

		ImmigrationChance: 0.05,
	}
}

// Validate rejects configurations the environment cannot operate under.
func (c Environment) Validate() error {
	if c.MaxPopulation <= 0 {
		return fmt.Errorf("config: max_population must be positive, got %d", c.MaxPopulation)
	}
	if c.InitialPopulation <= 0 {
		return fmt.Errorf("config: initial_population must be positive, got %d", c.InitialPopulation)
	}
	if c.InitialPopulation > c.MaxPopulation {
		return fmt.Errorf("config: initial_population (%d) exceeds max_population (%d)", c.InitialPopulation, c.MaxPopulation)
	}
	if c.MinPopulation < 0 {
		return fmt.Errorf("config: min_population must not be negative, got %d", c.MinPopulation)
	}
	if c.MinPopulation > c.MaxPopulation {
		return fmt.Errorf("config: min_population (%d) exceeds max_population (%d)", c.MinPopulation, c.MaxPopulation)
	}
	if c.InitialBytecodeSize <= 0 {
		return fmt.Errorf("config: initial_bytecode_size must be positive, got %d", c.InitialBytecodeSize)
	}
	if c.EliteCount < 0 {
		return fmt.Errorf("config: elite_count must not be negative, got %d", c.EliteCount)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("config: mutation_rate must be in [0,1], got %f", c.MutationRate)
	}
	if c.MaxMutations < 0 {
		return fmt.Errorf("config: max_mutations must not be negative, got %d", c.MaxMutations)
	}
	if c.ResourceAbundance <= 0 {
		return fmt.Errorf("config: resource_abundance must be positive, got %f", c.ResourceAbundance)
	}
	if c.GenerationTimeMs < 0 {
		return fmt.Errorf("config: generation_time_ms must not be negative, got %d", c.GenerationTimeMs)
	}
	if c.CompetitionIntensity < 0 || c.CompetitionIntensity > 1 {
		return fmt.Errorf("config: competition_intensity must be in [0,1], got %f", c.CompetitionIntensity)
	}
	if c.FitnessWeightSymmetry < 0 || c.FitnessWeightVariation < 0 {
		return fmt.Errorf("config: fitness weights must not be negative")
	}
	if c.ImmigrationChance < 0 || c.ImmigrationChance > 1 {
		return fmt.Errorf("config: immigration_chance must be in [0,1], got %f", c.ImmigrationChance)
	}
	return nil
}

// VM holds the fixed resources the bytecode virtual machine executes
// under.
type VM struct {
	ImageWidth     int
	ImageHeight    int
	MemorySize     int
	StackSize      int
	MaxInstructions int
}

// DefaultVM returns a small canvas suitable for fast evaluation.
func DefaultVM() VM {
	return VM{
		ImageWidth:      64,
		ImageHeight:     64,
		MemorySize:      4096,
		StackSize:       256,
		MaxInstructions: 100000,
	}
}

// Validate rejects a VM configuration that would let runtime state grow
// unbounded or that describes a degenerate canvas.
func (c VM) Validate() error {
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("config: image dimensions must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.MemorySize <= 0 {
		return fmt.Errorf("config: memory_size must be positive, got %d", c.MemorySize)
	}
	if c.StackSize <= 0 {
		return fmt.Errorf("config: stack_size must be positive, got %d", c.StackSize)
	}
	if c.MaxInstructions <= 0 {
		return fmt.Errorf("config: max_instructions must be positive, got %d", c.MaxInstructions)
	}
	return nil
}

// Analyzer holds the symmetry analyzer's per-axis enables and weights.
type Analyzer struct {
	EnableHorizontal bool
	EnableVertical   bool
	EnableDiagonal   bool
	EnableRotational bool
	EnableComplexity bool

	WeightHorizontal float64
	WeightVertical   float64
	WeightDiagonal   float64
	WeightRotational float64
	WeightComplexity float64

	HistogramBins  int
	NoiseThreshold float64
	NormalizeScores bool
}

// DefaultAnalyzer enables every axis, weighting horizontal and vertical
// symmetry 0.25 each, diagonal and rotational 0.15 each, and complexity
// 0.20.
func DefaultAnalyzer() Analyzer {
	return Analyzer{
		EnableHorizontal: true,
		EnableVertical:   true,
		EnableDiagonal:   true,
		EnableRotational: true,
		EnableComplexity: true,

		WeightHorizontal: 0.25,
		WeightVertical:   0.25,
		WeightDiagonal:   0.15,
		WeightRotational: 0.15,
		WeightComplexity: 0.20,

		HistogramBins:   16,
		NoiseThreshold:  0.02,
		NormalizeScores: true,
	}
}

// Validate rejects negative weights or a degenerate histogram.
func (c Analyzer) Validate() error {
	weights := []float64{c.WeightHorizontal, c.WeightVertical, c.WeightDiagonal, c.WeightRotational, c.WeightComplexity}
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("config: analyzer weights must not be negative")
		}
	}
	if c.HistogramBins <= 0 {
		return fmt.Errorf("config: histogram_bins must be positive, got %d", c.HistogramBins)
	}
	if c.NoiseThreshold < 0 {
		return fmt.Errorf("config: noise_threshold must not be negative, got %f", c.NoiseThreshold)
	}
	return nil
}

// Engine holds the evolution engine's lifecycle and periodic-task
// tunables.
type Engine struct {
	AutoStart bool

	EnableLogging bool

	EnableSaveState           bool
	SaveIntervalGenerations   int
	SaveDirectory             string

	EnableBackup     bool
	BackupInterval   int

	EnableMetrics  bool
	MetricsInterval int

	MaxGenerations int
}

// DefaultEngine returns an engine config with periodic checkpointing
// enabled at a moderate cadence and no generation cap.
func DefaultEngine() Engine {
	return Engine{
		AutoStart:     false,
		EnableLogging: true,

		EnableSaveState:         true,
		SaveIntervalGenerations: 25,
		SaveDirectory:           "./checkpoints",

		EnableBackup:   true,
		BackupInterval: 100,

		EnableMetrics:   true,
		MetricsInterval: 10,

		MaxGenerations: 0,
	}
}

// Validate rejects an engine configuration whose periodic tasks can never
// fire or whose save directory is unset while saving is enabled.
func (c Engine) Validate() error {
	if c.EnableSaveState {
		if c.SaveIntervalGenerations <= 0 {
			return fmt.Errorf("config: save_interval_generations must be positive when enable_save_state is set")
		}
		if c.SaveDirectory == "" {
			return fmt.Errorf("config: save_directory must be set when enable_save_state is set")
		}
	}
	if c.EnableBackup && c.BackupInterval <= 0 {
		return fmt.Errorf("config: backup_interval must be positive when enable_backup is set")
	}
	if c.EnableMetrics && c.MetricsInterval <= 0 {
		return fmt.Errorf("config: metrics_interval must be positive when enable_metrics is set")
	}
	if c.MaxGenerations < 0 {
		return fmt.Errorf("config: max_generations must not be negative, got %d", c.MaxGenerations)
	}
	return nil
}

// Full bundles the four records together, matching the structured record
// returned by the environment's get_full_config query.
type Full struct {
	Environment Environment
	VM          VM
	Analyzer    Analyzer
	Engine      Engine
}
