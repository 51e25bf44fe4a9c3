package config

import "testing"

func TestDefaultsValidate(t *testing.T) {
	if err := DefaultEnvironment().Validate(); err != nil {
		t.Fatalf("default environment config: %v", err)
	}
	if err := DefaultVM().Validate(); err != nil {
		t.Fatalf("default vm config: %v", err)
	}
	if err := DefaultAnalyzer().Validate(); err != nil {
		t.Fatalf("default analyzer config: %v", err)
	}
	if err := DefaultEngine().Validate(); err != nil {
		t.Fatalf("default engine config: %v", err)
	}
}

func TestEnvironmentRejectsNonPositiveFields(t *testing.T) {
	cases := []func(*Environment){
		func(c *Environment) { c.MaxPopulation = 0 },
		func(c *Environment) { c.InitialPopulation = 0 },
		func(c *Environment) { c.InitialPopulation = c.MaxPopulation + 1 },
		func(c *Environment) { c.MutationRate = 1.5 },
		func(c *Environment) { c.ResourceAbundance = 0 },
		func(c *Environment) { c.ImmigrationChance = -0.1 },
	}
	for i, mutate := range cases {
		c := DefaultEnvironment()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestVMRejectsNonPositiveFields(t *testing.T) {
	cases := []func(*VM){
		func(c *VM) { c.ImageWidth = 0 },
		func(c *VM) { c.MemorySize = -1 },
		func(c *VM) { c.StackSize = 0 },
		func(c *VM) { c.MaxInstructions = 0 },
	}
	for i, mutate := range cases {
		c := DefaultVM()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestEngineRequiresSaveDirectoryWhenSavingEnabled(t *testing.T) {
	c := DefaultEngine()
	c.SaveDirectory = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for empty save directory")
	}
}
