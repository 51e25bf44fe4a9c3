package organism

import (
	"math/rand"
	"testing"

	"evosim/internal/config"
	"evosim/internal/opcode"
	"evosim/internal/vm"
)

func testVM() *vm.VM {
	cfg := config.DefaultVM()
	cfg.ImageWidth = 20
	cfg.ImageHeight = 20
	return vm.NewSeeded(cfg, 1)
}

func TestPhenotypeMatchesFreshExecution(t *testing.T) {
	m := testVM()
	bytecode := []byte{byte(opcode.PUSH), 5, byte(opcode.SET_X), 5, byte(opcode.SET_Y), 5, byte(opcode.DRAW_PIXEL), byte(opcode.HALT)}
	o := New(bytecode, m, 0, 0)

	fresh := m.Execute(bytecode)
	got := o.GetPhenotype()
	if len(got.Pix) != len(fresh.Pix) {
		t.Fatalf("phenotype length mismatch")
	}
	for i := range got.Pix {
		if got.Pix[i] != fresh.Pix[i] {
			t.Fatalf("phenotype differs from a fresh VM execution at byte %d", i)
		}
	}
}

func TestIDsAreUniqueAndMonotonic(t *testing.T) {
	m := testVM()
	a := New([]byte{byte(opcode.HALT)}, m, 0, 0)
	b := New([]byte{byte(opcode.HALT)}, m, 0, 0)
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct ids")
	}
	if b.ID() <= a.ID() {
		t.Fatalf("expected monotonic ids, got %d then %d", a.ID(), b.ID())
	}
}

func TestReplicateAdvancesGenerationAndRecordsParent(t *testing.T) {
	m := testVM()
	rng := rand.New(rand.NewSource(1))
	parent := New([]byte{byte(opcode.PUSH), 1, byte(opcode.HALT)}, m, 3, 0)
	child := parent.Replicate(m, rng, 0.1, 5)
	if child.Generation() != 4 {
		t.Fatalf("child generation = %d, want 4", child.Generation())
	}
	if child.ParentID() != parent.ID() {
		t.Fatalf("child parent id = %d, want %d", child.ParentID(), parent.ID())
	}
}

func TestReproduceWithEmptyBytecodeReturnsNil(t *testing.T) {
	m := testVM()
	rng := rand.New(rand.NewSource(1))
	empty := New([]byte{}, m, 0, 0)
	other := New([]byte{byte(opcode.PUSH), 1, byte(opcode.HALT)}, m, 0, 0)
	if child := empty.ReproduceWith(other, m, rng, 0.1, 5); child != nil {
		t.Fatalf("expected nil child when a parent has empty bytecode")
	}
}

func TestReproduceWithSetsGenerationFromParent1(t *testing.T) {
	m := testVM()
	rng := rand.New(rand.NewSource(1))
	p1 := New([]byte{byte(opcode.PUSH), 1, byte(opcode.DRAW_PIXEL), byte(opcode.HALT)}, m, 5, 0)
	p2 := New([]byte{byte(opcode.PUSH), 2, byte(opcode.DRAW_PIXEL), byte(opcode.HALT)}, m, 9, 0)
	child := p1.ReproduceWith(p2, m, rng, 0.0, 0)
	if child.Generation() != p1.Generation()+1 {
		t.Fatalf("child generation = %d, want %d", child.Generation(), p1.Generation()+1)
	}
}

func TestMutationNeverOverwritesTerminalHalt(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	bytecode := []byte{byte(opcode.PUSH), 1, byte(opcode.JMP), 0, byte(opcode.HALT)}
	for i := 0; i < 200; i++ {
		out, _ := mutate(bytecode, rng, 1.0, 100)
		if out[len(out)-1] != byte(opcode.HALT) {
			t.Fatalf("mutation overwrote the terminal HALT byte: %v", out)
		}
		if !vm.Validate(out) {
			t.Fatalf("mutated bytecode failed to validate: %v", out)
		}
	}
}

func TestMutationRepairsBackwardJumps(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	// A JMP whose target is itself (an infinite loop) if left unrepaired.
	bytecode := []byte{byte(opcode.JMP), 0, byte(opcode.HALT)}
	for i := 0; i < 200; i++ {
		out, _ := mutate(bytecode, rng, 1.0, 10)
		if opcode.Opcode(out[0]) == opcode.JMP {
			target := int(out[1])
			if target <= 0 || target >= len(out)-1 {
				t.Fatalf("mutation left an invalid forward jump: target=%d len=%d", target, len(out))
			}
		}
	}
}

func TestUnitBoundariesIncludeZeroAndFollowDrawInstructions(t *testing.T) {
	bytecode := []byte{
		byte(opcode.PUSH), 1,
		byte(opcode.DRAW_PIXEL),
		byte(opcode.PUSH), 2,
		byte(opcode.DRAW_CIRCLE),
		byte(opcode.HALT),
	}
	boundaries := unitBoundaries(bytecode)
	if boundaries[0] != 0 {
		t.Fatalf("expected boundary list to start at 0, got %v", boundaries)
	}
	if len(boundaries) != 3 {
		t.Fatalf("expected 3 boundaries (0 + after each draw), got %v", boundaries)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	m := testVM()
	bytecode := []byte{byte(opcode.PUSH), 9, byte(opcode.HALT)}
	o := New(bytecode, m, 2, 7)
	o.SetFitness(0.42)

	rec := o.Serialize()
	restored := Deserialize(rec, m)

	if restored.ID() != o.ID() || restored.Generation() != o.Generation() || restored.ParentID() != o.ParentID() {
		t.Fatalf("restored organism metadata mismatch")
	}
	if restored.GetFitness() != 0.42 {
		t.Fatalf("restored fitness = %f, want 0.42", restored.GetFitness())
	}
	if restored.GetPhenotype() == nil {
		t.Fatalf("expected deserialize to re-render the phenotype")
	}
}
