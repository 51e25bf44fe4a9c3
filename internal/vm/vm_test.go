package vm

import (
	"strings"
	"testing"

	"evosim/internal/config"
	"evosim/internal/opcode"
)

func testConfig() config.VM {
	cfg := config.DefaultVM()
	cfg.ImageWidth = 50
	cfg.ImageHeight = 50
	return cfg
}

// S1: RGB pixel rendering.
func TestRGBPixelRendering(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	program := []byte{
		byte(opcode.PUSH), 100, byte(opcode.SET_COLOR_R),
		byte(opcode.PUSH), 150, byte(opcode.SET_COLOR_G),
		byte(opcode.PUSH), 200, byte(opcode.SET_COLOR_B),
		byte(opcode.SET_X), 10,
		byte(opcode.SET_Y), 20,
		byte(opcode.DRAW_PIXEL),
		byte(opcode.HALT),
	}
	img := m.Execute(program)
	r, g, b := img.At(10, 20)
	if r != 100 || g != 150 || b != 200 {
		t.Fatalf("pixel at (10,20) = (%d,%d,%d), want (100,150,200)", r, g, b)
	}
	if !m.LastStats().HaltedNormally {
		t.Fatalf("expected normal halt, got error %q", m.LastStats().ErrorMessage)
	}
}

// S2: arithmetic.
func TestArithmetic(t *testing.T) {
	m := NewSeeded(testConfig(), 1)

	m.Execute([]byte{byte(opcode.PUSH), 10, byte(opcode.PUSH), 20, byte(opcode.ADD), byte(opcode.HALT)})
	if st := m.LastState(); len(st.Stack) != 1 || st.Stack[0] != 30 {
		t.Fatalf("10+20: stack = %v, want [30]", st.Stack)
	}

	m.Execute([]byte{byte(opcode.PUSH), 20, byte(opcode.PUSH), 10, byte(opcode.SUB), byte(opcode.HALT)})
	if st := m.LastState(); len(st.Stack) != 1 || st.Stack[0] != 10 {
		t.Fatalf("20-10: stack = %v, want [10]", st.Stack)
	}

	m.Execute([]byte{byte(opcode.PUSH), 10, byte(opcode.PUSH), 0, byte(opcode.DIV), byte(opcode.HALT)})
	stats := m.LastStats()
	if stats.HaltedNormally {
		t.Fatalf("expected DIV by zero to fail")
	}
	if stats.ErrorMessage != "Division by zero" {
		t.Fatalf("error message = %q, want %q", stats.ErrorMessage, "Division by zero")
	}
}

// S3: unconditional jump.
func TestUnconditionalJumpSkipsPush(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	program := []byte{
		byte(opcode.JMP), 4,
		byte(opcode.PUSH), 1,
		byte(opcode.HALT),
	}
	m.Execute(program)
	if st := m.LastState(); len(st.Stack) != 0 {
		t.Fatalf("expected empty stack after skipping PUSH, got %v", st.Stack)
	}
}

func TestStackUnderflow(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	m.Execute([]byte{byte(opcode.ADD), byte(opcode.HALT)})
	stats := m.LastStats()
	if stats.HaltedNormally || stats.ErrorMessage != "Stack underflow" {
		t.Fatalf("stats = %+v, want Stack underflow", stats)
	}
}

func TestStackOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.StackSize = 2
	m := NewSeeded(cfg, 1)
	program := []byte{
		byte(opcode.PUSH), 1,
		byte(opcode.PUSH), 2,
		byte(opcode.PUSH), 3,
		byte(opcode.HALT),
	}
	m.Execute(program)
	stats := m.LastStats()
	if stats.HaltedNormally || stats.ErrorMessage != "Stack overflow" {
		t.Fatalf("stats = %+v, want Stack overflow", stats)
	}
}

func TestModuloByZero(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	m.Execute([]byte{byte(opcode.PUSH), 5, byte(opcode.PUSH), 0, byte(opcode.MOD), byte(opcode.HALT)})
	stats := m.LastStats()
	if stats.ErrorMessage != "Modulo by zero" {
		t.Fatalf("error message = %q, want %q", stats.ErrorMessage, "Modulo by zero")
	}
}

func TestUnknownOpcodeHalts(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	m.Execute([]byte{0x77, byte(opcode.HALT)})
	stats := m.LastStats()
	if stats.HaltedNormally {
		t.Fatalf("expected unknown opcode to be a fatal error")
	}
}

func TestOutOfCanvasDrawIsSkippedNotError(t *testing.T) {
	m := NewSeeded(testConfig(), 1)
	program := []byte{
		byte(opcode.SET_X), 250,
		byte(opcode.SET_Y), 250,
		byte(opcode.DRAW_PIXEL),
		byte(opcode.HALT),
	}
	m.Execute(program)
	if !m.LastStats().HaltedNormally {
		t.Fatalf("out-of-canvas draw should not be a fatal error")
	}
}

func TestInstructionBudgetIsRespected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInstructions = 5
	m := NewSeeded(cfg, 1)
	program := make([]byte, 0)
	for i := 0; i < 20; i++ {
		program = append(program, byte(opcode.NOP))
	}
	program = append(program, byte(opcode.HALT))
	m.Execute(program)
	if m.LastStats().InstructionsExecuted > cfg.MaxInstructions {
		t.Fatalf("instructions executed = %d, exceeds budget %d", m.LastStats().InstructionsExecuted, cfg.MaxInstructions)
	}
}

func TestEmptyBytecodeYieldsBlankCanvas(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInstructions = 10
	m := NewSeeded(cfg, 1)
	img := m.Execute(nil)
	for _, p := range img.Pix {
		if p != 0 {
			t.Fatalf("expected a blank canvas for empty bytecode")
		}
	}
}

func TestValidateAcceptsWellFormedProgram(t *testing.T) {
	program := []byte{byte(opcode.PUSH), 1, byte(opcode.PUSH), 2, byte(opcode.ADD), byte(opcode.HALT)}
	if !Validate(program) {
		t.Fatalf("expected well-formed program to validate")
	}
}

func TestValidateRejectsTruncatedOperand(t *testing.T) {
	program := []byte{byte(opcode.PUSH)}
	if Validate(program) {
		t.Fatalf("expected truncated PUSH operand to fail validation")
	}
}

func TestValidateRejectsUnknownOpcode(t *testing.T) {
	program := []byte{0x77, byte(opcode.HALT)}
	if Validate(program) {
		t.Fatalf("expected unknown opcode to fail validation")
	}
}

func TestValidateRejectsEmptyBytecode(t *testing.T) {
	if Validate(nil) {
		t.Fatalf("expected empty bytecode to fail validation")
	}
	if Validate([]byte{}) {
		t.Fatalf("expected empty bytecode to fail validation")
	}
}

func TestGenerateRandomBytecodeTerminatesAndFitsBudget(t *testing.T) {
	m := NewSeeded(testConfig(), 42)
	for _, size := range []int{1, 5, 32, 128} {
		bc := m.GenerateRandomBytecode(size)
		if len(bc) != size {
			t.Fatalf("size %d: got length %d", size, len(bc))
		}
		if bc[len(bc)-1] != byte(opcode.HALT) {
			t.Fatalf("size %d: last byte = %#x, want HALT", size, bc[len(bc)-1])
		}
	}
}

func TestInstructionsExecutedNeverExceedsBudgetAcrossRandomPrograms(t *testing.T) {
	m := NewSeeded(testConfig(), 7)
	for i := 0; i < 25; i++ {
		bc := m.GenerateRandomBytecode(64)
		m.Execute(bc)
		if m.LastStats().InstructionsExecuted > m.Config().MaxInstructions {
			t.Fatalf("run %d: instructions executed %d exceeds budget", i, m.LastStats().InstructionsExecuted)
		}
	}
}

func TestDisassembleProducesOneLinePerInstruction(t *testing.T) {
	program := []byte{byte(opcode.PUSH), 5, byte(opcode.HALT)}
	out := Disassemble(program)
	if out == "" {
		t.Fatalf("expected non-empty disassembly")
	}
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Fatalf("disassembly has %d lines, want 2 (PUSH, HALT):\n%s", lines, out)
	}
}
