// Package vm implements the stack-based bytecode virtual machine: it
// deterministically renders a raster image from a byte program subject to
// a per-execution instruction budget, and reports execution statistics.
package vm

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"evosim/internal/config"
	"evosim/internal/opcode"
)

// State is the machine state for a single execute call.
type State struct {
	Stack            []byte
	Memory           []byte
	PC               int
	CursorX, CursorY int32
	ColorR           uint8
	ColorG           uint8
	ColorB           uint8
	Running          bool
}

func newState(cfg config.VM) State {
	return State{
		Stack:   make([]byte, 0, cfg.StackSize),
		Memory:  make([]byte, cfg.MemorySize),
		PC:      0,
		Running: true,
	}
}

// Stats reports what happened during one execute call.
type Stats struct {
	InstructionsExecuted int
	PixelsDrawn          int
	PrimitivesDrawn      int
	StackOps             int
	MemoryOps            int
	HaltedNormally       bool
	ErrorMessage         string
}

// VM executes bytecode against a fixed-size canvas. A VM instance is not
// safe for concurrent use: the environment's evaluation phase gives each
// worker its own VM instance (see internal/environment) rather than
// sharing one across goroutines.
type VM struct {
	cfg   config.VM
	rng   *rand.Rand
	stats Stats
	state State
}

// New constructs a VM seeded from a time-derived source. Use NewSeeded for
// reproducible runs (tests, or an environment configured for determinism).
func New(cfg config.VM) *VM {
	return NewSeeded(cfg, time.Now().UnixNano())
}

// NewSeeded constructs a VM whose RANDOM opcode draws from a
// deterministically seeded RNG.
func NewSeeded(cfg config.VM, seed int64) *VM {
	return &VM{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Config returns the VM's fixed resource configuration.
func (m *VM) Config() config.VM {
	return m.cfg
}

// LastStats returns the ExecutionStats of the most recent Execute call.
func (m *VM) LastStats() Stats {
	return m.stats
}

// LastState returns the VMState of the most recent Execute call.
func (m *VM) LastState() State {
	return m.state
}

// Execute resets VM state, runs bytecode to completion (HALT, PC past
// memory end, instruction budget exhaustion, or a fatal execution error),
// and returns a clone of the resulting canvas.
func (m *VM) Execute(bytecode []byte) *Image {
	return m.ExecuteWithState(bytecode, nil)
}

// ExecuteWithState is Execute but seeds the machine state before running,
// which is useful for tests that want to start from a known stack or
// memory contents.
func (m *VM) ExecuteWithState(bytecode []byte, initial *State) *Image {
	img := NewImage(m.cfg.ImageWidth, m.cfg.ImageHeight)
	st := newState(m.cfg)
	if initial != nil {
		if initial.Stack != nil {
			st.Stack = append([]byte(nil), initial.Stack...)
		}
		st.CursorX, st.CursorY = initial.CursorX, initial.CursorY
		st.ColorR, st.ColorG, st.ColorB = initial.ColorR, initial.ColorG, initial.ColorB
		if initial.PC != 0 {
			st.PC = initial.PC
		}
	}
	n := copy(st.Memory, bytecode)
	_ = n

	stats := Stats{HaltedNormally: true}

	for st.Running && st.PC < len(st.Memory) && stats.InstructionsExecuted < m.cfg.MaxInstructions {
		op := opcode.Opcode(st.Memory[st.PC])
		width, valid := opcode.OperandWidthOf(op)
		if !valid {
			stats.HaltedNormally = false
			stats.ErrorMessage = fmt.Sprintf("Unknown opcode: %d", op)
			st.Running = false
			break
		}

		var operand byte
		if width == 1 {
			if st.PC+1 < len(st.Memory) {
				operand = st.Memory[st.PC+1]
			}
		}

		if err := m.step(img, &st, &stats, op, operand); err != "" {
			stats.HaltedNormally = false
			stats.ErrorMessage = err
			st.Running = false
			break
		}

		stats.InstructionsExecuted++

		if !advancesAutomatically(op) {
			continue
		}
		if width == 1 {
			st.PC += 2
		} else {
			st.PC++
		}
	}

	m.stats = stats
	m.state = st
	return img.Clone()
}

// advancesAutomatically reports whether the fetch/decode loop should
// advance the PC itself after step() runs, or whether step() already set
// PC directly (jumps, calls, RET, and the conditional branches on both
// paths).
func advancesAutomatically(op opcode.Opcode) bool {
	switch op {
	case opcode.JMP, opcode.CALL:
		return false
	case opcode.JZ, opcode.JNZ:
		return false
	case opcode.RET:
		return false
	case opcode.HALT:
		return false
	default:
		return true
	}
}

// step executes exactly one instruction, mutating img and st in place. It
// returns a non-empty fatal error message on failure.
func (m *VM) step(img *Image, st *State, stats *Stats, op opcode.Opcode, operand byte) string {
	pop := func() (byte, string) {
		if len(st.Stack) == 0 {
			return 0, "Stack underflow"
		}
		v := st.Stack[len(st.Stack)-1]
		st.Stack = st.Stack[:len(st.Stack)-1]
		stats.StackOps++
		return v, ""
	}
	push := func(v byte) string {
		if len(st.Stack) >= m.cfg.StackSize {
			return "Stack overflow"
		}
		st.Stack = append(st.Stack, v)
		stats.StackOps++
		return ""
	}
	peek := func() (byte, string) {
		if len(st.Stack) == 0 {
			return 0, "Stack underflow"
		}
		return st.Stack[len(st.Stack)-1], ""
	}

	switch op {
	case opcode.NOP:
		// no-op

	case opcode.PUSH:
		if e := push(operand); e != "" {
			return e
		}

	case opcode.POP:
		if _, e := pop(); e != "" {
			return e
		}

	case opcode.DUP:
		v, e := peek()
		if e != "" {
			return e
		}
		if e := push(v); e != "" {
			return e
		}

	case opcode.SWAP:
		if len(st.Stack) < 2 {
			return "Stack underflow"
		}
		n := len(st.Stack)
		st.Stack[n-1], st.Stack[n-2] = st.Stack[n-2], st.Stack[n-1]

	case opcode.ROT:
		if len(st.Stack) < 3 {
			return "Stack underflow"
		}
		n := len(st.Stack)
		// (a b c -- b c a)
		a := st.Stack[n-3]
		copy(st.Stack[n-3:], st.Stack[n-2:])
		st.Stack[n-1] = a

	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV, opcode.MOD, opcode.AND, opcode.OR, opcode.XOR:
		b, e := pop()
		if e != "" {
			return e
		}
		a, e := pop()
		if e != "" {
			return e
		}
		var result byte
		switch op {
		case opcode.ADD:
			result = a + b
		case opcode.SUB:
			result = a - b
		case opcode.MUL:
			result = a * b
		case opcode.DIV:
			if b == 0 {
				return "Division by zero"
			}
			result = a / b
		case opcode.MOD:
			if b == 0 {
				return "Modulo by zero"
			}
			result = a % b
		case opcode.AND:
			result = a & b
		case opcode.OR:
			result = a | b
		case opcode.XOR:
			result = a ^ b
		}
		if e := push(result); e != "" {
			return e
		}

	case opcode.NOT:
		a, e := pop()
		if e != "" {
			return e
		}
		if e := push(^a); e != "" {
			return e
		}

	case opcode.JMP:
		st.PC = int(operand)

	case opcode.JZ:
		v, e := peek()
		if e != "" {
			return e
		}
		if v == 0 {
			st.PC = int(operand)
		} else {
			st.PC += 2
		}

	case opcode.JNZ:
		v, e := peek()
		if e != "" {
			return e
		}
		if v != 0 {
			st.PC = int(operand)
		} else {
			st.PC += 2
		}

	case opcode.CALL:
		// Documented quirk: CALL is a plain unconditional jump with no
		// real return-address bookkeeping.
		st.PC = int(operand)

	case opcode.RET:
		// Documented quirk: RET is a one-byte advance, not a real return.
		st.PC++

	case opcode.LOAD:
		addr := int(operand)
		if addr < 0 || addr >= len(st.Memory) {
			return "Memory access out of bounds"
		}
		if e := push(st.Memory[addr]); e != "" {
			return e
		}
		stats.MemoryOps++

	case opcode.STORE:
		addr := int(operand)
		if addr < 0 || addr >= len(st.Memory) {
			return "Memory access out of bounds"
		}
		v, e := pop()
		if e != "" {
			return e
		}
		st.Memory[addr] = v
		stats.MemoryOps++

	case opcode.SET_X:
		st.CursorX = int32(operand)

	case opcode.SET_Y:
		st.CursorY = int32(operand)

	case opcode.SET_COLOR_R:
		v, e := pop()
		if e != "" {
			return e
		}
		st.ColorR = v

	case opcode.SET_COLOR_G:
		v, e := pop()
		if e != "" {
			return e
		}
		st.ColorG = v

	case opcode.SET_COLOR_B:
		v, e := pop()
		if e != "" {
			return e
		}
		st.ColorB = v

	case opcode.RANDOM:
		if e := push(byte(m.rng.Intn(256))); e != "" {
			return e
		}

	case opcode.DRAW_PIXEL:
		img.Set(int(st.CursorX), int(st.CursorY), st.ColorR, st.ColorG, st.ColorB)
		stats.PixelsDrawn++
		stats.PrimitivesDrawn++

	case opcode.DRAW_CIRCLE:
		radius, e := pop()
		if e != "" {
			return e
		}
		drawCircle(img, int(st.CursorX), int(st.CursorY), int(radius), st.ColorR, st.ColorG, st.ColorB)
		stats.PrimitivesDrawn++

	case opcode.DRAW_RECTANGLE:
		height, e := pop()
		if e != "" {
			return e
		}
		width, e := pop()
		if e != "" {
			return e
		}
		drawRectangle(img, int(st.CursorX), int(st.CursorY), int(width), int(height), st.ColorR, st.ColorG, st.ColorB)
		stats.PrimitivesDrawn++

	case opcode.DRAW_LINE:
		y2, e := pop()
		if e != "" {
			return e
		}
		x2, e := pop()
		if e != "" {
			return e
		}
		drawLine(img, int(st.CursorX), int(st.CursorY), int(x2), int(y2), st.ColorR, st.ColorG, st.ColorB)
		stats.PrimitivesDrawn++

	case opcode.DRAW_BEZIER_CURVE:
		endY, e := pop()
		if e != "" {
			return e
		}
		endX, e := pop()
		if e != "" {
			return e
		}
		ctrlY, e := pop()
		if e != "" {
			return e
		}
		ctrlX, e := pop()
		if e != "" {
			return e
		}
		drawBezier(img, int(st.CursorX), int(st.CursorY), int(ctrlX), int(ctrlY), int(endX), int(endY), st.ColorR, st.ColorG, st.ColorB)
		stats.PrimitivesDrawn++

	case opcode.DRAW_TRIANGLE:
		y3, e := pop()
		if e != "" {
			return e
		}
		x3, e := pop()
		if e != "" {
			return e
		}
		y2, e := pop()
		if e != "" {
			return e
		}
		x2, e := pop()
		if e != "" {
			return e
		}
		y1, e := pop()
		if e != "" {
			return e
		}
		x1, e := pop()
		if e != "" {
			return e
		}
		drawTriangle(img, int(x1), int(y1), int(x2), int(y2), int(x3), int(y3), st.ColorR, st.ColorG, st.ColorB)
		stats.PrimitivesDrawn++

	case opcode.HALT:
		st.Running = false

	default:
		return fmt.Sprintf("Unknown opcode: %d", op)
	}

	return ""
}

// Validate walks the program instruction by instruction using the opcode
// table and accepts it iff every instruction is complete within the
// program and no unknown opcode appears. Validation is advisory: Execute
// will still run a program that fails Validate.
func Validate(bytecode []byte) bool {
	if len(bytecode) == 0 {
		return false
	}
	pc := 0
	for pc < len(bytecode) {
		op := opcode.Opcode(bytecode[pc])
		width, valid := opcode.OperandWidthOf(op)
		if !valid {
			return false
		}
		// the (opcode, operand) pair must fit fully within the sequence
		if pc+width > len(bytecode)-1 {
			return false
		}
		pc += 1 + width
	}
	return true
}

// Disassemble produces an address/hex/mnemonic/operand listing.
func Disassemble(bytecode []byte) string {
	var sb strings.Builder
	pc := 0
	for pc < len(bytecode) {
		op := opcode.Opcode(bytecode[pc])
		width, valid := opcode.OperandWidthOf(op)
		if !valid {
			fmt.Fprintf(&sb, "%04d: %02X       ??? (unknown opcode)\n", pc, bytecode[pc])
			pc++
			continue
		}
		if width == 1 && pc+1 < len(bytecode) {
			fmt.Fprintf(&sb, "%04d: %02X %02X    %s %d\n", pc, bytecode[pc], bytecode[pc+1], opcode.MnemonicOf(op), bytecode[pc+1])
		} else {
			fmt.Fprintf(&sb, "%04d: %02X       %s\n", pc, bytecode[pc], opcode.MnemonicOf(op))
		}
		pc += 1 + width
	}
	return sb.String()
}
