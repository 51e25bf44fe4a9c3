package organism

import (
	"math/rand"

	"evosim/internal/opcode"
)

// mutableByWidth partitions the mutable opcode set (every opcode except
// HALT) by operand width, so an opcode-substitution mutation never
// changes how many bytes an instruction occupies. Preserving instruction
// boundaries this way guarantees that if validate() held before mutation
// it still holds after (mutation never conflates an operand byte with an
// opcode byte or vice versa).
var mutableByWidth = func() map[int][]opcode.Opcode {
	out := map[int][]opcode.Opcode{0: nil, 1: nil}
	for _, op := range opcode.Mutable() {
		width, _ := opcode.OperandWidthOf(op)
		out[width] = append(out[width], op)
	}
	return out
}()

// mutate walks bytecode instruction by instruction using the opcode
// table, applying at most maxMutations mutations each with probability
// mutationRate. The trailing HALT byte is never touched.
func mutate(bytecode []byte, rng *rand.Rand, mutationRate float64, maxMutations int) (mutated []byte, mutationsApplied int) {
	out := append([]byte(nil), bytecode...)
	if len(out) == 0 {
		return out, 0
	}

	pc := 0
	applied := 0
	// The final byte is protected: stop before it so HALT is never
	// touched, matching "protect the trailing HALT by stopping before
	// the last byte".
	for pc < len(out)-1 && applied < maxMutations {
		op := opcode.Opcode(out[pc])
		width, valid := opcode.OperandWidthOf(op)
		if !valid {
			// A byte that doesn't decode as a known opcode (e.g. one
			// left behind by an earlier width-mismatched mutation, or
			// simply an operand byte we mis-stepped into) is skipped
			// one byte at a time rather than aborting the walk.
			pc++
			continue
		}
		if pc+width >= len(out) {
			break
		}

		if rng.Float64() < mutationRate {
			if width == 1 && rng.Float64() < 0.5 {
				mutateOperand(out, pc, op, rng)
			} else {
				mutateOpcode(out, pc, op, width, rng)
			}
			applied++
		}

		pc += 1 + width
	}

	return out, applied
}

// mutateOperand replaces the operand of the instruction at pc. Jump-type
// opcodes (JMP/JZ/JNZ/CALL) are constrained to a strictly-forward target
// that does not land on the terminal HALT; if no such target fits in a
// byte, the opcode itself is neutralized to NOP.
func mutateOperand(out []byte, pc int, op opcode.Opcode, rng *rand.Rand) {
	if opcode.IsJump(op) {
		if target, ok := forwardJumpTarget(pc, len(out), rng); ok {
			out[pc+1] = target
		} else {
			// Neutralize both bytes: NOP is width-0, so leaving the old
			// operand byte behind would make a fresh decode of out
			// (e.g. a later validate() call) treat it as the start of
			// an unrelated instruction.
			out[pc] = byte(opcode.NOP)
			out[pc+1] = byte(opcode.NOP)
		}
		return
	}
	out[pc+1] = byte(rng.Intn(256))
}

// mutateOpcode replaces the opcode at pc with a uniformly chosen
// same-width opcode from the mutable set. If the chosen replacement is a
// jump type, its existing operand is validated (and repaired, or the
// instruction neutralized to NOP) under the same forward-jump rule.
func mutateOpcode(out []byte, pc int, current opcode.Opcode, width int, rng *rand.Rand) {
	choices := mutableByWidth[width]
	if len(choices) == 0 {
		return
	}
	newOp := choices[rng.Intn(len(choices))]
	out[pc] = byte(newOp)

	if width == 1 && opcode.IsJump(newOp) {
		if !isValidForwardJump(pc, len(out), out[pc+1]) {
			if target, ok := forwardJumpTarget(pc, len(out), rng); ok {
				out[pc+1] = target
			} else {
				out[pc] = byte(opcode.NOP)
				out[pc+1] = byte(opcode.NOP)
			}
		}
	}
}

// forwardJumpTarget picks a byte-sized address strictly after the jump
// instruction itself (which occupies pc and pc+1, since every jump opcode
// has a 1-byte operand), excluding the terminal HALT position
// (length-1). Returns ok=false if no such address exists.
func forwardJumpTarget(pc, length int, rng *rand.Rand) (byte, bool) {
	lo := pc + 2
	hi := length - 2 // exclude the terminal HALT byte at length-1
	if hi > 255 {
		hi = 255
	}
	if lo > hi {
		return 0, false
	}
	return byte(lo + rng.Intn(hi-lo+1)), true
}

func isValidForwardJump(pc, length int, target byte) bool {
	t := int(target)
	return t > pc+1 && t < length-1
}
