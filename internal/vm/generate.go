package vm

import (
	"evosim/internal/generator"
	"evosim/internal/opcode"
)

// GenerateRandomBytecode delegates to the bytecode generator to produce a
// structured program targeting approximately size bytes, then guarantees
// termination by truncating or padding with NOPs and writing HALT at the
// final byte.
func (m *VM) GenerateRandomBytecode(size int) []byte {
	if size <= 0 {
		return []byte{byte(opcode.HALT)}
	}
	gen := generator.New(m.cfg, m.rng, generator.DefaultCompositeChance)

	var buf []byte
	for len(buf) < size {
		buf = append(buf, gen.GenerateInitial(1)...)
		// GenerateInitial always appends a trailing HALT; drop it while
		// we're still accumulating primitives so only the final HALT
		// remains.
		if len(buf) > 0 && buf[len(buf)-1] == byte(opcode.HALT) {
			buf = buf[:len(buf)-1]
		}
	}

	if len(buf) > size-1 {
		buf = buf[:size-1]
	}
	for len(buf) < size-1 {
		buf = append(buf, byte(opcode.NOP))
	}
	buf = append(buf, byte(opcode.HALT))
	return buf
}
