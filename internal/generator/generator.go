// Package generator builds well-formed initial bytecode programs from a
// library of parameterized drawing primitives and composites, for seeding
// an environment's starting population and for immigrant organisms.
package generator

import (
	"math/rand"

	"evosim/internal/config"
	"evosim/internal/opcode"
)

// DefaultCompositeChance is the probability, per primitive slot, that the
// generator emits a composite (currently: a stick figure) instead of a
// single drawing primitive.
const DefaultCompositeChance = 0.2

// Generator produces bytecode programs bounded by a canvas size.
type Generator struct {
	rng             *rand.Rand
	width, height   int
	compositeChance float64
}

// New constructs a Generator whose coordinates stay within the VM
// config's canvas and whose primitive choices are drawn from rng.
func New(cfg config.VM, rng *rand.Rand, compositeChance float64) *Generator {
	if compositeChance < 0 {
		compositeChance = 0
	}
	if compositeChance > 1 {
		compositeChance = 1
	}
	return &Generator{rng: rng, width: cfg.ImageWidth, height: cfg.ImageHeight, compositeChance: compositeChance}
}

// GenerateInitial produces a program of numPrimitives drawing units (a
// composite stick figure counts as one unit for this purpose), terminated
// by HALT.
func (g *Generator) GenerateInitial(numPrimitives int) []byte {
	var buf []byte
	for i := 0; i < numPrimitives; i++ {
		if g.rng.Float64() < g.compositeChance {
			buf = append(buf, g.stickFigure()...)
		} else {
			buf = append(buf, g.randomPrimitive()...)
		}
	}
	buf = append(buf, byte(opcode.HALT))
	return buf
}

func (g *Generator) randomPrimitive() []byte {
	switch g.rng.Intn(5) {
	case 0:
		return g.circle()
	case 1:
		return g.rectangle()
	case 2:
		return g.line()
	case 3:
		return g.triangle()
	default:
		return g.bezier()
	}
}

// colorPrelude emits instructions that set a random non-black drawing
// color: three PUSH+SET_COLOR_x pairs, retried until at least one channel
// is nonzero.
func (g *Generator) colorPrelude() []byte {
	var r, gr, b byte
	for {
		r = byte(g.rng.Intn(256))
		gr = byte(g.rng.Intn(256))
		b = byte(g.rng.Intn(256))
		if r != 0 || gr != 0 || b != 0 {
			break
		}
	}
	return emit(
		opcode.PUSH, r, opcode.SET_COLOR_R,
		opcode.PUSH, gr, opcode.SET_COLOR_G,
		opcode.PUSH, b, opcode.SET_COLOR_B,
	)
}

// cursorPrelude emits SET_X/SET_Y for a random in-canvas anchor and
// returns the chosen coordinates so the caller can derive further
// in-canvas points relative to it.
func (g *Generator) cursorPrelude() (x, y byte, buf []byte) {
	x = byte(g.rng.Intn(clampDim(g.width)))
	y = byte(g.rng.Intn(clampDim(g.height)))
	buf = emit(opcode.SET_X, x, opcode.SET_Y, y)
	return x, y, buf
}

func (g *Generator) circle() []byte {
	x, y, cursor := g.cursorPrelude()
	maxRadius := clampDim(min(g.width, g.height)) / 2
	if maxRadius < 1 {
		maxRadius = 1
	}
	radius := byte(g.rng.Intn(maxRadius) + 1)
	var buf []byte
	buf = append(buf, g.colorPrelude()...)
	buf = append(buf, cursor...)
	buf = append(buf, emit(opcode.PUSH, radius, opcode.DRAW_CIRCLE)...)
	_ = x
	_ = y
	return buf
}

func (g *Generator) rectangle() []byte {
	x, y, cursor := g.cursorPrelude()
	width := byte(g.rng.Intn(clampDim(g.width-int(x))) + 1)
	height := byte(g.rng.Intn(clampDim(g.height-int(y))) + 1)
	var buf []byte
	buf = append(buf, g.colorPrelude()...)
	buf = append(buf, cursor...)
	// DRAW_RECTANGLE pops height then width: push width first, then
	// height, so height ends up on top.
	buf = append(buf, emit(opcode.PUSH, width, opcode.PUSH, height, opcode.DRAW_RECTANGLE)...)
	return buf
}

func (g *Generator) line() []byte {
	_, _, cursor := g.cursorPrelude()
	x2 := byte(g.rng.Intn(clampDim(g.width)))
	y2 := byte(g.rng.Intn(clampDim(g.height)))
	var buf []byte
	buf = append(buf, g.colorPrelude()...)
	buf = append(buf, cursor...)
	// DRAW_LINE pops y2 then x2: push x2 first, then y2.
	buf = append(buf, emit(opcode.PUSH, x2, opcode.PUSH, y2, opcode.DRAW_LINE)...)
	return buf
}

func (g *Generator) bezier() []byte {
	_, _, cursor := g.cursorPrelude()
	ctrlX := byte(g.rng.Intn(clampDim(g.width)))
	ctrlY := byte(g.rng.Intn(clampDim(g.height)))
	endX := byte(g.rng.Intn(clampDim(g.width)))
	endY := byte(g.rng.Intn(clampDim(g.height)))
	var buf []byte
	buf = append(buf, g.colorPrelude()...)
	buf = append(buf, cursor...)
	// DRAW_BEZIER_CURVE pops end.y, end.x, ctrl.y, ctrl.x: push in the
	// reverse order (ctrl.x, ctrl.y, end.x, end.y) so end.y ends on top.
	buf = append(buf, emit(
		opcode.PUSH, ctrlX,
		opcode.PUSH, ctrlY,
		opcode.PUSH, endX,
		opcode.PUSH, endY,
		opcode.DRAW_BEZIER_CURVE,
	)...)
	return buf
}

func (g *Generator) triangle() []byte {
	x1 := byte(g.rng.Intn(clampDim(g.width)))
	y1 := byte(g.rng.Intn(clampDim(g.height)))
	x2 := byte(g.rng.Intn(clampDim(g.width)))
	y2 := byte(g.rng.Intn(clampDim(g.height)))
	x3 := byte(g.rng.Intn(clampDim(g.width)))
	y3 := byte(g.rng.Intn(clampDim(g.height)))
	var buf []byte
	buf = append(buf, g.colorPrelude()...)
	// DRAW_TRIANGLE pops three (y,x) pairs in reverse: push (x1,y1),
	// (x2,y2), (x3,y3) in order so (y3,x3) ends on top and pops first.
	buf = append(buf, emit(
		opcode.PUSH, x1, opcode.PUSH, y1,
		opcode.PUSH, x2, opcode.PUSH, y2,
		opcode.PUSH, x3, opcode.PUSH, y3,
		opcode.DRAW_TRIANGLE,
	)...)
	return buf
}

// stickFigure emits a head (circle) plus a torso, two arms, and two legs
// (lines), anchored at a fixed point (horizontal center, a quarter of the
// way down) with every coordinate clamped to the canvas; only the color
// is random.
func (g *Generator) stickFigure() []byte {
	anchorX := clampDim(g.width) / 2
	anchorY := clampDim(g.height) / 4
	if anchorX < 4 {
		anchorX = 4
	}
	if anchorY < 4 {
		anchorY = 4
	}
	headRadius := 3
	torsoLen := clampDim(g.height) / 3
	if torsoLen < 4 {
		torsoLen = 4
	}
	limbLen := torsoLen / 2
	if limbLen < 2 {
		limbLen = 2
	}

	clampX := func(v int) byte { return byte(clampCoord(v, g.width)) }
	clampY := func(v int) byte { return byte(clampCoord(v, g.height)) }

	neckY := anchorY + headRadius + 1
	hipY := neckY + torsoLen

	var buf []byte
	buf = append(buf, g.colorPrelude()...)

	// head
	buf = append(buf, emit(opcode.SET_X, clampX(anchorX), opcode.SET_Y, clampY(anchorY))...)
	buf = append(buf, emit(opcode.PUSH, byte(headRadius), opcode.DRAW_CIRCLE)...)

	line := func(x0, y0, x1, y1 int) []byte {
		return append(
			emit(opcode.SET_X, clampX(x0), opcode.SET_Y, clampY(y0)),
			emit(opcode.PUSH, clampX(x1), opcode.PUSH, clampY(y1), opcode.DRAW_LINE)...,
		)
	}

	buf = append(buf, line(anchorX, neckY, anchorX, hipY)...)               // torso
	buf = append(buf, line(anchorX, neckY+limbLen/2, anchorX-limbLen, neckY+limbLen)...) // left arm
	buf = append(buf, line(anchorX, neckY+limbLen/2, anchorX+limbLen, neckY+limbLen)...) // right arm
	buf = append(buf, line(anchorX, hipY, anchorX-limbLen, hipY+limbLen)...)             // left leg
	buf = append(buf, line(anchorX, hipY, anchorX+limbLen, hipY+limbLen)...)             // right leg

	return buf
}

func emit(vals ...interface{}) []byte {
	buf := make([]byte, 0, len(vals))
	for _, v := range vals {
		switch t := v.(type) {
		case opcode.Opcode:
			buf = append(buf, byte(t))
		case byte:
			buf = append(buf, t)
		}
	}
	return buf
}

func clampDim(v int) int {
	if v < 1 {
		return 1
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampCoord(v, dimension int) int {
	max := clampDim(dimension) - 1
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
