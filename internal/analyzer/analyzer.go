// Package analyzer reduces a rendered image to a scalar fitness by
// scoring geometric symmetry along four axes and visual complexity via
// edge density, then combining them per a per-axis weighted config.
package analyzer

import (
	"fmt"

	"evosim/internal/config"
	"evosim/internal/vm"
)

// Result is the output of one Analyze call. Every component and the
// fitness itself are in [0,1].
type Result struct {
	Horizontal float64
	Vertical   float64
	Diagonal   float64
	Rotational float64
	Complexity float64
	Overall    float64
	Fitness    float64
}

// Describe returns a short human-readable summary, primarily for logging
// and manual inspection.
func (r Result) Describe() string {
	return fmt.Sprintf(
		"symmetry[h=%.3f v=%.3f d=%.3f r=%.3f] complexity=%.3f overall=%.3f fitness=%.3f",
		r.Horizontal, r.Vertical, r.Diagonal, r.Rotational, r.Complexity, r.Overall, r.Fitness,
	)
}

// Analyze scores img under the default-equivalent behavior of
// AnalyzeWithConfig using config.DefaultAnalyzer (every axis enabled,
// default weights); callers
// that care about custom weights should call AnalyzeWithConfig directly.
func Analyze(img *vm.Image) Result {
	return AnalyzeWithConfig(img, config.DefaultAnalyzer())
}

// AnalyzeWithConfig scores img under cfg's per-axis enables and weights.
func AnalyzeWithConfig(img *vm.Image, cfg config.Analyzer) Result {
	h := horizontalSymmetry(img)
	v := verticalSymmetry(img)
	d := diagonalSymmetry(img)
	r := rotationalSymmetry(img)
	c := complexity(img)

	overall := (h + v + d + r) / 4.0

	var fitness float64
	if cfg.EnableHorizontal {
		fitness += h * cfg.WeightHorizontal
	}
	if cfg.EnableVertical {
		fitness += v * cfg.WeightVertical
	}
	if cfg.EnableDiagonal {
		fitness += d * cfg.WeightDiagonal
	}
	if cfg.EnableRotational {
		fitness += r * cfg.WeightRotational
	}
	if cfg.EnableComplexity {
		fitness += c * cfg.WeightComplexity
	}
	fitness = clamp01(fitness)

	return Result{
		Horizontal: h,
		Vertical:   v,
		Diagonal:   d,
		Rotational: r,
		Complexity: c,
		Overall:    clamp01(overall),
		Fitness:    fitness,
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

func channelDiff(img *vm.Image, x0, y0, x1, y1 int) float64 {
	r0, g0, b0 := img.At(x0, y0)
	r1, g1, b1 := img.At(x1, y1)
	return float64(absInt(int(r0)-int(r1)) + absInt(int(g0)-int(g1)) + absInt(int(b0)-int(b1)))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func similarity(sumDiff float64, count int) float64 {
	if count == 0 {
		return 0
	}
	meanDiff := sumDiff / float64(count) / 3.0 // 3 channels folded into channelDiff
	return clamp01(1 - meanDiff/255.0)
}

// horizontalSymmetry compares row pairs equidistant from the horizontal
// midline (mirroring top/bottom).
func horizontalSymmetry(img *vm.Image) float64 {
	if img.Height < 2 {
		return 0
	}
	var sum float64
	var count int
	for y := 0; y < img.Height/2; y++ {
		mirrorY := img.Height - 1 - y
		for x := 0; x < img.Width; x++ {
			sum += channelDiff(img, x, y, x, mirrorY)
			count++
		}
	}
	return similarity(sum, count)
}

// verticalSymmetry compares column pairs equidistant from the vertical
// midline (mirroring left/right).
func verticalSymmetry(img *vm.Image) float64 {
	if img.Width < 2 {
		return 0
	}
	var sum float64
	var count int
	for x := 0; x < img.Width/2; x++ {
		mirrorX := img.Width - 1 - x
		for y := 0; y < img.Height; y++ {
			sum += channelDiff(img, x, y, mirrorX, y)
			count++
		}
	}
	return similarity(sum, count)
}

// diagonalSymmetry compares pixel (row i, col j) with pixel (row j, col
// i) over the square prefix of side min(height,width), for i<j.
func diagonalSymmetry(img *vm.Image) float64 {
	side := img.Height
	if img.Width < side {
		side = img.Width
	}
	if side < 2 {
		return 0
	}
	var sum float64
	var count int
	for i := 0; i < side; i++ {
		for j := i + 1; j < side; j++ {
			// pixel(i,j) = row i, col j; pixel(j,i) = row j, col i
			sum += channelDiff(img, j, i, i, j)
			count++
		}
	}
	return similarity(sum, count)
}

// rotationalSymmetry compares the upper-left quadrant with its 180
// degree rotation.
func rotationalSymmetry(img *vm.Image) float64 {
	if img.Height < 2 || img.Width < 2 {
		return 0
	}
	var sum float64
	var count int
	for y := 0; y < img.Height/2; y++ {
		for x := 0; x < img.Width/2; x++ {
			mirrorX := img.Width - 1 - x
			mirrorY := img.Height - 1 - y
			sum += channelDiff(img, x, y, mirrorX, mirrorY)
			count++
		}
	}
	return similarity(sum, count)
}

// complexity converts img to grayscale, runs a Canny edge detector with
// thresholds 50/150, and returns min(1, 10 * edgePixels/totalPixels).
func complexity(img *vm.Image) float64 {
	if img.Width == 0 || img.Height == 0 {
		return 0
	}
	gray := toGrayscale(img)
	edges := canny(gray, img.Width, img.Height, 50, 150)
	var edgeCount int
	for _, v := range edges {
		if v {
			edgeCount++
		}
	}
	total := img.Width * img.Height
	ratio := float64(edgeCount) / float64(total)
	return clamp01(ratio * 10)
}
