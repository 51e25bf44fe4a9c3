package analyzer

import (
	"math"

	"evosim/internal/vm"
)

// toGrayscale converts img to a flat row-major slice of luminosity values
// using the standard perceptual weighting.
func toGrayscale(img *vm.Image) []float64 {
	out := make([]float64, img.Width*img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			out[y*img.Width+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return out
}

var gaussianKernel5 = [5][5]float64{
	{2, 4, 5, 4, 2},
	{4, 9, 12, 9, 4},
	{5, 12, 15, 12, 5},
	{4, 9, 12, 9, 4},
	{2, 4, 5, 4, 2},
}

const gaussianKernelSum = 159.0

func gaussianBlur(gray []float64, w, h int) []float64 {
	out := make([]float64, len(gray))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sx := clampIndex(x+kx, w)
					sy := clampIndex(y+ky, h)
					acc += gray[sy*w+sx] * gaussianKernel5[ky+2][kx+2]
				}
			}
			out[y*w+x] = acc / gaussianKernelSum
		}
	}
	return out
}

func clampIndex(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

var sobelX = [3][3]float64{
	{-1, 0, 1},
	{-2, 0, 2},
	{-1, 0, 1},
}

var sobelY = [3][3]float64{
	{-1, -2, -1},
	{0, 0, 0},
	{1, 2, 1},
}

func sobel(gray []float64, w, h int) (magnitude, direction []float64) {
	magnitude = make([]float64, len(gray))
	direction = make([]float64, len(gray))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx := clampIndex(x+kx, w)
					sy := clampIndex(y+ky, h)
					v := gray[sy*w+sx]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*w+x] = math.Hypot(gx, gy)
			direction[y*w+x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// nonMaxSuppress thins edges by keeping only local maxima along the
// gradient direction, quantized to the nearest of 4 compass directions.
func nonMaxSuppress(magnitude, direction []float64, w, h int) []float64 {
	out := make([]float64, len(magnitude))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			angle := direction[idx] * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}

			var n1x, n1y, n2x, n2y int
			switch {
			case angle < 22.5 || angle >= 157.5:
				n1x, n1y, n2x, n2y = -1, 0, 1, 0
			case angle < 67.5:
				n1x, n1y, n2x, n2y = -1, -1, 1, 1
			case angle < 112.5:
				n1x, n1y, n2x, n2y = 0, -1, 0, 1
			default:
				n1x, n1y, n2x, n2y = -1, 1, 1, -1
			}

			n1 := magnitude[clampIndex(y+n1y, h)*w+clampIndex(x+n1x, w)]
			n2 := magnitude[clampIndex(y+n2y, h)*w+clampIndex(x+n2x, w)]

			if magnitude[idx] >= n1 && magnitude[idx] >= n2 {
				out[idx] = magnitude[idx]
			}
		}
	}
	return out
}

// canny runs a standard Canny edge detector (Gaussian blur, Sobel
// gradient, non-maximum suppression, double-threshold hysteresis) and
// returns a boolean edge map.
func canny(gray []float64, w, h int, lowThreshold, highThreshold float64) []bool {
	if w == 0 || h == 0 {
		return nil
	}
	blurred := gaussianBlur(gray, w, h)
	magnitude, direction := sobel(blurred, w, h)
	suppressed := nonMaxSuppress(magnitude, direction, w, h)

	strong := make([]bool, len(suppressed))
	weak := make([]bool, len(suppressed))
	for i, m := range suppressed {
		if m >= highThreshold {
			strong[i] = true
		} else if m >= lowThreshold {
			weak[i] = true
		}
	}

	edges := make([]bool, len(suppressed))
	copy(edges, strong)

	// Hysteresis: promote weak edges connected (8-neighborhood) to a
	// strong edge, iterating to a fixed point.
	changed := true
	for changed {
		changed = false
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := y*w + x
				if !weak[idx] || edges[idx] {
					continue
				}
				if hasStrongNeighbor(edges, x, y, w, h) {
					edges[idx] = true
					changed = true
				}
			}
		}
	}

	return edges
}

func hasStrongNeighbor(edges []bool, x, y, w, h int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			if edges[ny*w+nx] {
				return true
			}
		}
	}
	return false
}
