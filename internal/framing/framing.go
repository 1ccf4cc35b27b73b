// Package framing provides fixed-hop analysis framing with optional semitone
// transposition by analysis-window scaling.
package framing

import "math"

// Count returns the number of analysis frames for a signal of n samples at
// the given hop, one frame per hop plus one.
func Count(n, hop int) int {
	if n <= 0 || hop <= 0 {
		return 0
	}

	return n/hop + 1
}

// Transposed fills dst with the analysis frame centered at sample center of
// x, transposed by keyShift semitones. The source span is scaled by
// 2^(keyShift/12) and linearly resampled to len(dst), which scales any
// frequency detected in the frame by the same factor. Positions outside x
// read as 0.
func Transposed(dst, x []float64, center int, keyShift float64) {
	step := math.Pow(2, keyShift/12)
	pos := float64(center) - step*float64(len(dst))/2

	for j := range dst {
		dst[j] = sampleLinear(x, pos)
		pos += step
	}
}

// sampleLinear evaluates x at a fractional position by linear interpolation.
func sampleLinear(x []float64, pos float64) float64 {
	i := math.Floor(pos)
	frac := pos - i
	i0 := int(i)

	var a, b float64
	if i0 >= 0 && i0 < len(x) {
		a = x[i0]
	}

	if i0+1 >= 0 && i0+1 < len(x) {
		b = x[i0+1]
	}

	return a + frac*(b-a)
}
