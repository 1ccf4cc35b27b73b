// Package testutil generates deterministic test signals.
package testutil

import (
	"math"
	"math/rand"
)

// Sine generates a unit-amplitude sine wave at the given frequency.
func Sine(freqHz, sampleRate float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = math.Sin(step * float64(i))
	}
	return out
}

// Noise generates white noise in [-amplitude, amplitude] with a fixed seed
// for reproducibility.
func Noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}
