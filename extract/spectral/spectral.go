// Package spectral implements a harmonic-weighted spectral-peak pitch
// extractor, usable as a pitch.Extractor.
package spectral

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/mjibson/go-dsp/window"

	"github.com/CNChTu/MelPE/internal/framing"
	"github.com/CNChTu/MelPE/pitch"
)

// ErrInvalidSampleRate indicates a non-positive sample rate.
var ErrInvalidSampleRate = errors.New("spectral: sample rate must be positive")

const (
	defaultFrameSize = 4096
	defaultHopSize   = 256
	defaultHarmonics = 5

	defaultF0Min = 32.70
	defaultF0Max = 1975.5
)

// Config holds spectral analysis parameters. Zero fields take defaults;
// FrameSize is rounded up to a power of two.
type Config struct {
	FrameSize int
	HopSize   int
	Harmonics int // harmonics summed when scoring a fundamental candidate
	F0Min     float64
	F0Max     float64
}

func normalizeConfig(cfg Config) Config {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = defaultFrameSize
	}

	cfg.FrameSize = nextPowerOf2(cfg.FrameSize)

	if cfg.HopSize <= 0 {
		cfg.HopSize = defaultHopSize
	}

	if cfg.Harmonics <= 0 {
		cfg.Harmonics = defaultHarmonics
	}

	if cfg.F0Min <= 0 {
		cfg.F0Min = defaultF0Min
	}

	if cfg.F0Max <= cfg.F0Min {
		cfg.F0Max = defaultF0Max
	}

	return cfg
}

// Extractor estimates per-frame F0 by scoring fundamental candidates with a
// harmonic-weighted sum over the power spectrum. It is safe for concurrent
// Estimate calls.
type Extractor struct {
	cfg   Config
	coeff []float64 // Hann window, immutable after New
}

// New creates a spectral extractor.
func New(cfg Config) *Extractor {
	cfg = normalizeConfig(cfg)

	return &Extractor{
		cfg:   cfg,
		coeff: window.Hann(cfg.FrameSize),
	}
}

// F0Range reports the configured search range.
func (e *Extractor) F0Range() (min, max float64) {
	return e.cfg.F0Min, e.cfg.F0Max
}

// HopSize returns the frame step in samples.
func (e *Extractor) HopSize() int {
	return e.cfg.HopSize
}

// Estimate returns one F0 value per frame and batch item, 0 for unvoiced
// frames. req.KeyShift transposes the analysis by the given semitones;
// req.Threshold is the minimum fraction of total spectral power that the
// winning harmonic stack must capture; req.DecoderMode "argmax" reports the
// raw peak bin, while the default refines it by parabolic interpolation.
func (e *Extractor) Estimate(audio [][]float64, req pitch.Request) (pitch.Sequence, error) {
	if req.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	cfg := e.cfg

	plan, err := algofft.NewPlan64(cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("spectral: failed to create FFT plan: %w", err)
	}

	bins := cfg.FrameSize/2 + 1
	binHz := req.SampleRate / float64(cfg.FrameSize)

	minBin := int(math.Ceil(cfg.F0Min / binHz))
	if minBin < 1 {
		minBin = 1
	}

	maxBin := int(math.Floor(cfg.F0Max / binHz))
	if maxBin > bins-2 {
		maxBin = bins - 2
	}

	frame := make([]float64, cfg.FrameSize)
	inData := make([]complex128, cfg.FrameSize)
	outData := make([]complex128, cfg.FrameSize)
	re := make([]float64, bins)
	im := make([]float64, bins)
	power := make([]float64, bins)

	out := make(pitch.Sequence, len(audio))
	for b, x := range audio {
		frames := framing.Count(len(x), cfg.HopSize)
		row := make([]float64, frames)

		for t := 0; t < frames; t++ {
			framing.Transposed(frame, x, t*cfg.HopSize, req.KeyShift)
			vecmath.MulBlockInPlace(frame, e.coeff)

			for i, v := range frame {
				inData[i] = complex(v, 0)
			}

			if err := plan.Forward(outData, inData); err != nil {
				return nil, fmt.Errorf("spectral: forward FFT failed: %w", err)
			}

			for i := 0; i < bins; i++ {
				re[i] = real(outData[i])
				im[i] = imag(outData[i])
			}

			vecmath.Power(power, re, im)

			row[t] = e.pick(power, minBin, maxBin, binHz, req)
		}

		out[b] = row
	}

	return out, nil
}

// pick scores each candidate bin by a 1/h-weighted sum of its harmonics and
// returns the refined frequency of the winner, or 0 when the frame fails the
// voicing gate.
func (e *Extractor) pick(power []float64, minBin, maxBin int, binHz float64, req pitch.Request) float64 {
	if minBin > maxBin {
		return 0
	}

	total := 0.0
	for _, p := range power[1:] {
		total += p
	}

	if total <= 0 {
		return 0
	}

	bestBin := 0
	bestScore := 0.0

	for k := minBin; k <= maxBin; k++ {
		score := 0.0
		for h := 1; h <= e.cfg.Harmonics; h++ {
			bin := h * k
			if bin >= len(power) {
				break
			}

			score += power[bin] / float64(h)
		}

		if score > bestScore {
			bestScore = score
			bestBin = k
		}
	}

	if bestBin == 0 || bestScore/total < req.Threshold {
		return 0
	}

	refined := float64(bestBin)
	if req.DecoderMode != "argmax" {
		refined = refineBin(power, bestBin)
	}

	return refined * binHz
}

// refineBin fits a parabola through the peak bin and its neighbors on a log
// scale and returns the fractional bin position.
func refineBin(power []float64, bin int) float64 {
	if bin <= 0 || bin+1 >= len(power) {
		return float64(bin)
	}

	s0 := logPower(power[bin-1])
	s1 := logPower(power[bin])
	s2 := logPower(power[bin+1])

	denom := (s0 + s2 - 2*s1) * 2
	if denom == 0 {
		return float64(bin)
	}

	offset := (s0 - s2) / denom
	if offset < -0.5 || offset > 0.5 {
		return float64(bin)
	}

	return float64(bin) + offset
}

func logPower(v float64) float64 {
	if v <= 1e-12 {
		return math.Log(1e-12)
	}

	return math.Log(v)
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
