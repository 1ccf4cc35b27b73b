// Package yin implements a YIN pitch extractor with an FFT-based difference
// function, usable as a pitch.Extractor.
package yin

import (
	"errors"

	"github.com/mjibson/go-dsp/fft"

	"github.com/CNChTu/MelPE/internal/framing"
	"github.com/CNChTu/MelPE/pitch"
)

// ErrInvalidSampleRate indicates a non-positive sample rate.
var ErrInvalidSampleRate = errors.New("yin: sample rate must be positive")

const (
	defaultFrameSize = 2048
	defaultHopSize   = 256
	defaultTolerance = 0.25

	// Default search range, matching the C1..B6 span commonly reported by
	// mel-based pitch models.
	defaultF0Min = 32.70
	defaultF0Max = 1975.5
)

// Config holds YIN analysis parameters. Zero fields take defaults.
type Config struct {
	FrameSize int     // analysis window length in samples
	HopSize   int     // frame step in samples
	F0Min     float64 // lowest reported frequency in Hz
	F0Max     float64 // highest reported frequency in Hz
	Tolerance float64 // aperiodicity ceiling for a frame to count as voiced
}

func normalizeConfig(cfg Config) Config {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = defaultFrameSize
	}

	if cfg.HopSize <= 0 {
		cfg.HopSize = defaultHopSize
	}

	if cfg.F0Min <= 0 {
		cfg.F0Min = defaultF0Min
	}

	if cfg.F0Max <= cfg.F0Min {
		cfg.F0Max = defaultF0Max
	}

	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}

	return cfg
}

// Extractor estimates per-frame F0 using the YIN cumulative-mean normalized
// difference function. It is safe for concurrent Estimate calls.
type Extractor struct {
	cfg Config
}

// New creates a YIN extractor.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: normalizeConfig(cfg)}
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
// req.Threshold discards detections whose confidence (1 - aperiodicity)
// falls below it; req.DecoderMode "argmax" picks the globally deepest dip
// instead of the default first-below-tolerance rule.
func (e *Extractor) Estimate(audio [][]float64, req pitch.Request) (pitch.Sequence, error) {
	if req.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	cfg := e.cfg
	minPeriod := int(req.SampleRate / cfg.F0Max)
	if minPeriod < 2 {
		minPeriod = 2
	}

	maxPeriod := int(req.SampleRate/cfg.F0Min) + 1
	if maxPeriod > cfg.FrameSize-1 {
		maxPeriod = cfg.FrameSize - 1
	}

	frame := make([]float64, cfg.FrameSize)
	diff := make([]float64, cfg.FrameSize)
	buf := make([]complex128, 2*cfg.FrameSize)

	out := make(pitch.Sequence, len(audio))
	for b, x := range audio {
		frames := framing.Count(len(x), cfg.HopSize)
		row := make([]float64, frames)

		for t := 0; t < frames; t++ {
			framing.Transposed(frame, x, t*cfg.HopSize, req.KeyShift)
			row[t] = e.detect(frame, diff, buf, minPeriod, maxPeriod, req)
		}

		out[b] = row
	}

	return out, nil
}

// detect runs YIN on a single frame and returns the detected frequency in Hz
// or 0 for an unvoiced frame.
func (e *Extractor) detect(frame, diff []float64, buf []complex128, minPeriod, maxPeriod int, req pitch.Request) float64 {
	difference(frame, diff, buf)
	cumulativeMean(diff)

	tau, depth := e.pickDip(diff, minPeriod, maxPeriod, req.DecoderMode)
	if tau <= 0 || depth >= e.cfg.Tolerance {
		return 0
	}

	if confidence := 1 - depth; confidence < req.Threshold {
		return 0
	}

	period := parabolic(diff, tau)
	if period <= 0 {
		return 0
	}

	return req.SampleRate / period
}

// difference computes d(tau) = sum (x[i]-x[i+tau])^2 for all lags via a
// zero-padded FFT autocorrelation.
func difference(x, d []float64, buf []complex128) {
	n := len(x)
	for i := range buf {
		buf[i] = 0
	}

	for i, v := range x {
		buf[i] = complex(v, 0)
	}

	spec := fft.FFT(buf)
	for i, c := range spec {
		re := real(c)
		im := imag(c)
		spec[i] = complex(re*re+im*im, 0)
	}

	ac := fft.IFFT(spec)

	// Prefix energies: d(tau) = E[0..n-tau) + E[tau..n) - 2*r(tau).
	total := 0.0
	for _, v := range x {
		total += v * v
	}

	head := 0.0 // E[0..tau)
	tail := 0.0 // E[n-tau..n)
	for tau := 0; tau < n; tau++ {
		d[tau] = (total - tail) + (total - head) - 2*real(ac[tau])
		head += x[tau] * x[tau]
		tail += x[n-1-tau] * x[n-1-tau]
	}
}

// cumulativeMean normalizes the difference function in place.
func cumulativeMean(d []float64) {
	sum := 0.0
	d[0] = 1

	for tau := 1; tau < len(d); tau++ {
		sum += d[tau]
		if sum > 0 {
			d[tau] = d[tau] * float64(tau) / sum
		} else {
			d[tau] = 1
		}
	}
}

// pickDip selects a period candidate among the local minima of d. The
// default mode returns the first dip below the tolerance; "argmax" returns
// the globally deepest dip in range.
func (e *Extractor) pickDip(d []float64, minPeriod, maxPeriod int, mode string) (int, float64) {
	bestTau := 0
	bestDepth := 1.0

	for tau := minPeriod; tau < maxPeriod; tau++ {
		if d[tau] >= d[tau-1] || d[tau] > d[tau+1] {
			continue
		}

		if mode != "argmax" && d[tau] < e.cfg.Tolerance {
			return tau, d[tau]
		}

		if d[tau] < bestDepth {
			bestTau = tau
			bestDepth = d[tau]
		}
	}

	return bestTau, bestDepth
}

// parabolic refines an integer lag by fitting a parabola through its
// neighbors.
func parabolic(d []float64, tau int) float64 {
	if tau <= 0 || tau+1 >= len(d) {
		return float64(tau)
	}

	s0 := d[tau-1]
	s1 := d[tau]
	s2 := d[tau+1]

	denom := (s2 + s0 - 2*s1) * 2
	if denom == 0 {
		return float64(tau)
	}

	return float64(tau) - (s2-s0)/denom
}
