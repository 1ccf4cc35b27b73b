package pitch

import (
	"errors"
	"math"
)

var (
	// ErrNoHypotheses indicates an empty hypothesis set.
	ErrNoHypotheses = errors.New("pitch: at least one hypothesis is required")
	// ErrShapeMismatch indicates hypotheses with differing batch or frame counts.
	ErrShapeMismatch = errors.New("pitch: hypothesis sequences differ in shape")
)

const (
	// jumpDeadZone is subtracted from the squared note distance between
	// consecutive voiced frames; jumps below sqrt(0.5) notes cost nothing.
	jumpDeadZone = 0.5

	// onsetPenaltyFactor scales the unvoiced-to-voiced switch penalty
	// relative to the per-frame unvoiced cost.
	onsetPenaltyFactor = 2
)

// DecodeEnsemble merges several key-shifted estimates of the same audio into
// one frequency sequence per batch item. It runs a minimum-cost path search
// over the hypothesis axis where staying or becoming unvoiced costs
// uvPenaltyBase^2 per frame, switching from unvoiced to voiced costs twice
// that, and voiced-to-voiced transitions pay the squared note distance in
// excess of the dead zone.
//
// The returned values are shift-compensated: each selected Hz value refers to
// the pitch of the original, untransposed audio. The decoder only selects
// among the given candidates per frame, it never synthesizes new values.
func DecodeEnsemble(hyps []Hypothesis, uvPenaltyBase float64) (Sequence, error) {
	if len(hyps) == 0 {
		return nil, ErrNoHypotheses
	}

	batch := len(hyps[0].F0)
	for _, h := range hyps[1:] {
		if len(h.F0) != batch {
			return nil, ErrShapeMismatch
		}
	}

	for b := 0; b < batch; b++ {
		frames := len(hyps[0].F0[b])
		for _, h := range hyps[1:] {
			if len(h.F0[b]) != frames {
				return nil, ErrShapeMismatch
			}
		}
	}

	uvPenalty := uvPenaltyBase * uvPenaltyBase
	cands := len(hyps)
	out := make(Sequence, batch)

	for b := 0; b < batch; b++ {
		frames := len(hyps[0].F0[b])

		// Candidate-major layout per frame: index (t, c) -> t*cands+c.
		comp := make([]float64, frames*cands)
		notes := make([]float64, frames*cands)

		for c, h := range hyps {
			ratio := semitoneRatio(h.KeyShift)
			for t, hz := range h.F0[b] {
				comp[t*cands+c] = hz / ratio
				notes[t*cands+c] = Note(hz, h.KeyShift)
			}
		}

		out[b] = decodeRow(comp, notes, frames, cands, uvPenalty)
	}

	return out, nil
}

// decodeRow runs the forward recurrence and backtrack for one batch item.
// dp[t*cands+c] is the minimum accumulated penalty of any path through frames
// 0..t ending at candidate c; backtrack records the chosen predecessor.
func decodeRow(comp, notes []float64, frames, cands int, uvPenalty float64) []float64 {
	if frames == 0 {
		return []float64{}
	}

	dp := make([]float64, frames*cands)
	backtrack := make([]int, frames*cands)

	for c := 0; c < cands; c++ {
		if notes[c] <= 0 {
			dp[c] = uvPenalty
		}
	}

	for t := 1; t < frames; t++ {
		prev := dp[(t-1)*cands : t*cands]
		prevNotes := notes[(t-1)*cands : t*cands]

		for c := 0; c < cands; c++ {
			cur := notes[t*cands+c]
			best := math.Inf(1)
			bestPrev := 0

			if cur <= 0 {
				// Arriving unvoiced costs one penalty unit regardless of
				// the predecessor's voicing state.
				for p, acc := range prev {
					if v := acc + uvPenalty; v < best {
						best = v
						bestPrev = p
					}
				}
			} else {
				for p, acc := range prev {
					cost := acc
					if pn := prevNotes[p]; pn > 0 {
						d := pn - cur
						if excess := d*d - jumpDeadZone; excess > 0 {
							cost += excess
						}
					} else {
						cost += onsetPenaltyFactor * uvPenalty
					}

					if cost < best {
						best = cost
						bestPrev = p
					}
				}
			}

			dp[t*cands+c] = best
			backtrack[t*cands+c] = bestPrev
		}
	}

	last := frames - 1
	bestC := 0
	for c := 1; c < cands; c++ {
		if dp[last*cands+c] < dp[last*cands+bestC] {
			bestC = c
		}
	}

	out := make([]float64, frames)
	for t := last; t >= 0; t-- {
		out[t] = comp[t*cands+bestC]
		bestC = backtrack[t*cands+bestC]
	}

	return out
}
