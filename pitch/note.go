package pitch

import "math"

// noteEpsilon replaces exact-zero Hz before the logarithm so unvoiced frames
// map to a strongly negative note that the floor then clamps to 0.
const noteEpsilon = 1e-6

// Note converts an Hz value to the log-pitch (MIDI note) scale, compensating
// for the key shift under which it was estimated: the input is divided by
// 2^(keyShift/12) first so all hypotheses compare on a common reference.
// A4 = 440 Hz maps to note 69. Notes below 0 are floored to 0; this is a
// normalization for distance comparisons, not a physical pitch floor.
func Note(hz, keyShift float64) float64 {
	hz /= semitoneRatio(keyShift)
	if hz == 0 {
		hz = noteEpsilon
	}

	note := 12*math.Log2(hz/440) + 69
	if note < 0 {
		return 0
	}

	return note
}

// semitoneRatio returns the frequency ratio of a transposition in semitones.
func semitoneRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}
