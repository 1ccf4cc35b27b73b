// Package pitch refines raw per-frame fundamental-frequency estimates into a
// stable, voicing-aware pitch track.
//
// The raw estimates come from a pluggable [Extractor]. Under test-time
// augmentation the same audio is analyzed several times, transposed by a
// different number of semitones each time, and the resulting hypotheses are
// merged by [DecodeEnsemble], a Viterbi search that jointly penalizes
// voiced/unvoiced switching and frame-to-frame pitch jumps on the log-pitch
// (note) scale.
//
// [Tracker] wires the pieces together: extraction (optionally augmented and
// ensembled), voicing threshold against an F0 floor, optional unvoiced-gap
// interpolation, range clamping, and nearest-neighbor resampling of the frame
// axis to a target length.
//
// Common workflow:
//
//	trk, err := pitch.New(extractor,
//		pitch.WithAugmentation(),
//		pitch.WithInterpolateUnvoiced(),
//		pitch.WithVoicingMask())
//	res, err := trk.Track(audio, sampleRate)
package pitch
