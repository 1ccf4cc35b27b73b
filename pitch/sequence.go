package pitch

// Sequence holds per-frame fundamental-frequency estimates in Hz for a batch
// of signals, indexed [batch][frame]. A value of 0 marks an unvoiced frame;
// values are never negative.
type Sequence [][]float64

// Clone returns a deep copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}

	out := make(Sequence, len(s))
	for b, row := range s {
		out[b] = append([]float64(nil), row...)
	}

	return out
}

// Hypothesis pairs a raw frequency sequence with the key shift in semitones
// that the audio was transposed by before extraction.
type Hypothesis struct {
	F0       Sequence
	KeyShift float64
}

// Request carries the per-call parameters forwarded to an extractor.
// DecoderMode and Threshold are opaque to this package; extractors interpret
// them.
type Request struct {
	SampleRate  float64
	KeyShift    float64
	DecoderMode string
	Threshold   float64
}

// Extractor produces a raw per-frame frequency estimate for a batch of mono
// waveforms. Implementations must be deterministic for identical inputs and
// report unvoiced frames as exactly 0 Hz.
type Extractor interface {
	Estimate(audio [][]float64, req Request) (Sequence, error)
}

// RangeReporter is implemented by extractors that know their usable F0 range.
// The tracker uses it to default the voicing floor and ceiling.
type RangeReporter interface {
	F0Range() (min, max float64)
}

// Result is the tracker output. Voicing is nil unless the voicing mask was
// requested; where present it is aligned with F0 and holds 1 for frames that
// fell below the voicing floor and 0 elsewhere.
type Result struct {
	F0      Sequence
	Voicing Sequence
}
