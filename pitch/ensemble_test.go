package pitch

import (
	"errors"
	"math"
	"testing"
)

func TestDecodeEnsembleErrors(t *testing.T) {
	if _, err := DecodeEnsemble(nil, 12); !errors.Is(err, ErrNoHypotheses) {
		t.Fatalf("DecodeEnsemble(nil) error = %v, want ErrNoHypotheses", err)
	}

	hyps := []Hypothesis{
		{F0: Sequence{{110, 110, 110}}},
		{F0: Sequence{{110, 110}}},
	}
	if _, err := DecodeEnsemble(hyps, 12); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("frame mismatch error = %v, want ErrShapeMismatch", err)
	}

	hyps = []Hypothesis{
		{F0: Sequence{{110}, {110}}},
		{F0: Sequence{{110}}},
	}
	if _, err := DecodeEnsemble(hyps, 12); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("batch mismatch error = %v, want ErrShapeMismatch", err)
	}
}

func TestDecodeEnsembleSingleHypothesisIdentity(t *testing.T) {
	seq := Sequence{{110, 0, 220, 0, 0}, {330, 330, 0}}

	got, err := DecodeEnsemble([]Hypothesis{{F0: seq, KeyShift: 0}}, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	assertSequenceEqual(t, got, seq)
}

func TestDecodeEnsembleShapeInvariant(t *testing.T) {
	hyps := []Hypothesis{
		{F0: Sequence{{110, 0, 220}, {0, 0}}, KeyShift: 0},
		{F0: Sequence{{55, 0, 110}, {0, 0}}, KeyShift: -12},
	}

	got, err := DecodeEnsemble(hyps, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	if len(got) != 2 || len(got[0]) != 3 || len(got[1]) != 2 {
		t.Fatalf("output shape = %dx[%d %d], want 2x[3 2]", len(got), len(got[0]), len(got[1]))
	}
}

func TestDecodeEnsembleAllUnvoiced(t *testing.T) {
	hyps := []Hypothesis{
		{F0: Sequence{{0, 0, 0, 0}}, KeyShift: 0},
		{F0: Sequence{{0, 0, 0, 0}}, KeyShift: 12},
	}

	got, err := DecodeEnsemble(hyps, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	for t2, hz := range got[0] {
		if hz != 0 {
			t.Fatalf("frame %d = %v, want 0", t2, hz)
		}
	}
}

func TestDecodeEnsemblePenaltyMonotonicVoicing(t *testing.T) {
	unvoiced := Sequence{{0, 0, 0, 0, 0}}
	voiced := Sequence{{110, 110, 110, 110, 110}}
	hyps := []Hypothesis{
		{F0: unvoiced, KeyShift: 0},
		{F0: voiced, KeyShift: 0},
	}

	prevCount := -1
	for _, base := range []float64{0, 0.5, 2, 12} {
		got, err := DecodeEnsemble(hyps, base)
		if err != nil {
			t.Fatalf("DecodeEnsemble(base=%v) error = %v", base, err)
		}

		count := 0
		for _, hz := range got[0] {
			if hz > 0 {
				count++
			}
		}

		if count < prevCount {
			t.Fatalf("voiced frames dropped from %d to %d when base rose to %v", prevCount, count, base)
		}

		prevCount = count
	}

	if prevCount != 5 {
		t.Fatalf("voiced frames at base 12 = %d, want 5", prevCount)
	}
}

func TestDecodeEnsembleDeadZoneIndifference(t *testing.T) {
	// Half a semitone apart: squared note distance 0.25 stays inside the
	// dead zone, so both candidates carry identical path costs and the
	// decoder keeps whichever comes first.
	a := constantRow(440, 6)
	b := constantRow(440*math.Pow(2, 0.5/12), 6)

	got, err := DecodeEnsemble([]Hypothesis{
		{F0: Sequence{a}}, {F0: Sequence{b}},
	}, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}
	assertSequenceEqual(t, got, Sequence{a})

	got, err = DecodeEnsemble([]Hypothesis{
		{F0: Sequence{b}}, {F0: Sequence{a}},
	}, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}
	assertSequenceEqual(t, got, Sequence{b})
}

func TestDecodeEnsembleKeyShiftedAgreement(t *testing.T) {
	// Three estimates of the same audio at shifts 0, -12, +12. After shift
	// compensation they all describe the same contour, so the merged track
	// must equal it exactly, with voiced and unvoiced frames preserved.
	hyps := []Hypothesis{
		{F0: Sequence{{110, 0, 220, 0, 0}}, KeyShift: 0},
		{F0: Sequence{{220, 0, 440, 0, 0}}, KeyShift: 12},
		{F0: Sequence{{55, 0, 110, 0, 0}}, KeyShift: -12},
	}

	got, err := DecodeEnsemble(hyps, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	assertSequenceEqual(t, got, Sequence{{110, 0, 220, 0, 0}})
}

func TestDecodeEnsemblePrefersConsistentHypothesis(t *testing.T) {
	// One steady candidate and one that keeps jumping an octave. The path
	// search must stick with the steady one on every frame.
	steady := constantRow(220, 8)
	jumpy := []float64{220, 440, 220, 440, 220, 440, 220, 440}

	got, err := DecodeEnsemble([]Hypothesis{
		{F0: Sequence{jumpy}}, {F0: Sequence{steady}},
	}, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	for t2, hz := range got[0] {
		if hz != 220 {
			t.Fatalf("frame %d = %v, want steady 220", t2, hz)
		}
	}
}

func TestDecodeEnsembleSelectsOnlyGivenCandidates(t *testing.T) {
	hyps := []Hypothesis{
		{F0: Sequence{{100, 0, 207, 190}}, KeyShift: 0},
		{F0: Sequence{{196, 392, 400, 0}}, KeyShift: 12},
	}

	got, err := DecodeEnsemble(hyps, 12)
	if err != nil {
		t.Fatalf("DecodeEnsemble() error = %v", err)
	}

	for t2, hz := range got[0] {
		candidates := []float64{
			hyps[0].F0[0][t2],
			hyps[1].F0[0][t2] / 2, // compensated for the +12 shift
		}

		if hz != candidates[0] && hz != candidates[1] {
			t.Fatalf("frame %d = %v, not among candidates %v", t2, hz, candidates)
		}
	}
}

func assertSequenceEqual(t *testing.T, got, want Sequence) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("batch size = %d, want %d", len(got), len(want))
	}

	for b := range want {
		if len(got[b]) != len(want[b]) {
			t.Fatalf("batch %d frame count = %d, want %d", b, len(got[b]), len(want[b]))
		}

		for f := range want[b] {
			if math.Abs(got[b][f]-want[b][f]) > 1e-9 {
				t.Fatalf("batch %d frame %d = %v, want %v", b, f, got[b][f], want[b][f])
			}
		}
	}
}

func constantRow(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}
