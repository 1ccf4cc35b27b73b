package pitch

import "testing"

func TestFillGaps(t *testing.T) {
	tests := []struct {
		name   string
		mask   []bool
		values []float64
		want   []float64
	}{
		{
			name:   "interior gap interpolates linearly",
			mask:   []bool{false, true, false},
			values: []float64{100, 0, 200},
			want:   []float64{100, 150, 200},
		},
		{
			name:   "long interior gap",
			mask:   []bool{false, true, true, true, false},
			values: []float64{100, 0, 0, 0, 300},
			want:   []float64{100, 150, 200, 250, 300},
		},
		{
			name:   "leading run takes first voiced value",
			mask:   []bool{true, true, false, false},
			values: []float64{0, 0, 220, 220},
			want:   []float64{220, 220, 220, 220},
		},
		{
			name:   "trailing run takes last voiced value",
			mask:   []bool{false, true, true},
			values: []float64{110, 0, 0},
			want:   []float64{110, 110, 110},
		},
		{
			name:   "no voiced frame copies unchanged",
			mask:   []bool{true, true, true},
			values: []float64{0, 0, 0},
			want:   []float64{0, 0, 0},
		},
		{
			name:   "fully voiced copies unchanged",
			mask:   []bool{false, false, false},
			values: []float64{110, 120, 130},
			want:   []float64{110, 120, 130},
		},
		{
			name:   "single voiced frame extends both ways",
			mask:   []bool{true, false, true},
			values: []float64{0, 150, 0},
			want:   []float64{150, 150, 150},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FillGaps([][]bool{tc.mask}, Sequence{tc.values})
			assertSequenceEqual(t, got, Sequence{tc.want})
		})
	}
}

func TestFillGapsDoesNotMutateInput(t *testing.T) {
	values := Sequence{{100, 0, 200}}
	FillGaps([][]bool{{false, true, false}}, values)

	if values[0][1] != 0 {
		t.Fatalf("input frame mutated to %v, want 0", values[0][1])
	}
}
