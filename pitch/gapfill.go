package pitch

// FillGaps returns a copy of values where masked (unvoiced) frames are
// replaced by linear interpolation between the nearest surrounding unmasked
// frames. Masked runs at the start or end of a row take the nearest unmasked
// value; a row with no unmasked frame is copied unchanged. mask must have the
// same shape as values.
func FillGaps(mask [][]bool, values Sequence) Sequence {
	out := make(Sequence, len(values))
	for b, row := range values {
		out[b] = make([]float64, len(row))
		fillRow(mask[b], row, out[b])
	}

	return out
}

func fillRow(mask []bool, row, out []float64) {
	first := -1
	for t, uv := range mask {
		if !uv {
			first = t
			break
		}
	}

	if first < 0 {
		copy(out, row)
		return
	}

	last := first
	for t := len(mask) - 1; t > first; t-- {
		if !mask[t] {
			last = t
			break
		}
	}

	for t := 0; t < first; t++ {
		out[t] = row[first]
	}

	for t := last + 1; t < len(row); t++ {
		out[t] = row[last]
	}

	out[first] = row[first]
	prev := first

	for t := first + 1; t <= last; t++ {
		if mask[t] {
			continue
		}

		if gap := t - prev; gap > 1 {
			span := float64(gap)
			for k := prev + 1; k < t; k++ {
				frac := float64(k-prev) / span
				out[k] = row[prev] + frac*(row[t]-row[prev])
			}
		}

		out[t] = row[t]
		prev = t
	}
}
