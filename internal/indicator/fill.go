package indicator

import "math"

// Fill replaces undefined values in place, first backward from the next
// defined value and then forward from the previous one. A column with no
// defined value is left untouched.
func Fill(values []float64) []float64 {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}

	prev := math.NaN()
	for i := range values {
		if math.IsNaN(values[i]) {
			values[i] = prev
		} else {
			prev = values[i]
		}
	}
	return values
}
