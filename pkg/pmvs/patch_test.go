package pmvs

import (
	"math"
	"testing"
)

// TestRobustUnrobustRoundTrip verifies robust and unrobust invert each other
// across a range of dissimilarities, including values past NCC's natural
// [0,2] span so the inversion's pole at score=1/3 is exercised deliberately.
func TestRobustUnrobustRoundTrip(t *testing.T) {
	for _, x := range []float64{0, 0.1, 0.5, 1.0, 1.5, 2.0} {
		score := robust(x)
		got := unrobust(score)
		if math.Abs(got-x) > 1e-9 {
			t.Errorf("unrobust(robust(%v)) = %v, want %v", x, got, x)
		}
	}
}

func TestRobustCompressesLargeDissimilarity(t *testing.T) {
	small := robust(0.1)
	large := robust(10.0)
	if large <= small {
		t.Errorf("robust should be increasing, got robust(0.1)=%v >= robust(10)=%v", small, large)
	}
	if large >= 1.0/3.0 {
		t.Errorf("robust(x) should approach but never reach 1/3 as x grows, got %v", large)
	}
}
