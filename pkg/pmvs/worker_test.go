package pmvs

import (
	"sync/atomic"
	"testing"
)

func TestRunParallelVisitsEveryIndexExactlyOnce(t *testing.T) {
	const n = 200
	var counts [n]int32
	runParallel(4, n, func(_, idx int) {
		atomic.AddInt32(&counts[idx], 1)
	})
	for i, c := range counts {
		if c != 1 {
			t.Errorf("index %d visited %d times, want exactly 1", i, c)
		}
	}
}

func TestRunParallelHandlesFewerItemsThanWorkers(t *testing.T) {
	var calls int32
	runParallel(8, 3, func(_, _ int) {
		atomic.AddInt32(&calls, 1)
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunParallelNoItemsIsANoop(t *testing.T) {
	called := false
	runParallel(4, 0, func(_, _ int) { called = true })
	if called {
		t.Error("runParallel with n=0 should never call fn")
	}
}

func TestOptimizeAllPreservesAcceptedOrder(t *testing.T) {
	o, _, _ := newTestOptimizer()
	// Narrow AngleThreshold0 so addImages cannot re-inflate the single-image
	// middle candidate with cameras 0 and 2; it must then be rejected.
	o.cfg.AngleThreshold0 = 0.05
	candidates := []*Patch{
		{Coord: NewPoint(0, 0, 0), Normal: NewDir(0, 0, -1), Images: []int{1, 0, 2}},
		{Coord: NewPoint(0.05, 0, 0), Normal: NewDir(0, 0, -1), Images: []int{1}},
		{Coord: NewPoint(-0.05, 0, 0), Normal: NewDir(0, 0, -1), Images: []int{1, 0, 2}},
	}
	accepted := o.OptimizeAll(candidates)
	if len(accepted) != 2 {
		t.Fatalf("OptimizeAll accepted %d patches, want 2", len(accepted))
	}
	if accepted[0] != candidates[0] || accepted[1] != candidates[2] {
		t.Error("OptimizeAll should preserve the original relative order of accepted candidates")
	}
}
