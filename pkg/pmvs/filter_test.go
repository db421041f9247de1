package pmvs

import "testing"

func newTestFilter() (*Filter, *Store) {
	cams := threeCameraRig()
	photos := newFakePhotoSet(cams)
	cfg := testConfig(len(cams))
	store := NewStore(photos, cfg)
	return NewFilter(photos, store, cfg), store
}

// TestFilterQuadAcceptsFlatNeighbors is scenario E's accept half: a patch
// sitting exactly on the plane its neighbors define should survive the
// quadric fit.
func TestFilterQuadAcceptsFlatNeighbors(t *testing.T) {
	f, _ := newTestFilter()
	normal := NewDir(0, 0, -1)
	p := &Patch{Coord: NewPoint(0, 0, 0), Normal: normal, NCC: 0.5, DScale: 0.05}
	neighbors := []*Patch{
		{Coord: NewPoint(0.1, 0, 0), Normal: normal, NCC: 0.5, DScale: 0.05},
		{Coord: NewPoint(-0.1, 0.05, 0), Normal: normal, NCC: 0.5, DScale: 0.05},
		{Coord: NewPoint(0, -0.1, 0), Normal: normal, NCC: 0.5, DScale: 0.05},
		{Coord: NewPoint(0.05, 0.08, 0), Normal: normal, NCC: 0.5, DScale: 0.05},
	}
	if !f.filterQuad(p, neighbors) {
		t.Error("filterQuad should accept a patch that lies on its neighbors' shared plane")
	}
}

// TestFilterQuadRejectsOutlier is scenario E's reject half: a patch sitting
// far off the plane its neighbors define, relative to its own depth step,
// should fail the quadric fit.
func TestFilterQuadRejectsOutlier(t *testing.T) {
	f, _ := newTestFilter()
	normal := NewDir(0, 0, -1)
	p := &Patch{Coord: NewPoint(0, 0, 5), Normal: normal, NCC: 0.5, DScale: 0.01}
	neighbors := []*Patch{
		{Coord: NewPoint(0.1, 0, 0), Normal: normal, NCC: 0.5, DScale: 0.01},
		{Coord: NewPoint(-0.1, 0.05, 0), Normal: normal, NCC: 0.5, DScale: 0.01},
		{Coord: NewPoint(0, -0.1, 0), Normal: normal, NCC: 0.5, DScale: 0.01},
		{Coord: NewPoint(0.05, 0.08, 0), Normal: normal, NCC: 0.5, DScale: 0.01},
	}
	if f.filterQuad(p, neighbors) {
		t.Error("filterQuad should reject a patch far off its neighbors' shared plane")
	}
}

func TestFilterQuadAcceptsWithFewNeighbors(t *testing.T) {
	f, _ := newTestFilter()
	p := &Patch{Coord: NewPoint(0, 0, 5), Normal: NewDir(0, 0, -1), NCC: 0.9, DScale: 0.001}
	if !f.filterQuad(p, []*Patch{{Coord: NewPoint(10, 10, 10)}}) {
		t.Error("filterQuad should accept outright when there aren't enough neighbors to fit")
	}
}

// TestFilterSmallGroupsRemovesIsolated is scenario F: a lone patch sharing
// no grid cell with anything else should be removed once its connected
// component falls below MinPatchesGrid.
func TestFilterSmallGroupsRemovesIsolated(t *testing.T) {
	f, store := newTestFilter()
	store.cfg.MinPatchesGrid = 2

	a := &Patch{Coord: NewPoint(0, 0, 0), Images: []int{0, 1, 2}}
	b := &Patch{Coord: NewPoint(0.001, 0, 0), Images: []int{0, 1, 2}}
	isolated := &Patch{Coord: NewPoint(50, 50, 0), Images: []int{0, 1, 2}}

	for _, p := range []*Patch{a, b, isolated} {
		store.Add(p)
		store.SetGrids(p)
	}

	f.cfg.MinPatchesGrid = 2
	f.filterSmallGroups()

	all := store.AllPatches()
	foundA, foundB, foundIsolated := false, false, false
	for _, p := range all {
		switch p {
		case a:
			foundA = true
		case b:
			foundB = true
		case isolated:
			foundIsolated = true
		}
	}
	if !foundA || !foundB {
		t.Error("filterSmallGroups should keep a and b, whose connected component reaches MinPatchesGrid")
	}
	if foundIsolated {
		t.Error("filterSmallGroups should remove a patch whose component is smaller than MinPatchesGrid")
	}
}

func TestComputeGainRewardsImageCountAboveThreshold(t *testing.T) {
	f, _ := newTestFilter()
	f.cfg.MinImageNumThreshold = 3
	p := &Patch{Images: []int{0, 1, 2, 3, 4}}
	gain := f.computeGain(p)
	if gain != 2 {
		t.Errorf("computeGain with no vimage competitors = %v, want len(Images)-MinImageNumThreshold = 2", gain)
	}
}
