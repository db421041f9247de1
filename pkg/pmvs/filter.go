package pmvs

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Filter constants governing neighbor search radius and the minimum
// neighbor count a quadric fit needs to be meaningful. These mirror the
// fixed constants the reference PMVS filter uses rather than exposing them
// as tunables — spec.md names no config knob for them.
const (
	neighborScale       = 4.0 // world-space search radius, in multiples of DScale
	neighborMarginCells = 2   // grid cells of slack searched around a patch
	neighborMinShared   = 1   // minimum images shared with a neighbor candidate
	quadMinNeighbors    = 3   // below this, filterQuad can't fit and accepts
	quadResidualFactor  = 2.0 // residual tolerance, in multiples of DScale
)

// Filter implements the multi-pass removal pipeline of spec.md 4.2: it
// never mutates the store mid-pass, deciding every patch's fate from a
// snapshot taken at the start of the pass and applying removals only once
// that snapshot has been fully evaluated, so the result is independent of
// goroutine scheduling order.
type Filter struct {
	photos PhotoSet
	store  PatchStore
	cfg    Config
}

// NewFilter builds a Filter. It implements the Checker interface Optimizer
// consults at cfg.Depth >= 2, so the two are wired together by the caller:
// f := NewFilter(photos, store, cfg); NewOptimizer(photos, store, f, cfg).
func NewFilter(photos PhotoSet, store PatchStore, cfg Config) *Filter {
	return &Filter{photos: photos, store: store, cfg: cfg}
}

// Run executes the full filter pipeline in spec.md's order: outside
// (gain-based), exact (depth-map occlusion), neighbor (quadric fit,
// repeated neighborPasses times), then small isolated groups.
func (f *Filter) Run(neighborPasses int) {
	f.filterOutside()
	f.filterExact()
	f.filterNeighbor(neighborPasses)
	f.filterSmallGroups()
}

// computeGain measures how much a patch's presence contributes that its
// grid-cell competitors in its visibility-only images don't already cover.
// Starting from len(Images)-MinImageNumThreshold, it loses a point for every
// vimage cell where every rival's NCC is no higher than its own, and gains
// one for every cell where some rival's NCC is higher; a cell with no rival
// leaves the gain unchanged.
func (f *Filter) computeGain(p *Patch) float64 {
	gain := float64(len(p.Images) - f.cfg.MinImageNumThreshold)
	for _, im := range p.VImages {
		rivals := f.store.GridNeighbors(im, p)
		if len(rivals) == 0 {
			continue
		}
		outcompeted := true
		for _, q := range rivals {
			if q.NCC > p.NCC {
				outcompeted = false
				break
			}
		}
		if outcompeted {
			gain--
		} else {
			gain++
		}
	}
	return gain
}

// filterOutside removes every patch whose gain (see computeGain) is
// negative: the cells where competitors dominate it outweigh the cells it
// wins plus its image-count baseline.
func (f *Filter) filterOutside() {
	snapshot := f.store.AllPatches()
	gains := make([]float64, len(snapshot))
	runParallel(f.cfg.CPU, len(snapshot), func(_, idx int) {
		gains[idx] = f.computeGain(snapshot[idx])
	})
	for i, p := range snapshot {
		p.Tmp = gains[i]
		if gains[i] < 0 {
			f.store.Remove(p)
		}
	}
}

// filterExact rebuilds every image's depth map, then removes patches that
// are occluded in more than half of their claimed images by a patch that
// both sits meaningfully closer to the camera (beyond the occluder's own
// depth step, spec.md 9's resolution of the tolerance open question) and
// is itself photometrically valid.
func (f *Filter) filterExact() {
	f.store.RasterizeDepthMaps()
	snapshot := f.store.AllPatches()
	toRemove := make([]bool, len(snapshot))

	runParallel(f.cfg.CPU, len(snapshot), func(_, idx int) {
		p := snapshot[idx]
		if len(p.Images) == 0 {
			return
		}
		occludedCount := 0
		for _, im := range p.Images {
			occ, ok := f.store.DepthMapOccluder(im, p)
			if !ok {
				continue
			}
			pd := f.store.DepthAlong(im, p)
			od := f.store.DepthAlong(im, occ)
			if pd-od > occ.DScale && occ.NCC < f.cfg.NCCThreshold {
				occludedCount++
			}
		}
		toRemove[idx] = occludedCount*2 > len(p.Images)
	})

	for i, remove := range toRemove {
		if remove {
			f.store.Remove(snapshot[i])
		}
	}
}

// filterNeighbor repeats the quadric-consistency check up to `times`
// times, stopping early once a full pass removes nothing.
func (f *Filter) filterNeighbor(times int) {
	for t := 0; t < times; t++ {
		snapshot := f.store.AllPatches()
		toRemove := make([]bool, len(snapshot))
		runParallel(f.cfg.CPU, len(snapshot), func(_, idx int) {
			p := snapshot[idx]
			neighbors := f.store.FindNeighbors(p, neighborScale, neighborMarginCells, neighborMinShared)
			if len(neighbors) >= quadMinNeighbors && !f.filterQuad(p, neighbors) {
				toRemove[idx] = true
			}
		})

		removed := false
		for i, remove := range toRemove {
			if remove {
				f.store.Remove(snapshot[i])
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

// filterSmallGroups removes every connected component of the "shares a
// grid cell in some image" patch graph smaller than cfg.MinPatchesGrid.
func (f *Filter) filterSmallGroups() {
	patches := f.store.AllPatches()
	parent := make(map[*Patch]*Patch, len(patches))
	for _, p := range patches {
		parent[p] = p
	}

	var find func(*Patch) *Patch
	find = func(p *Patch) *Patch {
		for parent[p] != p {
			parent[p] = parent[parent[p]]
			p = parent[p]
		}
		return p
	}
	union := func(a, b *Patch) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, p := range patches {
		for _, q := range f.store.SharedCellPatches(p) {
			if _, ok := parent[q]; ok {
				union(p, q)
			}
		}
	}

	groups := make(map[*Patch][]*Patch, len(patches))
	for _, p := range patches {
		root := find(p)
		groups[root] = append(groups[root], p)
	}
	for _, members := range groups {
		if len(members) < f.cfg.MinPatchesGrid {
			for _, p := range members {
				f.store.Remove(p)
			}
		}
	}
}

// Check is the neighbor-consistency check postProcess runs at cfg.Depth >=
// 2: reject immediately on negative gain, otherwise defer to the quadric
// fit once there are enough neighbors (more than 6, per spec.md 4.2) to
// make it meaningful.
func (f *Filter) Check(p *Patch) bool {
	gain := f.computeGain(p)
	p.Tmp = gain
	if gain < 0 {
		return false
	}
	neighbors := f.store.FindNeighbors(p, neighborScale, neighborMarginCells, neighborMinShared)
	if len(neighbors) > 6 && !f.filterQuad(p, neighbors) {
		return false
	}
	return true
}

// localPlaneAxes builds an orthonormal (ex, ey) tangent basis perpendicular
// to p.Normal, used to express neighbor offsets as the (x, y, z) of a local
// plane-plus-height frame for the quadric fit.
func localPlaneAxes(normal Vec4) (ex, ey Vec3) {
	ez := normal.Vec3()
	ref := Vec3{X: 1}
	if math.Abs(ez.Dot(ref)) > 0.9 {
		ref = Vec3{Y: 1}
	}
	ex = ez.Cross(ref).Unit()
	ey = ez.Cross(ex)
	return ex, ey
}

// filterQuad fits a plane z = a + bx + cy in p's local tangent frame to
// neighbors' positions (no second-order x², xy or y² terms are fitted) via
// least squares (QR, mirroring the
// teacher's kriging solveSystem), then accepts p only if its own height
// above the fit (it sits at the local origin) is small relative to its
// depth step, with the allowed residual tightened as p's NCC worsens.
func (f *Filter) filterQuad(p *Patch, neighbors []*Patch) bool {
	if len(neighbors) < quadMinNeighbors {
		return true
	}
	ex, ey := localPlaneAxes(p.Normal)

	n := len(neighbors)
	a := make([]float64, 0, n*3)
	b := make([]float64, 0, n)
	for _, q := range neighbors {
		d := q.Coord.Minus(p.Coord).Vec3()
		x := d.Dot(ex)
		y := d.Dot(ey)
		z := d.Dot(p.Normal.Vec3())
		a = append(a, 1, x, y)
		b = append(b, z)
	}

	A := mat.NewDense(n, 3, a)
	rhs := mat.NewVecDense(n, b)
	var qr mat.QR
	qr.Factorize(A)

	var x mat.Dense
	if err := qr.SolveTo(&x, false, rhs); err != nil {
		return true
	}
	predicted := x.At(0, 0) // p itself sits at the local origin (x=y=0)

	threshold := quadResidualFactor * p.DScale
	if threshold <= 0 {
		return true
	}
	if math.Abs(predicted) > threshold {
		return false
	}

	nccLimit := f.cfg.NCCThreshold * (1 - math.Abs(predicted)/threshold)
	return p.NCC <= nccLimit
}
