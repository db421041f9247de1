package pmvs

import (
	"math"
	"sort"

	"pmvscore/internal/numeric"
)

// Checker lets the filter's neighbor-consistency check participate in
// postProcess without the optimizer depending on the filter package
// directly; NewOptimizer is wired to a *Filter by the caller.
type Checker interface {
	Check(p *Patch) bool
}

// workerScratch holds the per-goroutine state the optimizer reuses across
// patches so a parallel pass never allocates in its hot path beyond the
// occasional texture-buffer growth for unusually large image sets.
type workerScratch struct {
	center Vec4 // coord at the start of the current refinement
	ray    Vec4 // unit direction from the reference camera toward center
	indexes []int
	dscale  float64
	ascale  float64
	weights []float64  // per-candidate photometric weight, weights[0] pinned to 1
	texs    [][]float64 // reusable texture buffers, indexed by candidate position
}

// Optimizer runs the per-patch photometric pipeline: collecting candidate
// images, constraining and ordering them, refining the patch's position and
// normal against the photometric residual, then deciding whether the
// result still clears the support thresholds.
type Optimizer struct {
	photos  PhotoSet
	store   PatchStore
	checker Checker
	cfg     Config
	axes    []imageAxes
	scratch []workerScratch
}

// NewOptimizer builds an Optimizer and preallocates its per-worker scratch
// state. checker may be nil; it is only consulted when cfg.Depth >= 2.
func NewOptimizer(photos PhotoSet, store PatchStore, checker Checker, cfg Config) *Optimizer {
	o := &Optimizer{
		photos:  photos,
		store:   store,
		checker: checker,
		cfg:     cfg,
		axes:    buildImageAxes(photos, cfg.Num),
	}
	o.scratch = make([]workerScratch, max(cfg.CPU, 1))
	for w := range o.scratch {
		texs := make([][]float64, cfg.Num)
		windowFloats := 3 * cfg.WSize * cfg.WSize
		for j := 0; j < cfg.Tau && j < cfg.Num; j++ {
			texs[j] = make([]float64, 0, windowFloats)
		}
		o.scratch[w].texs = texs
		o.scratch[w].weights = make([]float64, 0, cfg.Tau)
	}
	return o
}

// getUnit estimates the world-space size, near coord, of one pixel of image
// `index` at the optimizer's working mipmap level.
func (o *Optimizer) getUnit(index int, coord Vec4) float64 {
	dist := coord.Minus(o.photos.Center(index)).Norm3()
	ipscale := o.axes[index].IPScale
	if ipscale == 0 {
		return 1.0
	}
	return 2.0 * dist * math.Pow(2, float64(o.cfg.Level)) / ipscale
}

// getPAxes builds the pair of unit-pixel-step axes (pxaxis, pyaxis) that
// span a patch's local tangent plane as seen from `index`, scaled so that
// moving by pxaxis or pyaxis shifts the projection by exactly one pixel.
func (o *Optimizer) getPAxes(index int, coord, normal Vec4) (Vec4, Vec4) {
	pscale := o.getUnit(index, coord)
	n3 := normal.Vec3()
	y3 := n3.Cross(o.axes[index].XAxis).Unit()
	x3 := y3.Cross(n3)

	pxaxis := NewDir(x3.X, x3.Y, x3.Z).Scale3(pscale)
	pyaxis := NewDir(y3.X, y3.Y, y3.Z).Scale3(pscale)

	base := o.photos.Project(index, coord, o.cfg.Level)
	xdis := o.photos.Project(index, coord.Plus(pxaxis), o.cfg.Level).Sub(base).Norm()
	ydis := o.photos.Project(index, coord.Plus(pyaxis), o.cfg.Level).Sub(base).Norm()
	if xdis != 0 {
		pxaxis = pxaxis.Scale3(1 / xdis)
	}
	if ydis != 0 {
		pyaxis = pyaxis.Scale3(1 / ydis)
	}
	return pxaxis, pyaxis
}

// CollectImages ranks every image plausibly visible alongside ref by
// optical-axis agreement and scene distance, returning the closest Tau of
// them. This seeds a brand-new patch's image list before preProcess.
func (o *Optimizer) CollectImages(ref int) []int {
	type candidate struct {
		dist float64
		idx  int
	}
	ray0 := o.photos.OAxis(ref)
	cosThreshold := math.Cos(o.cfg.AngleThreshold0)

	var candidates []candidate
	for _, c := range o.photos.VisData2(ref) {
		if o.cfg.SequenceThreshold != -1 {
			diff := ref - c
			if diff < 0 {
				diff = -diff
			}
			if o.cfg.SequenceThreshold < diff {
				continue
			}
		}
		ray1 := o.photos.OAxis(c)
		if ray0.Dot3(ray1) < cosThreshold {
			continue
		}
		candidates = append(candidates, candidate{o.photos.Distance(ref, c), c})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	n := min(o.cfg.Tau, len(candidates))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].idx
	}
	return out
}

// addImages appends every image visible alongside Images[0] that isn't
// already present, passes the patch's projection inside the image border,
// clears the edge test and still views the patch's surface from within
// AngleThreshold0 of its normal.
func (o *Optimizer) addImages(p *Patch) {
	used := make([]bool, o.cfg.Num)
	for _, im := range p.Images {
		used[im] = true
	}
	cosThreshold := math.Cos(o.cfg.AngleThreshold0)

	for _, cand := range o.photos.VisData2(p.Images[0]) {
		if used[cand] {
			continue
		}
		ic := o.photos.Project(cand, p.Coord, o.cfg.Level)
		w := o.photos.Width(cand, o.cfg.Level)
		h := o.photos.Height(cand, o.cfg.Level)
		if ic.X < 0 || float64(w-1) <= ic.X || ic.Y < 0 || float64(h-1) <= ic.Y {
			continue
		}
		if !o.photos.GetEdge(p.Coord, cand, o.cfg.Level) {
			continue
		}
		ray := o.photos.Center(cand).Minus(p.Coord).Unit3()
		if cosThreshold <= ray.Dot3(p.Normal) {
			p.Images = append(p.Images, cand)
			used[cand] = true
		}
	}
}

// removeImagesEdge drops every image whose edge test fails at the patch's
// current position.
func (o *Optimizer) removeImagesEdge(p *Patch) {
	kept := p.Images[:0]
	for _, im := range p.Images {
		if o.photos.GetEdge(p.Coord, im, o.cfg.Level) {
			kept = append(kept, im)
		}
	}
	p.Images = kept
}

// constraintImages keeps Images[0] unconditionally and drops every other
// image whose single-pass INCC against the reference exceeds 1-nccThreshold.
func (o *Optimizer) constraintImages(p *Patch, nccThreshold float64, id int) {
	if len(p.Images) == 0 {
		return
	}
	inccs := o.setINCCs(p.Coord, p.Normal, p.Images, id, false)
	kept := make([]int, 0, len(p.Images))
	kept = append(kept, p.Images[0])
	for i := 1; i < len(p.Images); i++ {
		if inccs[i] < 1.0-nccThreshold {
			kept = append(kept, p.Images[i])
		}
	}
	p.Images = kept
}

// filterImagesByAngle drops images viewing the patch from beyond
// AngleThreshold1 of its normal. If the very first (reference) image
// fails, the whole image list is cleared instead of just dropping it,
// since no later image can stand in as the reference mid-pass.
func (o *Optimizer) filterImagesByAngle(p *Patch) {
	cosThreshold := math.Cos(o.cfg.AngleThreshold1)
	kept := make([]int, 0, len(p.Images))
	for i, im := range p.Images {
		ray := o.photos.Center(im).Minus(p.Coord).Unit3()
		if ray.Dot3(p.Normal) < cosThreshold {
			if i == 0 {
				p.Images = nil
				return
			}
			continue
		}
		kept = append(kept, im)
	}
	p.Images = kept
}

// computeUnitsSimple returns, for each of p.Images, getUnit scaled by how
// directly that image views the patch's normal; images viewing the patch
// edge-on get an effectively infinite unit. Used by setWeightsT.
func (o *Optimizer) computeUnitsSimple(p *Patch) []float64 {
	units := make([]float64, len(p.Images))
	for i, im := range p.Images {
		u := o.getUnit(im, p.Coord)
		ray := o.photos.Center(im).Minus(p.Coord).Unit3()
		denom := ray.Dot3(p.Normal)
		if denom > 0 {
			u /= denom
		} else {
			u = math.MaxFloat64 / 2
		}
		units[i] = u
	}
	return units
}

// computeUnitsSorted is the sortImages-facing variant: images viewing the
// patch from behind its normal are dropped outright rather than penalized.
func (o *Optimizer) computeUnitsSorted(p *Patch) (indexes []int, units []float64, rays []Vec4) {
	for _, im := range p.Images {
		ray := o.photos.Center(im).Minus(p.Coord).Unit3()
		dot := ray.Dot3(p.Normal)
		if dot <= 0 {
			continue
		}
		indexes = append(indexes, im)
		units = append(units, o.getUnit(im, p.Coord)/dot)
		rays = append(rays, ray)
	}
	return indexes, units, rays
}

// sortImages reorders p.Images by a greedy angular-diversity heuristic:
// repeatedly pick the remaining image with the smallest unit (pinning
// index 0's unit to 0 so the existing reference is always chosen first),
// then inflate the remaining units for images whose viewing ray is close
// to the one just picked, so near-duplicate viewpoints sink to the back.
func (o *Optimizer) sortImages(p *Patch) {
	const thresholdDeg = 10.0
	threshold := 1 - math.Cos(thresholdDeg*math.Pi/180.0)

	indexes, units, rays := o.computeUnitsSorted(p)
	p.Images = nil
	if len(indexes) < 2 {
		return
	}
	units[0] = 0

	for len(indexes) > 0 {
		minIdx := 0
		for i := 1; i < len(units); i++ {
			if units[i] < units[minIdx] {
				minIdx = i
			}
		}
		p.Images = append(p.Images, indexes[minIdx])

		var nextIdx []int
		var nextUnits []float64
		var nextRays []Vec4
		for j := range rays {
			if j == minIdx {
				continue
			}
			ftmp := numeric.Clamp(1-rays[minIdx].Dot3(rays[j]), threshold/2, threshold)
			nextIdx = append(nextIdx, indexes[j])
			nextUnits = append(nextUnits, units[j]*(threshold/ftmp))
			nextRays = append(nextRays, rays[j])
		}
		indexes, units, rays = nextIdx, nextUnits, nextRays
	}
}

// setRefImage restricts to target-range images, picks whichever minimizes
// total pairwise INCC against the rest, and swaps it into Images[0]. If no
// target-range image remains, the patch is rejected.
func (o *Optimizer) setRefImage(p *Patch, id int) bool {
	var targetIdx []int
	for _, im := range p.Images {
		if im < o.cfg.TNum {
			targetIdx = append(targetIdx, im)
		}
	}
	if len(targetIdx) == 0 {
		p.Images = nil
		return false
	}

	inccs := o.setINCCsMatrix(p.Coord, p.Normal, targetIdx, id, true)
	refLocal, refScore := 0, math.MaxFloat64
	for i, row := range inccs {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum < refScore {
			refScore, refLocal = sum, i
		}
	}

	refImage := targetIdx[refLocal]
	for i, im := range p.Images {
		if im == refImage {
			p.Images[0], p.Images[i] = p.Images[i], p.Images[0]
			break
		}
	}
	return true
}

// preProcess builds out a freshly seeded patch's candidate image list:
// addImages, a lenient constraintImages pass, sortImages, then the store's
// scale assignment and the photo set's angle-spread sanity check.
func (o *Optimizer) preProcess(p *Patch, id int) bool {
	if len(p.Images) == 0 {
		return false
	}
	o.addImages(p)
	o.constraintImages(p, o.cfg.NCCThresholdBefore, id)
	o.sortImages(p)
	if len(p.Images) > 0 {
		o.store.SetScales(p)
	}
	if len(p.Images) < o.cfg.MinImageNumThreshold {
		return false
	}
	if !o.photos.CheckAngles(p.Coord, p.Images, o.cfg.MaxAngleThreshold, o.cfg.AngleThreshold1, o.cfg.MinImageNumThreshold) {
		p.Images = nil
		return false
	}
	return true
}

// postProcess re-evaluates a refined patch's support: it re-expands and
// re-constrains the image list at the stricter nccThreshold, re-picks the
// reference image, records the store's score, and (at Depth>=2) runs the
// filter's neighbor-consistency check before accepting the patch.
func (o *Optimizer) postProcess(p *Patch, id int) bool {
	if len(p.Images) < o.cfg.MinImageNumThreshold {
		return false
	}
	if !o.photos.GetMask(p.Coord, o.cfg.Level) || !o.photos.InsideBounds(p.Coord) {
		return false
	}

	o.addImages(p)
	o.constraintImages(p, o.cfg.NCCThreshold, id)
	o.filterImagesByAngle(p)
	if len(p.Images) < o.cfg.MinImageNumThreshold {
		return false
	}
	o.store.SetGrids(p)

	if !o.setRefImage(p, id) {
		return false
	}
	o.constraintImages(p, o.cfg.NCCThreshold, id)
	if len(p.Images) < o.cfg.MinImageNumThreshold {
		return false
	}
	o.store.SetGrids(p)

	p.TImages = 0
	for _, im := range p.Images {
		if im < o.cfg.TNum {
			p.TImages++
		}
	}
	p.Tmp = o.store.Score2(p, o.cfg.NCCThreshold)

	if o.cfg.Depth > 0 {
		o.store.SetVImagesVGrids(p)
		if o.cfg.Depth >= 2 && o.checker != nil {
			if !o.checker.Check(p) {
				return false
			}
		}
	}
	p.Flag = FlagAccepted
	o.store.Add(p)
	return true
}
