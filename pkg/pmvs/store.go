package pmvs

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"
)

// cellKey addresses one bin of a per-image grid, sized in multiples of the
// texture window so that a patch's grid cell roughly matches the footprint
// it actually samples.
type cellKey struct {
	x, y int
}

type cellRef struct {
	image int
	key   cellKey
}

// patchPoint adapts *Patch to gonum's kdtree.Comparable so FindNeighbors can
// query the live patch cloud by true 3D proximity rather than per-image
// grid cells, mirroring the reference interpolator's Point3D/Points3D.
type patchPoint struct{ p *Patch }

func (a patchPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	b := c.(patchPoint)
	switch d {
	case 0:
		return a.p.Coord.X - b.p.Coord.X
	case 1:
		return a.p.Coord.Y - b.p.Coord.Y
	case 2:
		return a.p.Coord.Z - b.p.Coord.Z
	default:
		panic("pmvs: illegal kdtree dimension")
	}
}

func (a patchPoint) Dims() int { return 3 }

func (a patchPoint) Distance(c kdtree.Comparable) float64 {
	b := c.(patchPoint)
	return a.p.Coord.Minus(b.p.Coord).Norm3()
}

// patchPoints is a kdtree.Interface over a slice of patchPoint.
type patchPoints []patchPoint

func (p patchPoints) Index(i int) kdtree.Comparable        { return p[i] }
func (p patchPoints) Len() int                             { return len(p) }
func (p patchPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p patchPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(patchPlane{patchPoints: p, Dim: d}, kdtree.MedianOfRandoms(patchPlane{patchPoints: p, Dim: d}, 100))
}

// patchPlane implements sort.Interface and kdtree.SortSlicer for patchPoints.
type patchPlane struct {
	patchPoints
	kdtree.Dim
}

func (p patchPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.patchPoints[i].p.Coord.X < p.patchPoints[j].p.Coord.X
	case 1:
		return p.patchPoints[i].p.Coord.Y < p.patchPoints[j].p.Coord.Y
	case 2:
		return p.patchPoints[i].p.Coord.Z < p.patchPoints[j].p.Coord.Z
	default:
		panic("pmvs: illegal kdtree dimension")
	}
}

func (p patchPlane) Slice(start, end int) kdtree.SortSlicer {
	return patchPlane{patchPoints: p.patchPoints[start:end], Dim: p.Dim}
}

func (p patchPlane) Swap(i, j int) {
	p.patchPoints[i], p.patchPoints[j] = p.patchPoints[j], p.patchPoints[i]
}

// Store is a reference PatchStore implementation: per-image grids indexed
// by projected cell for visibility/depth bookkeeping, and a kdtree rebuilt
// per query over the live patch cloud's 3D positions for FindNeighbors. It
// exercises every method Optimizer and Filter need, and is what
// cmd/pmvscore and the package tests run against.
type Store struct {
	photos PhotoSet
	cfg    Config
	cell   float64

	mu      sync.Mutex
	patches map[*Patch]struct{}

	grid      []map[cellKey][]*Patch
	gridIndex map[*Patch][]cellRef

	vgrid      []map[cellKey][]*Patch
	vgridIndex map[*Patch][]cellRef

	depth []map[cellKey]*Patch
}

// NewStore builds an empty Store sized for cfg.Num images.
func NewStore(photos PhotoSet, cfg Config) *Store {
	s := &Store{
		photos:     photos,
		cfg:        cfg,
		cell:       float64(max(cfg.WSize, 1)),
		patches:    make(map[*Patch]struct{}),
		grid:       make([]map[cellKey][]*Patch, cfg.Num),
		gridIndex:  make(map[*Patch][]cellRef),
		vgrid:      make([]map[cellKey][]*Patch, cfg.Num),
		vgridIndex: make(map[*Patch][]cellRef),
		depth:      make([]map[cellKey]*Patch, cfg.Num),
	}
	for i := 0; i < cfg.Num; i++ {
		s.grid[i] = make(map[cellKey][]*Patch)
		s.vgrid[i] = make(map[cellKey][]*Patch)
		s.depth[i] = make(map[cellKey]*Patch)
	}
	return s
}

func (s *Store) cellOf(image int, coord Vec4) cellKey {
	pt := s.photos.Project(image, coord, s.cfg.Level)
	return cellKey{int(math.Floor(pt.X / s.cell)), int(math.Floor(pt.Y / s.cell))}
}

// SetScales assigns a patch's depth step from how large one pixel looks at
// the reference image's distance, and its angular step to the fixed
// refinement constant from spec.md's data model (pi/48).
func (s *Store) SetScales(p *Patch) {
	if len(p.Images) == 0 {
		return
	}
	ref := p.Images[0]
	dist := p.Coord.Minus(s.photos.Center(ref)).Norm3()
	w := float64(s.photos.Width(ref, s.cfg.Level))
	if w < 1 {
		w = 1
	}
	p.DScale = dist / w
	if p.DScale <= 0 {
		p.DScale = 1e-6
	}
	p.AScale = math.Pi / 48
}

func clearRefs(grid []map[cellKey][]*Patch, index map[*Patch][]cellRef, p *Patch) {
	for _, r := range index[p] {
		bucket := grid[r.image][r.key]
		for i, q := range bucket {
			if q == p {
				grid[r.image][r.key] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
	delete(index, p)
}

// SetGrids re-inserts p into the per-image grids keyed by p.Images,
// clearing any stale entries from a previous call first so repeated calls
// during postProcess never leave p double-registered under an old image
// set.
func (s *Store) SetGrids(p *Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clearRefs(s.grid, s.gridIndex, p)
	refs := make([]cellRef, 0, len(p.Images))
	for _, im := range p.Images {
		key := s.cellOf(im, p.Coord)
		s.grid[im][key] = append(s.grid[im][key], p)
		refs = append(refs, cellRef{im, key})
	}
	s.gridIndex[p] = refs
}

// SetVImagesVGrids mirrors SetGrids for the visibility-only image list.
func (s *Store) SetVImagesVGrids(p *Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clearRefs(s.vgrid, s.vgridIndex, p)
	refs := make([]cellRef, 0, len(p.VImages))
	for _, im := range p.VImages {
		key := s.cellOf(im, p.Coord)
		s.vgrid[im][key] = append(s.vgrid[im][key], p)
		refs = append(refs, cellRef{im, key})
	}
	s.vgridIndex[p] = refs
}

// neighborCandidatePool bounds how many of the spatially nearest patches
// FindNeighbors pulls from the kdtree before applying the actual distance
// and shared-image filters; comfortably above what any real neighborhood
// needs, mirroring the reference interpolator's 64-neighbor search set.
const neighborCandidatePool = 64

// FindNeighbors returns live patches within scale*p.DScale of p in true 3D
// distance, drawn from the kdtree's nearest-neighborCandidatePool set around
// p and requiring at least minShared images in common with p. marginCells is
// accepted for interface stability with the grid-indexed passes but doesn't
// bound a kdtree query.
func (s *Store) FindNeighbors(p *Patch, scale float64, marginCells, minShared int) []*Patch {
	s.mu.Lock()
	pts := make(patchPoints, 0, len(s.patches))
	for q := range s.patches {
		if q != p {
			pts = append(pts, patchPoint{q})
		}
	}
	s.mu.Unlock()
	if len(pts) == 0 {
		return nil
	}

	tree := kdtree.New(pts, true)
	keeper := kdtree.NewNKeeper(neighborCandidatePool)
	tree.NearestSet(keeper, patchPoint{p})

	refSet := make(map[int]bool, len(p.Images))
	for _, im := range p.Images {
		refSet[im] = true
	}
	maxDist := scale * p.DScale

	var out []*Patch
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		q := item.Comparable.(patchPoint).p
		if p.Coord.Minus(q.Coord).Norm3() > maxDist {
			continue
		}
		shared := 0
		for _, qi := range q.Images {
			if refSet[qi] {
				shared++
			}
		}
		if shared < minShared {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Score2 combines the patch's photometric fit (NCC, already set by the
// refinement pass) with how much of the target image set supports it,
// weighted by nccThreshold. stat.Mean stands in for the reference
// implementation's more elaborate robust aggregate.
func (s *Store) Score2(p *Patch, nccThreshold float64) float64 {
	if len(p.Images) == 0 {
		return 2.0
	}
	fits := make([]float64, len(p.Images))
	fit := math.Max(0, 1-p.NCC/2)
	for i := range fits {
		fits[i] = fit
	}
	meanFit := stat.Mean(fits, nil)

	tnum := s.cfg.TNum
	if tnum < 1 {
		tnum = 1
	}
	support := float64(p.TImages) / float64(tnum)
	return meanFit*(1-nccThreshold) + support*nccThreshold
}

// GridNeighbors returns the other patches sharing p's grid cell in image.
func (s *Store) GridNeighbors(image int, p *Patch) []*Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.cellOf(image, p.Coord)
	bucket := s.grid[image][key]
	out := make([]*Patch, 0, len(bucket))
	for _, q := range bucket {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// SharedCellPatches returns the union, over every image in p.Images, of
// the other patches sharing that image's grid cell with p.
func (s *Store) SharedCellPatches(p *Patch) []*Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[*Patch]bool{p: true}
	var out []*Patch
	for _, im := range p.Images {
		key := s.cellOf(im, p.Coord)
		for _, q := range s.grid[im][key] {
			if seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// Add registers p as a live stored patch.
func (s *Store) Add(p *Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches[p] = struct{}{}
}

// Remove drops p from the store and every grid/depth map that indexes it.
func (s *Store) Remove(p *Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patches, p)
	clearRefs(s.grid, s.gridIndex, p)
	clearRefs(s.vgrid, s.vgridIndex, p)
	for i, m := range s.depth {
		for key, q := range m {
			if q == p {
				delete(s.depth[i], key)
			}
		}
	}
	p.Flag = FlagFiltered
}

// AllPatches returns a snapshot of every live patch.
func (s *Store) AllPatches() []*Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Patch, 0, len(s.patches))
	for p := range s.patches {
		out = append(out, p)
	}
	return out
}

// DepthAlong returns p's signed depth along image's optical axis.
func (s *Store) DepthAlong(image int, p *Patch) float64 {
	return p.Coord.Minus(s.photos.Center(image)).Dot3(s.photos.OAxis(image))
}

// RasterizeDepthMaps rebuilds every image's depth map by projecting each
// live patch into every image it claims visibility in and keeping, per
// cell, whichever patch sits closest to that image's camera.
func (s *Store) RasterizeDepthMaps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.depth {
		s.depth[i] = make(map[cellKey]*Patch)
	}
	for p := range s.patches {
		for _, im := range p.Images {
			key := s.cellOf(im, p.Coord)
			cur, ok := s.depth[im][key]
			if !ok || s.depthAlongLocked(im, p) < s.depthAlongLocked(im, cur) {
				s.depth[im][key] = p
			}
		}
	}
}

func (s *Store) depthAlongLocked(image int, p *Patch) float64 {
	return p.Coord.Minus(s.photos.Center(image)).Dot3(s.photos.OAxis(image))
}

// DepthMapOccluder returns the patch currently rasterized into p's cell in
// image, if one exists and isn't p itself.
func (s *Store) DepthMapOccluder(image int, p *Patch) (*Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.cellOf(image, p.Coord)
	q, ok := s.depth[image][key]
	if !ok || q == p {
		return nil, false
	}
	return q, true
}
