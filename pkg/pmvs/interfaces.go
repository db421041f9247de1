package pmvs

// PhotoSet is the collaborator that knows about cameras and pixels: image
// projection, sampling, geometry and the visibility/edge/mask tests that
// the optimizer and filter consult but never implement themselves.
//
// Boolean results are expressed so that true always means "passes the
// test" (GetMask, GetEdge, CheckAngles, InsideBounds) — the reference C++
// this is modeled on returns the opposite sense (0 = pass) for some of
// these; callers here never need to remember which.
type PhotoSet interface {
	// Project maps a world point into image space at the given mipmap
	// level, returning pixel (X, Y) in the Z=0 plane of the result.
	Project(image int, x Vec4, level int) Vec3
	// Color samples the (possibly fractional) pixel, bilinearly
	// interpolated, at the given level.
	Color(image int, x, y float64, level int) Vec3
	Width(image int, level int) int
	Height(image int, level int) int
	// OAxis returns the image's unit optical axis (a direction, W=0).
	OAxis(image int) Vec4
	// Center returns the camera center (a point, W=1).
	Center(image int) Vec4
	// ProjectionRow returns row 0 or row 1 of the image's 3x4 projection
	// matrix, used to build the per-image (x,y,z) camera frame and its
	// pixel-per-world-unit scale.
	ProjectionRow(image int, row int) Vec4
	// Distance is a scene-specific notion of separation between two
	// images (e.g. baseline or sequence distance), used to rank
	// candidates in collectImages.
	Distance(i, j int) float64
	// VisData2 lists the images considered potentially visible together
	// with image i, in no particular order.
	VisData2(image int) []int
	GetMask(x Vec4, level int) bool
	GetEdge(x Vec4, image int, level int) bool
	// CheckAngles verifies that the images covering x span a usable
	// baseline: not so narrow the depth is unconstrained, not so wide the
	// appearance has diverged beyond angleThreshold1, and that at least
	// minImageNum of them qualify.
	CheckAngles(x Vec4, images []int, maxAngleThreshold, angleThreshold1 float64, minImageNum int) bool
	// InsideBounds reports whether x falls within the reconstruction
	// volume of interest.
	InsideBounds(x Vec4) bool
}

// PatchStore is the collaborator that indexes the growing patch cloud:
// per-image visibility grids, spatial neighbor queries and the
// patch-count-aware scoring that feeds postProcess.
type PatchStore interface {
	// SetScales assigns DScale/AScale for a freshly expanded patch, using
	// its reference image (Images[0]) to judge an appropriate step size.
	SetScales(p *Patch)
	// SetGrids (re)inserts p into the per-image grids keyed by Images.
	SetGrids(p *Patch)
	// SetVImagesVGrids (re)inserts p into the per-image grids keyed by
	// VImages. Filter's gain computation does not read these grids: it
	// queries GridNeighbors for each of p.VImages instead.
	SetVImagesVGrids(p *Patch)
	// FindNeighbors returns nearby patches within roughly scale*DScale of
	// p in true 3D distance and sharing at least minShared supporting
	// images. marginCells is accepted for reference-implementation
	// parity with the grid-indexed passes but a kdtree-backed store need
	// not consult it.
	FindNeighbors(p *Patch, scale float64, marginCells, minShared int) []*Patch
	// Score2 computes a store-aware quality score for p, rewarding both
	// photometric fit and breadth of target-image support.
	Score2(p *Patch, nccThreshold float64) float64
	// GridNeighbors returns the patches sharing p's grid cell in image.
	GridNeighbors(image int, p *Patch) []*Patch
	// SharedCellPatches returns every patch sharing any grid cell with p
	// in any of p's images, used to build filterSmallGroups' connectivity
	// graph.
	SharedCellPatches(p *Patch) []*Patch

	// Add registers p as a live stored patch. PostProcess calls this once,
	// on the success path, which is the only way a patch enters the store
	// per spec.md's lifecycle (Candidate -> Refined -> Accepted).
	Add(p *Patch)
	// Remove drops p from the store and every grid/depth map that
	// indexes it. Filter passes call this only after a pass has finished
	// deciding every patch's fate from a fixed snapshot.
	Remove(p *Patch)
	// AllPatches returns a snapshot of every currently live patch. Filter
	// passes must take this snapshot once per pass and decide removals
	// from it, so the outcome never depends on goroutine scheduling order.
	AllPatches() []*Patch

	// RasterizeDepthMaps rebuilds, for every image, the nearest-patch-per-
	// cell depth map that filterExact consults. It must be called after
	// any pass that adds or removes patches and before DepthMapOccluder.
	RasterizeDepthMaps()
	// DepthMapOccluder returns the patch that currently rasterizes to p's
	// cell in image, if one exists and differs from p.
	DepthMapOccluder(image int, p *Patch) (occluder *Patch, ok bool)
	// DepthAlong returns p's signed depth along image's optical axis,
	// the coordinate filterExact compares against a rasterized depth map.
	DepthAlong(image int, p *Patch) float64
}
