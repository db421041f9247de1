package pmvs

import (
	"math"
	"testing"
)

func newTestOptimizer() (*Optimizer, *Store, *Filter) {
	cams := threeCameraRig()
	photos := newFakePhotoSet(cams)
	cfg := testConfig(len(cams))
	store := NewStore(photos, cfg)
	filter := NewFilter(photos, store, cfg)
	return NewOptimizer(photos, store, filter, cfg), store, filter
}

func TestCollectImagesExcludesReferenceImage(t *testing.T) {
	o, _, _ := newTestOptimizer()
	images := o.CollectImages(1)
	if len(images) == 0 {
		t.Fatal("CollectImages(1) returned no candidates")
	}
	for _, im := range images {
		if im == 1 {
			t.Error("CollectImages should never include the reference image itself")
		}
	}
}

// TestOptimizeRejectsSingleImagePatch is scenario B: a seed patch visible in
// only one image can never clear MinImageNumThreshold and must be rejected
// by preProcess before any refinement runs. preProcess starts with
// addImages, so AngleThreshold0 is narrowed below the ~6.8 degree angle at
// which cameras 0 and 2 view the patch; image 1 is then the only one that
// sees it.
func TestOptimizeRejectsSingleImagePatch(t *testing.T) {
	o, _, _ := newTestOptimizer()
	o.cfg.AngleThreshold0 = 0.05
	p := &Patch{
		Coord:  NewPoint(0, 0, 0),
		Normal: NewDir(0, 0, -1),
		Images: []int{1},
	}
	if o.Optimize(p, 0) {
		t.Error("Optimize should reject a patch with only one supporting image")
	}
}

func TestOptimizeAcceptsWellSupportedPatch(t *testing.T) {
	o, _, _ := newTestOptimizer()
	p := &Patch{
		Coord:  NewPoint(0, 0, 0),
		Normal: NewDir(0, 0, -1),
		Images: []int{1, 0, 2},
	}
	if !o.Optimize(p, 0) {
		t.Fatal("Optimize should accept a patch with a consistent three-image baseline")
	}
	if p.Flag != FlagAccepted {
		t.Errorf("accepted patch flag = %v, want FlagAccepted", p.Flag)
	}
}

// TestResidualHardCapsAtGrazingAngle is scenario C: a parameterization whose
// angle components reach or exceed pi/2 must hard-cap the residual at 2.0
// rather than attempt to decode a degenerate normal.
func TestResidualHardCapsAtGrazingAngle(t *testing.T) {
	o, _, _ := newTestOptimizer()
	frame := refineFrame{
		centerT: NewPoint(0, 0, 0),
		rayT:    NewDir(0, 0, -1),
		xaxis:   Vec3{X: 1},
		yaxis:   Vec3{Y: 1},
		zaxis:   Vec3{Z: 1},
		dscale:  0.01,
		ascale:  math.Pi / 48,
	}
	images := []int{0, 1, 2}
	// p1 in units of ascale reaching pi/2 exactly trips the hard cap.
	got := o.residual(frame, images, len(images), 0, 0, 24, 0)
	if got != 2.0 {
		t.Errorf("residual at a right-angle parameterization = %v, want the 2.0 hard cap", got)
	}
}

// TestResidualHardCapsWhenTooFewImagesSample: with only the reference image
// there is no other texture to compare against (denom == 0), so the
// residual hard-caps at 2.0 rather than averaging over no support.
func TestResidualHardCapsWhenTooFewImagesSample(t *testing.T) {
	o, _, _ := newTestOptimizer()
	frame := refineFrame{
		centerT: NewPoint(0, 0, 0),
		rayT:    NewDir(0, 0, -1),
		xaxis:   Vec3{X: 1},
		yaxis:   Vec3{Y: 1},
		zaxis:   Vec3{Z: 1},
		dscale:  0.01,
		ascale:  math.Pi / 48,
	}
	denomTooLow := o.residual(frame, []int{0}, 1, 0, 0, 0, 0)
	if denomTooLow != 2.0 {
		t.Errorf("residual with a single image (no other image to compare) = %v, want the 2.0 hard cap", denomTooLow)
	}
}
