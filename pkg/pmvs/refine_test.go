package pmvs

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame := refineFrame{
		centerT: NewPoint(0, 0, 0),
		rayT:    NewDir(0, 0, -1),
		xaxis:   Vec3{X: 1},
		yaxis:   Vec3{Y: 1},
		zaxis:   Vec3{Z: 1},
		dscale:  0.01,
		ascale:  math.Pi / 48,
	}
	// p0 only encodes displacement along rayT, so coord must lie on the ray
	// through centerT for the round trip to be exact.
	coord := NewPoint(0, 0, 0.005)
	normal := NewDir(0.1, 0.2, -0.97).Unit3()

	p0, p1, p2 := encode(frame, coord, normal)
	gotCoord, gotNormal := decode(frame, p0, p1, p2)

	if d := gotCoord.Minus(coord).Norm3(); d > 1e-9 {
		t.Errorf("decode(encode(coord)) drifted by %v, want ~0", d)
	}
	if d := gotNormal.Minus(normal).Norm3(); d > 1e-9 {
		t.Errorf("decode(encode(normal)) drifted by %v, want ~0", d)
	}
}

// TestRefineConvergesTowardTruePlane is scenario A: seeding a patch near the
// true fronto-parallel plane, perturbed by 5 degrees in normal and 0.5*dscale
// in depth, LM must converge in <=100 iterations to a dissimilarity <= 0.02
// and an angular error from the true normal <= 0.5 degrees.
func TestRefineConvergesTowardTruePlane(t *testing.T) {
	cams := threeCameraRig()
	photos := newFakePhotoSet(cams)
	cfg := testConfig(len(cams))
	o := NewOptimizer(photos, nil, nil, cfg)

	const dscale = 0.02
	const ascale = math.Pi / 48
	truthNormal := NewDir(0, 0, -1)

	angleErr := 5.0 * math.Pi / 180.0
	perturbedNormal := NewDir(math.Sin(angleErr), 0, -math.Cos(angleErr)).Unit3()

	seed := &Patch{
		Coord:  NewPoint(0.1, 0.05, 0.5*dscale),
		Normal: perturbedNormal,
		Images: []int{1, 0, 2},
		DScale: dscale,
		AScale: ascale,
	}
	if !o.refine(seed, 0) {
		t.Fatal("refine failed to converge")
	}

	dissimilarity := o.computeINCC(seed.Coord, seed.Normal, seed.Images, 0, false)
	if dissimilarity > 0.02 {
		t.Errorf("refine converged to dissimilarity %v, want <= 0.02", dissimilarity)
	}

	cosErr := seed.Normal.Dot3(truthNormal)
	angularErrDeg := math.Acos(clampUnit(cosErr)) * 180.0 / math.Pi
	if angularErrDeg > 0.5 {
		t.Errorf("refine converged to angular error %v degrees, want <= 0.5", angularErrDeg)
	}
}
