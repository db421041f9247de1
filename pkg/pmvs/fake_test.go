package pmvs

import "math"

// fakeCamera is a minimal pinhole camera used only by the package's own
// tests: orthonormal axes, a focal length and a flat procedural texture on
// the z=0 plane, so two or more views of the same patch are genuinely
// photoconsistent at the right depth and mismatched elsewhere.
type fakeCamera struct {
	center         Vec4
	right, up, fwd Vec3
}

type fakePhotoSet struct {
	cams []fakeCamera
}

func newFakePhotoSet(cams []fakeCamera) *fakePhotoSet { return &fakePhotoSet{cams: cams} }

func fakeTexture(x, y float64) float64 {
	return math.Sin(x*2.0) + math.Cos(y*1.5)
}

func (f *fakePhotoSet) Project(image int, x Vec4, level int) Vec3 {
	c := f.cams[image]
	dir := x.Minus(c.center).Vec3()
	depth := dir.Dot(c.fwd)
	if depth < 1e-6 {
		depth = 1e-6
	}
	const focal = 500.0
	scale := math.Pow(2, float64(-level))
	return Vec3{
		X: (320 + focal*dir.Dot(c.right)/depth) * scale,
		Y: (240 + focal*dir.Dot(c.up)/depth) * scale,
	}
}

func (f *fakePhotoSet) Color(image int, u, v float64, level int) Vec3 {
	c := f.cams[image]
	scale := math.Pow(2, float64(level))
	u0 := u * scale
	v0 := v * scale
	const focal = 500.0
	const refDepth = 5.0
	lx := (u0 - 320) * refDepth / focal
	ly := (v0 - 240) * refDepth / focal
	wx := c.center.X + lx*c.right.X + ly*c.up.X
	wy := c.center.Y + lx*c.right.Y + ly*c.up.Y
	val := fakeTexture(wx, wy)
	return Vec3{X: val, Y: val, Z: val}
}

func (f *fakePhotoSet) Width(image, level int) int {
	w := 640 >> uint(level)
	if w < 1 {
		w = 1
	}
	return w
}

func (f *fakePhotoSet) Height(image, level int) int {
	h := 480 >> uint(level)
	if h < 1 {
		h = 1
	}
	return h
}

func (f *fakePhotoSet) OAxis(image int) Vec4 {
	c := f.cams[image]
	return NewDir(c.fwd.X, c.fwd.Y, c.fwd.Z)
}

func (f *fakePhotoSet) Center(image int) Vec4 { return f.cams[image].center }

func (f *fakePhotoSet) ProjectionRow(image int, row int) Vec4 {
	c := f.cams[image]
	if row == 0 {
		return NewDir(c.right.X, c.right.Y, c.right.Z)
	}
	return NewDir(c.up.X, c.up.Y, c.up.Z)
}

func (f *fakePhotoSet) Distance(i, j int) float64 {
	return f.cams[i].center.Minus(f.cams[j].center).Norm3()
}

func (f *fakePhotoSet) VisData2(image int) []int {
	out := make([]int, 0, len(f.cams)-1)
	for i := range f.cams {
		if i != image {
			out = append(out, i)
		}
	}
	return out
}

func (f *fakePhotoSet) GetMask(x Vec4, level int) bool          { return true }
func (f *fakePhotoSet) GetEdge(x Vec4, image int, level int) bool { return true }

func (f *fakePhotoSet) CheckAngles(x Vec4, images []int, maxAngleThreshold, angleThreshold1 float64, minImageNum int) bool {
	return len(images) >= minImageNum
}

func (f *fakePhotoSet) InsideBounds(x Vec4) bool { return true }

// threeCameraRig builds a small baseline stereo rig facing +Z at a plane
// z=0, matching the shape of the demo cmd's rig but self-contained here so
// package tests never depend on cmd/pmvscore.
func threeCameraRig() []fakeCamera {
	right := Vec3{X: 1}
	up := Vec3{Y: 1}
	fwd := Vec3{Z: 1}
	offsets := []float64{-0.6, 0, 0.6}
	cams := make([]fakeCamera, len(offsets))
	for i, dx := range offsets {
		cams[i] = fakeCamera{center: NewPoint(dx, 0, -5), right: right, up: up, fwd: fwd}
	}
	return cams
}

func testConfig(numImages int) Config {
	return Config{
		CPU:                  1,
		Num:                  numImages,
		TNum:                 numImages,
		Tau:                  numImages,
		WSize:                5,
		Level:                0,
		Depth:                1,
		AngleThreshold0:      1.4,
		AngleThreshold1:      1.5,
		MaxAngleThreshold:    0.01,
		SequenceThreshold:    -1,
		NCCThreshold:         0.7,
		NCCThresholdBefore:   0.3,
		MinImageNumThreshold: 3,
		MinPatchesGrid:       1,
	}
}
