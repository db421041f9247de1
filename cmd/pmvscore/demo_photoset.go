package main

import (
	"math"

	"pmvscore/internal/numeric"
	"pmvscore/pkg/pmvs"
)

// demoCamera is a minimal synthetic pinhole camera: orthonormal right/up/
// forward axes, a focal length, and the depth (along forward) at which
// Color assumes its sampled pixel sits, so Color can invert a pixel back
// to a world (X,Y) on that reference plane. Real PMVS cameras come from
// calibrated projection matrices and real bitmap pyramids; this stands in
// for that "external collaborator" role (spec.md 1 deliberately excludes
// camera/photo loading from the core) just well enough to drive the demo.
type demoCamera struct {
	center         pmvs.Vec4
	right, up, fwd pmvs.Vec3
	focal          float64
	cx0, cy0       float64
	width0, height0 int
	referenceDepth float64
}

// demoPhotoSet implements pmvs.PhotoSet over a handful of demoCameras and a
// single procedural world texture, so that two or more views of the same
// synthetic plane are genuinely photoconsistent at the correct depth.
type demoPhotoSet struct {
	cams []demoCamera
}

func newDemoPhotoSet(cams []demoCamera) *demoPhotoSet {
	return &demoPhotoSet{cams: cams}
}

// worldColor is the procedural texture painted on the synthetic plane.
func worldColor(x, y float64) pmvs.Vec3 {
	r := 0.5 + 0.5*math.Sin(x*3.1)
	g := 0.5 + 0.5*math.Sin(y*2.7+1.0)
	b := 0.5 + 0.5*math.Cos((x+y)*2.3)
	return pmvs.Vec3{X: r, Y: g, Z: b}
}

func (d *demoPhotoSet) Project(image int, x pmvs.Vec4, level int) pmvs.Vec3 {
	c := d.cams[image]
	dir := x.Minus(c.center).Vec3()
	depth := dir.Dot(c.fwd)
	if depth < 1e-6 {
		depth = 1e-6
	}
	lx := dir.Dot(c.right)
	ly := dir.Dot(c.up)
	scale := math.Pow(2, float64(-level))
	u := (c.cx0 + c.focal*lx/depth) * scale
	v := (c.cy0 + c.focal*ly/depth) * scale
	return pmvs.Vec3{X: u, Y: v}
}

func (d *demoPhotoSet) Color(image int, u, v float64, level int) pmvs.Vec3 {
	c := d.cams[image]
	scale := math.Pow(2, float64(level))
	u0 := u * scale
	v0 := v * scale
	lx := (u0 - c.cx0) * c.referenceDepth / c.focal
	ly := (v0 - c.cy0) * c.referenceDepth / c.focal
	worldX := c.center.X + lx*c.right.X + ly*c.up.X
	worldY := c.center.Y + lx*c.right.Y + ly*c.up.Y
	return worldColor(worldX, worldY)
}

func (d *demoPhotoSet) Width(image, level int) int {
	w := d.cams[image].width0 >> uint(level)
	if w < 1 {
		w = 1
	}
	return w
}

func (d *demoPhotoSet) Height(image, level int) int {
	h := d.cams[image].height0 >> uint(level)
	if h < 1 {
		h = 1
	}
	return h
}

func (d *demoPhotoSet) OAxis(image int) pmvs.Vec4 {
	f := d.cams[image].fwd
	return pmvs.NewDir(f.X, f.Y, f.Z)
}

func (d *demoPhotoSet) Center(image int) pmvs.Vec4 { return d.cams[image].center }

func (d *demoPhotoSet) ProjectionRow(image int, row int) pmvs.Vec4 {
	c := d.cams[image]
	if row == 0 {
		return pmvs.NewDir(c.right.X, c.right.Y, c.right.Z)
	}
	return pmvs.NewDir(c.up.X, c.up.Y, c.up.Z)
}

func (d *demoPhotoSet) Distance(i, j int) float64 {
	return d.cams[i].center.Minus(d.cams[j].center).Norm3()
}

func (d *demoPhotoSet) VisData2(image int) []int {
	out := make([]int, 0, len(d.cams)-1)
	for i := range d.cams {
		if i != image {
			out = append(out, i)
		}
	}
	return out
}

func (d *demoPhotoSet) GetMask(x pmvs.Vec4, level int) bool { return true }
func (d *demoPhotoSet) GetEdge(x pmvs.Vec4, image int, level int) bool { return true }

// CheckAngles requires at least minImageNum images and at least one pair of
// them whose viewing-ray angle is wide enough to constrain depth
// (> maxAngleThreshold) but narrow enough that appearance hasn't diverged
// past angleThreshold1 — the demo-scale analogue of spec.md 6's baseline
// sanity check.
func (d *demoPhotoSet) CheckAngles(x pmvs.Vec4, images []int, maxAngleThreshold, angleThreshold1 float64, minImageNum int) bool {
	if len(images) < minImageNum {
		return false
	}
	qualifying := 0
	for i := 0; i < len(images); i++ {
		for j := i + 1; j < len(images); j++ {
			ri := d.cams[images[i]].center.Minus(x).Unit3()
			rj := d.cams[images[j]].center.Minus(x).Unit3()
			angle := math.Acos(numeric.Clamp(ri.Dot3(rj), -1, 1))
			if angle > maxAngleThreshold && angle < angleThreshold1 {
				qualifying++
			}
		}
	}
	return qualifying > 0
}

func (d *demoPhotoSet) InsideBounds(x pmvs.Vec4) bool { return true }
