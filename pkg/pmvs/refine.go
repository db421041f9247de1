package pmvs

import (
	"math"

	"github.com/maorshutman/lm"
)

// refineFrame captures everything the parameterization needs that stays
// fixed for the duration of one refinement: the reference image's camera
// axes and the patch's pre-refinement center and viewing ray.
type refineFrame struct {
	centerT Vec4 // patch coord at the start of refinement
	rayT    Vec4 // unit direction from centerT toward the reference camera
	xaxis   Vec3
	yaxis   Vec3
	zaxis   Vec3
	dscale  float64
	ascale  float64
}

// encode projects (coord, normal) onto the 3-scalar refinement
// parameterization (p0, p1, p2) relative to frame.
func encode(frame refineFrame, coord, normal Vec4) (p0, p1, p2 float64) {
	p0 = coord.Minus(frame.centerT).Dot3(frame.rayT) / frame.dscale

	n3 := normal.Vec3()
	fx := n3.Dot(frame.xaxis)
	fy := n3.Dot(frame.yaxis)
	fz := n3.Dot(frame.zaxis)

	angle2 := math.Asin(clampUnit(fy))
	cosb := math.Cos(angle2)
	var angle1 float64
	if cosb == 0 {
		angle1 = 0
	} else {
		angle1 = math.Atan2(fx, -fz)
	}
	p1 = angle1 / frame.ascale
	p2 = angle2 / frame.ascale
	return p0, p1, p2
}

// decode inverts encode: it reconstructs (coord, normal) from the 3-scalar
// parameterization relative to frame.
func decode(frame refineFrame, p0, p1, p2 float64) (coord, normal Vec4) {
	coord = frame.centerT.Plus(frame.rayT.Scale3(p0 * frame.dscale))

	angle1 := p1 * frame.ascale
	angle2 := p2 * frame.ascale
	fx := math.Sin(angle1) * math.Cos(angle2)
	fy := math.Sin(angle2)
	fz := -math.Cos(angle1) * math.Cos(angle2)

	n3 := frame.xaxis.Scale(fx).Add(frame.yaxis.Scale(fy)).Add(frame.zaxis.Scale(fz))
	normal = NewDir(n3.X, n3.Y, n3.Z)
	return coord, normal
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// residual is the refinement objective of spec.md 4.1: the mean robust
// dissimilarity between the reference texture and every other sampleable
// candidate texture, hard-capped at 2.0 for degenerate parameterizations or
// insufficient support.
func (o *Optimizer) residual(frame refineFrame, images []int, s int, id int, p0, p1, p2 float64) float64 {
	angle1 := p1 * frame.ascale
	angle2 := p2 * frame.ascale
	if math.Abs(angle1) >= math.Pi/2 || math.Abs(angle2) >= math.Pi/2 {
		return 2.0
	}

	coord, normal := decode(frame, p0, p1, p2)
	pxaxis, pyaxis := o.getPAxes(images[0], coord, normal)
	if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[0], id, 0) {
		return 2.0
	}
	tex0 := o.scratch[id].texs[0]

	var sum float64
	var denom int
	for i := 1; i < s; i++ {
		if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[i], id, i) {
			continue
		}
		sum += robust(1 - dotTex(tex0, o.scratch[id].texs[i]))
		denom++
	}

	need := min(o.cfg.MinImageNumThreshold, s) - 1
	if denom < need || denom == 0 {
		return 2.0
	}
	return sum / float64(denom)
}

// refine runs Levenberg-Marquardt over the 3-scalar parameterization,
// minimizing the photometric residual against a fixed set of S = min(tau,
// |images|) candidate images, then writes the refined Coord/Normal/NCC back
// into p on success. It reports false (patch rejected) on LM failure.
func (o *Optimizer) refine(p *Patch, id int) bool {
	if len(p.Images) == 0 {
		return false
	}
	ref := p.Images[0]
	frame := refineFrame{
		centerT: p.Coord,
		rayT:    o.photos.Center(ref).Minus(p.Coord).Unit3(),
		xaxis:   o.axes[ref].XAxis,
		yaxis:   o.axes[ref].YAxis,
		zaxis:   o.axes[ref].ZAxis,
		dscale:  p.DScale,
		ascale:  p.AScale,
	}

	s := min(o.cfg.Tau, len(p.Images))
	images := p.Images[:s]

	p0, p1, p2 := encode(frame, p.Coord, p.Normal)
	init := []float64{p0, p1, p2}

	objective := func(dst, x []float64) {
		f := o.residual(frame, images, s, id, x[0], x[1], x[2])
		dst[0], dst[1], dst[2] = f, f, f
	}

	jac := lm.NumJac{Func: objective}
	problem := lm.LMProblem{
		Dim:        3,
		Size:       3,
		Func:       objective,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-3,
		Eps1:       1e-7,
		Eps2:       1e-7,
	}

	result, err := lm.LM(problem, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-7})
	if err != nil || result == nil {
		return false
	}

	coord, normal := decode(frame, result.X[0], result.X[1], result.X[2])
	p.Coord = coord
	p.Normal = normal
	p.NCC = 1 - unrobust(o.computeINCC(coord, normal, p.Images, id, true))
	p.Flag = FlagRefined
	return true
}
