package pmvs

import (
	"math"

	"pmvscore/internal/numeric"
)

// pow2Table mirrors the reference implementation's lookup table for powers
// of two across the range of mipmap level shifts grabTex ever requests
// (exponents -4..10), avoiding repeated math.Pow calls in the hot path.
var pow2Table = [...]float64{
	0.0625, 0.125, 0.25, 0.5,
	1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024,
}

func pow2(exp int) float64 {
	idx := exp + 4
	if idx < 0 || idx >= len(pow2Table) {
		return math.Pow(2, float64(exp))
	}
	return pow2Table[idx]
}

// grabSafe reports whether a size x size window centered at center, spanned
// by basis vectors dx/dy, stays at least 3 pixels clear of the image border
// at the given mipmap level.
func (o *Optimizer) grabSafe(index, size int, center, dx, dy Vec3, level int) bool {
	margin := float64(size / 2)
	tl := center.Sub(dx.Scale(margin)).Sub(dy.Scale(margin))
	tr := center.Add(dx.Scale(margin)).Sub(dy.Scale(margin))
	bl := center.Sub(dx.Scale(margin)).Add(dy.Scale(margin))
	br := center.Add(dx.Scale(margin)).Add(dy.Scale(margin))

	minX := min(min(tl.X, tr.X), min(bl.X, br.X))
	maxX := max(max(tl.X, tr.X), max(bl.X, br.X))
	minY := min(min(tl.Y, tr.Y), min(bl.Y, br.Y))
	maxY := max(max(tl.Y, tr.Y), max(bl.Y, br.Y))

	const edgeMargin = 3.0
	if minX < edgeMargin || float64(o.photos.Width(index, level)-1)-edgeMargin <= maxX {
		return false
	}
	if minY < edgeMargin || float64(o.photos.Height(index, level)-1)-edgeMargin <= maxY {
		return false
	}
	return true
}

// grabTex samples a size x size RGB window of image `index` around coord,
// oriented by (pxaxis, pyaxis), into the worker's reusable texture slot
// `slot`, choosing the mipmap level whose pixel footprint best matches the
// requested window. It reports false (and leaves the slot's texture empty)
// when the patch faces too far away from the image or the window would
// fall off the image border.
func (o *Optimizer) grabTex(coord, pxaxis, pyaxis, pzaxis Vec4, index, size, id, slot int) bool {
	scratch := &o.scratch[id]
	buf := scratch.texs[slot][:0]

	ray := o.photos.Center(index).Minus(coord).Unit3()
	weight := max(0, ray.Dot3(pzaxis))
	if weight < math.Cos(o.cfg.AngleThreshold1) {
		scratch.texs[slot] = buf
		return false
	}

	margin := size / 2
	center := o.photos.Project(index, coord, o.cfg.Level)
	dxp := o.photos.Project(index, coord.Plus(pxaxis), o.cfg.Level)
	dyp := o.photos.Project(index, coord.Plus(pyaxis), o.cfg.Level)
	dx := dxp.Sub(center)
	dy := dyp.Sub(center)

	ratio := (dx.Norm() + dy.Norm()) / 2.0
	if ratio == 0 {
		scratch.texs[slot] = buf
		return false
	}
	levelDif := int(math.Floor(math.Log2(ratio) + 0.5))
	levelDif = numeric.Clamp(levelDif, -o.cfg.Level, 2)
	scale := pow2(levelDif)
	newLevel := o.cfg.Level + levelDif

	center = center.Scale(1 / scale)
	dx = dx.Scale(1 / scale)
	dy = dy.Scale(1 / scale)

	if !o.grabSafe(index, size, center, dx, dy, newLevel) {
		scratch.texs[slot] = buf
		return false
	}

	left := center.Sub(dx.Scale(float64(margin))).Sub(dy.Scale(float64(margin)))
	for y := 0; y < size; y++ {
		cur := left
		left = left.Add(dy)
		for x := 0; x < size; x++ {
			c := o.photos.Color(index, cur.X, cur.Y, newLevel)
			buf = append(buf, c.X, c.Y, c.Z)
			cur = cur.Add(dx)
		}
	}
	scratch.texs[slot] = buf
	return true
}

// normalizeTex subtracts the per-channel mean and divides by the pooled
// (all channels, all pixels) standard deviation, matching the reference
// optimizer's texture normalization exactly: the denominator is a single
// scalar spread across R, G and B together, not per-channel.
func normalizeTex(tex []float64) {
	n := len(tex) / 3
	if n == 0 {
		return
	}
	var ave [3]float64
	for i := 0; i < n; i++ {
		ave[0] += tex[3*i]
		ave[1] += tex[3*i+1]
		ave[2] += tex[3*i+2]
	}
	ave[0] /= float64(n)
	ave[1] /= float64(n)
	ave[2] /= float64(n)

	var sumSq float64
	for i := 0; i < n; i++ {
		d0 := ave[0] - tex[3*i]
		d1 := ave[1] - tex[3*i+1]
		d2 := ave[2] - tex[3*i+2]
		sumSq += d0*d0 + d1*d1 + d2*d2
	}
	spread := math.Sqrt(sumSq / float64(3*n))
	if spread == 0 {
		spread = 1
	}
	for i := 0; i < n; i++ {
		tex[3*i] = (tex[3*i] - ave[0]) / spread
		tex[3*i+1] = (tex[3*i+1] - ave[1]) / spread
		tex[3*i+2] = (tex[3*i+2] - ave[2]) / spread
	}
}

// dotTex computes the inner product of two normalized textures, pre-divided
// by their length: downstream NCC/INCC formulas are written assuming this
// averaged convention rather than a raw dot product.
func dotTex(a, b []float64) float64 {
	n := len(a)
	if n == 0 || len(b) != n {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum / float64(n)
}
