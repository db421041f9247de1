package pmvs

import "math"

// computeWeights mirrors computeUnitsSimple but works from a bare image
// list and coord/normal pair rather than a *Patch. It is what the weighted
// evaluators (setINCCs, setINCCsMatrix, computeINCC) use; setWeightsT does
// not call it.
func (o *Optimizer) computeWeights(images []int, coord, normal Vec4) []float64 {
	weights := make([]float64, len(images))
	if len(images) == 0 {
		return weights
	}
	units := make([]float64, len(images))
	for i, im := range images {
		u := o.getUnit(im, coord)
		ray := o.photos.Center(im).Minus(coord).Unit3()
		if denom := ray.Dot3(normal); denom > 0 {
			u /= denom
		} else {
			u = math.MaxFloat64 / 2
		}
		units[i] = u
	}
	unit0 := units[0]
	weights[0] = 1
	for i := 1; i < len(images); i++ {
		if units[i] == 0 {
			weights[i] = 1
			continue
		}
		weights[i] = math.Min(1, unit0/units[i])
	}
	return weights
}

// setWeightsT computes the per-image photometric weights of p from
// computeUnitsSimple and stores them in worker id's scratch. Neither the LM
// residual nor computeINCC reads that scratch slot: computeINCC derives the
// same weights itself through computeWeights.
func (o *Optimizer) setWeightsT(p *Patch, id int) []float64 {
	units := o.computeUnitsSimple(p)
	weights := make([]float64, len(units))
	if len(units) > 0 {
		weights[0] = 1
		for i := 1; i < len(units); i++ {
			if units[i] == 0 {
				weights[i] = 1
				continue
			}
			weights[i] = math.Min(1, units[0]/units[i])
		}
	}
	o.scratch[id].weights = weights
	return weights
}

// grabAndNormalize samples and normalizes image `image`'s texture into
// scratch slot `slot`, returning whether the sample was usable. pxaxis and
// pyaxis are the reference image's tangent-plane axes (from getPAxes(images[0],
// ...)), reused unchanged across every image in one evaluation so every
// candidate samples the same physical patch footprint as the reference.
func (o *Optimizer) grabAndNormalize(coord, normal, pxaxis, pyaxis Vec4, image, id, slot int) bool {
	if !o.grabTex(coord, pxaxis, pyaxis, normal, image, o.cfg.WSize, id, slot) {
		return false
	}
	normalizeTex(o.scratch[id].texs[slot])
	return true
}

// setINCCs returns, for each image in images, its single-pass dissimilarity
// (1-NCC) against the reference texture (images[0]); index 0 is always 0
// since the reference never competes against itself. An unsampleable
// reference or candidate texture is scored as the maximum dissimilarity 2.0,
// matching the hard cap the refinement residual uses for invalid textures.
func (o *Optimizer) setINCCs(coord, normal Vec4, images []int, id int, weighted bool) []float64 {
	inccs := make([]float64, len(images))
	if len(images) == 0 {
		return inccs
	}
	pxaxis, pyaxis := o.getPAxes(images[0], coord, normal)
	if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[0], id, 0) {
		for i := 1; i < len(inccs); i++ {
			inccs[i] = 2.0
		}
		return inccs
	}
	tex0 := o.scratch[id].texs[0]

	var weights []float64
	if weighted {
		weights = o.computeWeights(images, coord, normal)
	}
	for i := 1; i < len(images); i++ {
		if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[i], id, i) {
			inccs[i] = 2.0
			continue
		}
		ncc := dotTex(tex0, o.scratch[id].texs[i])
		if weighted {
			ncc *= weights[i]
		}
		inccs[i] = 1 - ncc
	}
	return inccs
}

// setINCCsMatrix samples every image in targetIdx once and builds the full
// pairwise dissimilarity matrix (row r, col c = 1-NCC(targetIdx[r],
// targetIdx[c]), diagonal 0). setRefImage picks the row with the smallest
// sum, i.e. the candidate reference whose texture agrees best, on average,
// with every other target image.
func (o *Optimizer) setINCCsMatrix(coord, normal Vec4, targetIdx []int, id int, weighted bool) [][]float64 {
	n := len(targetIdx)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	if n == 0 {
		return matrix
	}

	pxaxis, pyaxis := o.getPAxes(targetIdx[0], coord, normal)
	ok := make([]bool, n)
	for c, im := range targetIdx {
		ok[c] = o.grabAndNormalize(coord, normal, pxaxis, pyaxis, im, id, c)
	}

	var weights []float64
	if weighted {
		weights = o.computeWeights(targetIdx, coord, normal)
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if r == c {
				continue
			}
			if !ok[r] || !ok[c] {
				matrix[r][c] = 2.0
				continue
			}
			ncc := dotTex(o.scratch[id].texs[r], o.scratch[id].texs[c])
			if weighted {
				ncc *= weights[c]
			}
			matrix[r][c] = 1 - ncc
		}
	}
	return matrix
}

// computeINCC is the weighted multi-view NCC evaluator: it samples every
// image's texture once, then returns the weighted average dissimilarity of
// images[1:] against the reference, optionally passed through robust()
// before averaging. It is used to set the patch's final NCC after a
// successful refinement, never inside the LM residual itself.
func (o *Optimizer) computeINCC(coord, normal Vec4, images []int, id int, applyRobust bool) float64 {
	if len(images) == 0 {
		return 2.0
	}
	pxaxis, pyaxis := o.getPAxes(images[0], coord, normal)
	if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[0], id, 0) {
		return 2.0
	}
	tex0 := o.scratch[id].texs[0]
	weights := o.computeWeights(images, coord, normal)

	var sumWeighted, sumWeights float64
	for i := 1; i < len(images); i++ {
		if !o.grabAndNormalize(coord, normal, pxaxis, pyaxis, images[i], id, i) {
			continue
		}
		diss := 1 - dotTex(tex0, o.scratch[id].texs[i])
		if applyRobust {
			diss = robust(diss)
		}
		sumWeighted += weights[i] * diss
		sumWeights += weights[i]
	}
	if sumWeights == 0 {
		return 2.0
	}
	return sumWeighted / sumWeights
}
