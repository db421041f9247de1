package pmvs

// Patch is an oriented surface element: a 3D point with a normal, a
// photometric consistency score and the set of images that support it.
//
// Coord carries W=1 (a point), Normal carries W=0 (a direction). DScale and
// AScale are the per-patch depth and angular step sizes the optimizer
// refines against; they are set once by the patch store (setScales) before
// the first refinement and left untouched afterwards.
type Patch struct {
	Coord  Vec4
	Normal Vec4
	NCC    float64
	DScale float64
	AScale float64

	// Images holds every image this patch is currently associated with;
	// Images[0] is always the reference image used to build the local
	// photometric frame. VImages holds images the patch is visible in but
	// does not actively draw photometric support from.
	Images  []int
	VImages []int

	// TImages is the number of Images that fall within the "target" range
	// (index < TNum) as opposed to additional sequence images.
	TImages int

	// Tmp is scratch state shared between passes: postProcess stores the
	// store's score2 result here, and Filter.Check overwrites it with the
	// computed gain.
	Tmp float64

	Flag PatchFlag
}

// PatchFlag tags where in its lifecycle a patch currently sits.
type PatchFlag int

const (
	FlagCandidate PatchFlag = iota
	FlagRefined
	FlagAccepted
	FlagFiltered
)

// robust maps a raw dissimilarity x = 1-NCC through PMVS's influence
// function, compressing the penalty for badly-mismatched images so a
// handful of occluded views cannot dominate the score.
func robust(x float64) float64 { return x / (1 + 3*x) }

// unrobust inverts robust: given a score produced by robust, recovers the
// underlying dissimilarity.
func unrobust(score float64) float64 { return score / (1 - 3*score) }
