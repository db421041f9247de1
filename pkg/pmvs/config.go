package pmvs

// Config bundles the numeric parameters that drive patch expansion,
// optimization and filtering. It is the engine-facing counterpart of
// pmvscore/pkg/config.Config, which loads these values from YAML.
type Config struct {
	// CPU is the number of worker goroutines used for parallel passes.
	CPU int
	// Num is the total number of images in the photo set.
	Num int
	// TNum is the number of "target" images (the rest are sequence-only
	// support images collected via collectImages).
	TNum int
	// Tau is the maximum number of images considered for a single patch's
	// photometric score.
	Tau int
	// WSize is the side length (in pixels) of the square texture window
	// sampled around a patch's projection.
	WSize int
	// Level is the base mipmap level patches are evaluated at.
	Level int
	// Depth selects how much of postProcess runs: 0 disables visibility
	// grids entirely, 1 builds them, 2+ also runs the neighbor-consistency
	// check from Filter.
	Depth int

	AngleThreshold0   float64 // collectImages / addImages optical-axis cutoff
	AngleThreshold1   float64 // filterImagesByAngle / grabTex visibility cutoff
	MaxAngleThreshold float64 // passed through to PhotoSet.CheckAngles

	// SequenceThreshold bounds collectImages to images within this many
	// sequence indices of the reference image; -1 disables the bound.
	SequenceThreshold int

	NCCThreshold       float64
	NCCThresholdBefore float64

	MinImageNumThreshold int
	MinPatchesGrid       int
}
