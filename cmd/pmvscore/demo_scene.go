package main

import (
	"pmvscore/pkg/pmvs"
)

// buildDemoCameras lays out a small baseline stereo rig: three cameras on
// the X axis, all facing +Z toward a textured plane at z=0, far enough back
// that the plane fills most of the frame. Three views clears the default
// MinImageNumThreshold and gives CheckAngles a real angular spread to work
// with.
func buildDemoCameras() []demoCamera {
	const (
		focal          = 800.0
		width0         = 640
		height0        = 480
		referenceDepth = 5.0
	)
	right := pmvs.Vec3{X: 1, Y: 0, Z: 0}
	up := pmvs.Vec3{X: 0, Y: 1, Z: 0}
	fwd := pmvs.Vec3{X: 0, Y: 0, Z: 1}

	offsets := []float64{-0.6, 0, 0.6}
	cams := make([]demoCamera, len(offsets))
	for i, dx := range offsets {
		cams[i] = demoCamera{
			center:         pmvs.NewPoint(dx, 0, -referenceDepth),
			right:          right,
			up:             up,
			fwd:            fwd,
			focal:          focal,
			cx0:            float64(width0) / 2,
			cy0:            float64(height0) / 2,
			width0:         width0,
			height0:        height0,
			referenceDepth: referenceDepth,
		}
	}
	return cams
}

// buildDemoSeeds drops a handful of candidate patches across the plane at
// z=0 (every camera's referenceDepth), each facing back toward the rig, and
// populates its image list with CollectImages the way a match-expansion
// driver would before ever handing a patch to the optimizer.
func buildDemoSeeds(cams []demoCamera) []*pmvs.Patch {
	photos := newDemoPhotoSet(cams)
	cfg := pmvs.Config{
		CPU:               1,
		Num:               len(cams),
		TNum:              len(cams),
		Tau:               len(cams),
		AngleThreshold0:   1.4,
		SequenceThreshold: -1,
	}
	optimizer := pmvs.NewOptimizer(photos, nil, nil, cfg)

	positions := [][2]float64{
		{-0.3, -0.2}, {0, 0}, {0.3, 0.2}, {-0.15, 0.25}, {0.2, -0.25},
	}
	normal := pmvs.NewDir(0, 0, -1)

	seeds := make([]*pmvs.Patch, 0, len(positions))
	for _, xy := range positions {
		ref := 1 // the center camera
		p := &pmvs.Patch{
			Coord:  pmvs.NewPoint(xy[0], xy[1], 0),
			Normal: normal,
			Flag:   pmvs.FlagCandidate,
		}
		p.Images = optimizer.CollectImages(ref)
		if len(p.Images) == 0 {
			continue
		}
		seeds = append(seeds, p)
	}
	return seeds
}
