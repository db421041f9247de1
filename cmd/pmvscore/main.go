package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"pmvscore/pkg/config"
	"pmvscore/pkg/pmvs"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults used if absent)")
	numCores := flag.Int("cores", 0, "Override the number of worker goroutines (0: use config/default)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}

	fmt.Println("================================")
	fmt.Println("PMVSCORE — patch optimizer & filter demo")
	fmt.Println("================================")

	cams := buildDemoCameras()
	photos := newDemoPhotoSet(cams)
	pmvsCfg := cfg.ToPMVSConfig(len(cams), len(cams))

	store := pmvs.NewStore(photos, pmvsCfg)
	filter := pmvs.NewFilter(photos, store, pmvsCfg)
	optimizer := pmvs.NewOptimizer(photos, store, filter, pmvsCfg)

	candidates := buildDemoSeeds(cams)
	fmt.Printf("Seeded %d candidate patches across %d images\n", len(candidates), len(cams))

	start := time.Now()
	accepted := optimizer.OptimizeAll(candidates)
	optimizeTime := time.Since(start)

	fmt.Printf("Optimizer accepted %d/%d candidates in %s\n", len(accepted), len(candidates), optimizeTime)

	beforeFilter := len(store.AllPatches())
	filterStart := time.Now()
	filter.Run(cfg.NeighborPasses())
	filterTime := time.Since(filterStart)
	afterFilter := len(store.AllPatches())

	fmt.Printf("Filter removed %d/%d patches in %s\n", beforeFilter-afterFilter, beforeFilter, filterTime)
	fmt.Printf("Final patch count: %d\n", afterFilter)

	if cfg.Output.Verbose {
		for _, p := range store.AllPatches() {
			fmt.Printf("  patch coord=(%.3f,%.3f,%.3f) ncc=%.4f images=%v\n",
				p.Coord.X, p.Coord.Y, p.Coord.Z, p.NCC, p.Images)
		}
	}
}
