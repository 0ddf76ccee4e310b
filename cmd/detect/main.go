// The detect binary runs one breakup detection end to end without the API
// or queue: it reads scenes from a directory-backed object store and writes
// the NetCDF artifact to a local path.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/core"
	"github.com/xgirouxb/open-ice/internal/export"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/storage"
)

func main() {
	var (
		dataDir        = flag.String("data", "./open-ice/objects", "object store root directory")
		sceneBucket    = flag.String("scene-bucket", "scenes", "bucket holding the scene archive")
		lakesFile      = flag.String("lakes", "", "path to the HydroLAKES GeoJSON export")
		lakeId         = flag.Int64("lake", 0, "HydroLAKES id of the lake to analyze")
		year           = flag.Int("year", 0, "breakup season year")
		outDir         = flag.String("out-dir", ".", "directory to write the artifact to")
		outName        = flag.String("out-name", "breakup", "artifact filename without extension")
		cloudThreshold = flag.Float64("cloud-threshold", 90, "exclude scenes at or above this cloud cover percentage")
		globalWater    = flag.Bool("global-water", true, "restrict to permanent water pixels (disable above 70N)")
		logisticFilter = flag.Bool("logistic-filter", true, "filter outliers with the logistic temporal fit")
		dummyWater     = flag.Bool("dummy-water", false, "pad the fit with synthetic late-season water")
		concurrency    = flag.Int("concurrency", 4, "concurrent scene loads")
	)
	flag.Parse()

	if *lakesFile == "" || *lakeId == 0 || *year == 0 {
		flag.Usage()
		os.Exit(2)
	}

	lakes, err := geo.LoadLakesFile(*lakesFile)
	if err != nil {
		log.Fatalf("Failed to load lakes file: %v", err)
	}

	store, err := storage.NewLocalObjectStore(*dataDir)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}

	detector := core.NewDetector(catalog.New(store, *sceneBucket), lakes)

	opts := core.Options{
		Year:           *year,
		CloudThreshold: *cloudThreshold,
		GlobalWater:    *globalWater,
		LogisticFilter: *logisticFilter,
		DummyWater:     *dummyWater,
		Concurrency:    *concurrency,
	}

	result, err := detector.Detect(context.Background(), *lakeId, opts)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	outPath := filepath.Join(*outDir, *outName+".nc")
	if err := export.WriteFile(outPath, *lakeId, result); err != nil {
		log.Fatalf("Failed to write artifact: %v", err)
	}

	log.Printf("Wrote %s (%d scenes, year %d)", outPath, result.SceneCount, result.Year)
}
