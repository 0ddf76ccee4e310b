package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/core/result"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/raster"
)

// The classifiers were calibrated on imagery from these seasons.
const (
	MinYear = 2013
	MaxYear = 2021
)

// Permanent water is where the surface water occurrence layer reports at
// least this percentage.
const waterOccurrenceMin = 80

// Options configures one breakup detection run.
type Options struct {
	Year           int
	CloudThreshold float64 // scenes at or above this cloud cover are skipped
	GlobalWater    bool    // restrict to permanent water pixels
	LogisticFilter bool    // mask outliers against a logistic fit of ice over time
	DummyWater     bool    // pad the fit with synthetic late-season water
	Concurrency    int     // concurrent scene loads
}

// DefaultOptions mirrors the canonical analysis configuration. GlobalWater
// should be disabled manually for tiles above 70N, where the occurrence
// layer is unreliable.
func DefaultOptions(year int) Options {
	return Options{
		Year:           year,
		CloudThreshold: 90,
		GlobalWater:    true,
		LogisticFilter: true,
		DummyWater:     false,
		Concurrency:    4,
	}
}

// SeasonStart returns the first day of the breakup period of interest,
// February 15th.
func SeasonStart(year int) time.Time {
	return time.Date(year, 2, 15, 0, 0, 0, 0, time.UTC)
}

// SeasonEnd returns the exclusive end of the breakup period, October 1st.
func SeasonEnd(year int) time.Time {
	return time.Date(year, 10, 1, 0, 0, 0, 0, time.UTC)
}

// Result is the per-pixel breakup analysis for one tile and season.
type Result = result.Result

// Detector runs breakup analyses against a scene archive.
type Detector struct {
	catalog *catalog.Catalog
	lakes   *geo.LakeSource
}

func NewDetector(cat *catalog.Catalog, lakes *geo.LakeSource) *Detector {
	return &Detector{catalog: cat, lakes: lakes}
}

// Detect estimates the spring breakup date for every permanent-water pixel
// of a lake tile.
func (d *Detector) Detect(ctx context.Context, lakeId int64, opts Options) (*Result, error) {
	if opts.Year < MinYear || opts.Year > MaxYear {
		return nil, fmt.Errorf("year %d outside supported range [%d, %d]", opts.Year, MinYear, MaxYear)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	lake, err := d.lakes.Lake(lakeId)
	if err != nil {
		return nil, err
	}

	grid, err := d.catalog.LoadGrid(ctx, lakeId)
	if err != nil {
		return nil, err
	}

	mask, err := d.analysisMask(ctx, lake, *grid, opts.GlobalWater)
	if err != nil {
		return nil, err
	}

	scenes, err := d.seasonScenes(ctx, lake, opts)
	if err != nil {
		return nil, err
	}
	slog.Info("scenes selected for detection",
		"lake_id", lakeId, "year", opts.Year, "scenes", len(scenes))

	obs, err := d.loadObservations(ctx, lakeId, scenes, mask, opts.Concurrency)
	if err != nil {
		return nil, err
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })

	nReal := len(obs)
	if opts.DummyWater {
		dummies := DummyWaterObservations(nReal, opts.Year, mask)
		obs = append(obs, dummies...)
		sort.Slice(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
	}

	var r2 *raster.Image
	if opts.LogisticFilter && len(obs) > 0 {
		r2 = ApplyLogisticFilter(obs)
	} else {
		r2 = raster.New(grid.W, grid.H)
	}

	// Synthetic water only steers the fit; it takes no part in the counts or
	// the transition search.
	if opts.DummyWater {
		kept := obs[:0]
		for _, o := range obs {
			if !o.Dummy {
				kept = append(kept, o)
			}
		}
		obs = kept
	}

	nPixels := CountObservations(obs, grid.W, grid.H).UpdateMask(mask)

	seq := DetectBreakup(obs, SeasonStart(opts.Year).YearDay(), grid.W, grid.H)

	return &Result{
		Grid:        *grid,
		Year:        opts.Year,
		BreakupDate: seq.BreakupDate.UpdateMask(mask),
		BreakupGap:  seq.BreakupGap.UpdateMask(mask),
		R2:          roundR2(r2).UpdateMask(mask),
		NPixels:     nPixels,
		SceneCount:  nReal,
	}, nil
}

// analysisMask combines the lake footprint with, optionally, the permanent
// water surface from the occurrence layer.
func (d *Detector) analysisMask(ctx context.Context, lake *geo.Lake, grid geo.Grid, globalWater bool) (*raster.Image, error) {
	mask := geo.Rasterize(lake.Geometry, grid)
	if !globalWater {
		return mask, nil
	}

	occ, err := d.catalog.LoadOccurrence(ctx, lake.Id)
	if err != nil {
		return nil, err
	}
	if !raster.SameShape(mask, occ) {
		return nil, fmt.Errorf("occurrence layer is %dx%d, tile grid is %dx%d", occ.W, occ.H, grid.W, grid.H)
	}
	for i := range mask.Pix {
		if !occ.Valid[i] || occ.Pix[i] < waterOccurrenceMin {
			mask.Pix[i] = 0
		}
	}
	return mask, nil
}

// seasonScenes selects the scenes feeding a run: all three products over the
// period of interest, under the cloud ceiling, intersecting the lake, with
// Sentinel-2 duplicates removed.
func (d *Detector) seasonScenes(ctx context.Context, lake *geo.Lake, opts Options) ([]catalog.Scene, error) {
	all, err := d.catalog.Scenes(ctx, lake.Id)
	if err != nil {
		return nil, err
	}

	base := catalog.Query{
		Start:    SeasonStart(opts.Year),
		End:      SeasonEnd(opts.Year),
		MaxCloud: opts.CloudThreshold,
		Bounds:   lake.Bound(),
	}

	var scenes []catalog.Scene
	for _, product := range []catalog.Product{catalog.Landsat7TOA, catalog.Landsat8TOA, catalog.Sentinel2TOA} {
		q := base
		q.Product = product
		selected := catalog.Filter(all, q)
		if product == catalog.Sentinel2TOA {
			selected = catalog.DropS2Duplicates(selected)
		}
		scenes = append(scenes, selected...)
	}
	return scenes, nil
}

// loadObservations loads, preps, and classifies scenes concurrently.
func (d *Detector) loadObservations(ctx context.Context, lakeId int64, scenes []catalog.Scene, mask *raster.Image, concurrency int) ([]*Observation, error) {
	obs := make([]*Observation, len(scenes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range scenes {
		i := i
		g.Go(func() error {
			o, err := d.loadObservation(ctx, lakeId, &scenes[i], mask)
			if err != nil {
				return err
			}
			obs[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return obs, nil
}

func (d *Detector) loadObservation(ctx context.Context, lakeId int64, scene *catalog.Scene, mask *raster.Image) (*Observation, error) {
	stored, ok := productBands[scene.Product]
	if !ok {
		return nil, fmt.Errorf("scene %s has unknown product %q", scene.Id, scene.Product)
	}

	raw := make(map[string]*raster.Image, len(stored))
	for _, band := range stored {
		img, err := d.catalog.LoadBand(ctx, lakeId, scene, band)
		if err != nil {
			return nil, err
		}
		if !raster.SameShape(img, mask) {
			return nil, fmt.Errorf("band %s of scene %s is %dx%d, tile grid is %dx%d",
				band, scene.Id, img.W, img.H, mask.W, mask.H)
		}
		// Mask before prep so the gap fill cannot draw on off-lake pixels.
		raw[band] = img.UpdateMask(mask)
	}

	bands, err := PrepBands(scene.Product, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to prep scene %s: %w", scene.Id, err)
	}
	// Re-mask: the gap fill interpolates into masked areas.
	for name, img := range bands {
		bands[name] = img.UpdateMask(mask)
	}

	ice, err := ClassifyIce(scene.Product, bands)
	if err != nil {
		return nil, fmt.Errorf("failed to classify scene %s: %w", scene.Id, err)
	}

	return &Observation{
		SceneId:  scene.Id,
		Product:  scene.Product,
		Time:     scene.Acquired,
		Doy:      scene.Doy(),
		FracYear: scene.FracYear(),
		Ice:      ice.UpdateMask(mask),
	}, nil
}

// roundR2 converts the [0,1] fit quality to a rounded percentage.
func roundR2(r2 *raster.Image) *raster.Image {
	out := r2.Clone()
	for i := range out.Pix {
		if out.Valid[i] {
			out.Pix[i] = math.Round(out.Pix[i] * 100)
		}
	}
	return out
}
