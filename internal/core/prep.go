// Package core implements the lake ice breakup analysis: band preparation,
// ice/water/cloud classification, the logistic temporal filter, and detection
// of the ice-water-water transition sequence, plus the task processor that
// runs it off the job queue.
package core

import (
	"fmt"
	"time"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/raster"
)

// Stored band names per product, in the order of the standard names below.
var productBands = map[catalog.Product][]string{
	catalog.Landsat7TOA:  {"B1", "B2", "B3", "B4", "B5", "B7"},
	catalog.Landsat8TOA:  {"B2", "B3", "B4", "B5", "B6", "B7"},
	catalog.Sentinel2TOA: {"B2", "B3", "B4", "B8", "B11", "B12"},
}

var standardBands = []string{"blue", "green", "red", "nir", "swir1", "swir2"}

const (
	// Digital numbers span 0-10000 across the archive; reflectance is DN/10000.
	reflectanceScale = 10000

	// Landsat 7 SLC-off gap fill: focal mean over a circular kernel.
	gapFillRadius     = 2
	gapFillIterations = 8
)

// Observation is one classified scene on the tile grid: ice presence (1),
// open water (0), masked where unusable (clouds, nodata, off-lake).
type Observation struct {
	SceneId  string
	Product  catalog.Product
	Time     time.Time
	Doy      int
	FracYear float64
	Dummy    bool
	Ice      *raster.Image
}

// scaleReflectance converts digital numbers to reflectance, masking values
// outside the valid range.
func scaleReflectance(img *raster.Image) *raster.Image {
	out := raster.New(img.W, img.H)
	for i := 0; i < img.Len(); i++ {
		if !img.Valid[i] {
			continue
		}
		v := img.Pix[i]
		if v < 0 || v > reflectanceScale {
			continue
		}
		out.Pix[i] = v / reflectanceScale
		out.Valid[i] = true
	}
	return out
}

// completeMask returns a 0/1 image that is 1 only where every band is valid.
func completeMask(bands map[string]*raster.Image) *raster.Image {
	var mask *raster.Image
	for _, img := range bands {
		if mask == nil {
			mask = raster.NewConst(img.W, img.H, 1)
		}
		for i := 0; i < img.Len(); i++ {
			if !img.Valid[i] {
				mask.Pix[i] = 0
			}
		}
	}
	return mask
}

// PrepBands turns a scene's raw digital-number bands into analysis-ready
// reflectance under the standard names, and adds the NDSI band. Pixels with
// out-of-range values or incomplete band coverage are masked; Landsat 7
// additionally gets its SLC-off gaps filled by an iterated focal mean.
func PrepBands(product catalog.Product, raw map[string]*raster.Image) (map[string]*raster.Image, error) {
	stored, ok := productBands[product]
	if !ok {
		return nil, fmt.Errorf("unknown product %q", product)
	}

	bands := make(map[string]*raster.Image, len(standardBands)+1)
	for i, name := range stored {
		img, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("product %s scene missing band %s", product, name)
		}
		bands[standardBands[i]] = scaleReflectance(img)
	}

	// A pixel is only usable when every band has data.
	mask := completeMask(bands)
	for name, img := range bands {
		bands[name] = img.UpdateMask(mask)
	}

	if product == catalog.Landsat7TOA {
		for name, img := range bands {
			bands[name] = raster.FocalFill(img, gapFillRadius, gapFillIterations)
		}
	}

	ndsi := raster.NormalizedDifference(bands["green"], bands["swir1"])
	bands["ndsi"] = raster.UnitScale(ndsi, -1, 1)

	return bands, nil
}
