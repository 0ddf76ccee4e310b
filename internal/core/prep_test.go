package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/raster"
)

// l8Raw builds a full set of Landsat 8 bands with every pixel set to the
// given digital numbers.
func l8Raw(w, h int, dns map[string]float64) map[string]*raster.Image {
	raw := make(map[string]*raster.Image)
	for _, name := range productBands[catalog.Landsat8TOA] {
		dn, ok := dns[name]
		if !ok {
			dn = 1000
		}
		raw[name] = raster.NewConst(w, h, dn)
	}
	return raw
}

func TestPrepBands_ScalesToReflectance(t *testing.T) {
	raw := l8Raw(2, 1, map[string]float64{"B2": 2000, "B3": 9000, "B6": 1500})

	bands, err := PrepBands(catalog.Landsat8TOA, raw)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, bands["blue"].At(0, 0), 1e-9)
	assert.InDelta(t, 0.9, bands["green"].At(0, 0), 1e-9)
	assert.InDelta(t, 0.15, bands["swir1"].At(0, 0), 1e-9)

	// ndsi = unit-scaled normalized difference of green and swir1
	nd := (0.9 - 0.15) / (0.9 + 0.15)
	assert.InDelta(t, (nd+1)/2, bands["ndsi"].At(0, 0), 1e-9)
}

func TestPrepBands_MasksOutOfRangeValues(t *testing.T) {
	raw := l8Raw(2, 1, nil)
	raw["B4"].Set(1, 0, 12000) // above the valid DN range

	bands, err := PrepBands(catalog.Landsat8TOA, raw)
	require.NoError(t, err)

	// An invalid value in one band masks the pixel in every band.
	for _, name := range standardBands {
		assert.True(t, bands[name].IsValid(0, 0), "band %s pixel 0", name)
		assert.False(t, bands[name].IsValid(1, 0), "band %s pixel 1", name)
	}
}

func TestPrepBands_L7GapFill(t *testing.T) {
	raw := make(map[string]*raster.Image)
	for _, name := range productBands[catalog.Landsat7TOA] {
		img := raster.NewConst(5, 5, 4000)
		img.Mask(2, 2) // an SLC-off gap
		raw[name] = img
	}

	bands, err := PrepBands(catalog.Landsat7TOA, raw)
	require.NoError(t, err)

	require.True(t, bands["blue"].IsValid(2, 2))
	assert.InDelta(t, 0.4, bands["blue"].At(2, 2), 1e-9)
}

func TestPrepBands_L8KeepsGaps(t *testing.T) {
	raw := l8Raw(5, 5, nil)
	raw["B2"].Mask(2, 2)

	bands, err := PrepBands(catalog.Landsat8TOA, raw)
	require.NoError(t, err)

	assert.False(t, bands["blue"].IsValid(2, 2))
}

func TestPrepBands_MissingBand(t *testing.T) {
	raw := l8Raw(2, 1, nil)
	delete(raw, "B7")

	_, err := PrepBands(catalog.Landsat8TOA, raw)
	assert.ErrorContains(t, err, "missing band B7")
}

func TestPrepBands_UnknownProduct(t *testing.T) {
	_, err := PrepBands(catalog.Product("modis"), nil)
	assert.Error(t, err)
}
