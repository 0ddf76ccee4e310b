package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgirouxb/open-ice/internal/catalog"
	"github.com/xgirouxb/open-ice/internal/raster"
)

func TestParseRpartTree_L7(t *testing.T) {
	tree, err := parseRpartTree(treeTextL7TOA)
	require.NoError(t, err)

	cases := []struct {
		blue, swir2 float64
		want        int
	}{
		{blue: 0.10, swir2: 0.05, want: classWater},
		{blue: 0.20, swir2: 0.05, want: classIce},
		{blue: 0.20, swir2: 0.10, want: classCloud},
		{blue: 0.05, swir2: 0.10, want: classCloud},
	}
	for _, c := range cases {
		got, err := tree.classify(map[string]float64{"blue": c.blue, "swir2": c.swir2})
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "blue=%v swir2=%v", c.blue, c.swir2)
	}
}

func TestParseRpartTree_L8(t *testing.T) {
	tree, err := parseRpartTree(treeTextL8TOA)
	require.NoError(t, err)

	cases := []struct {
		blue, ndsi float64
		want       int
	}{
		{blue: 0.05, ndsi: 0.2, want: classWater},
		{blue: 0.20, ndsi: 0.9, want: classIce},
		{blue: 0.20, ndsi: 0.5, want: classCloud},
		// thresholds are strict
		{blue: 0.1435298, ndsi: 0.848531, want: classIce},
	}
	for _, c := range cases {
		got, err := tree.classify(map[string]float64{"blue": c.blue, "ndsi": c.ndsi})
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "blue=%v ndsi=%v", c.blue, c.ndsi)
	}
}

func TestParseRpartTree_Invalid(t *testing.T) {
	_, err := parseRpartTree("not a tree")
	assert.Error(t, err)
}

func TestClassifyIce_CloudBuffer(t *testing.T) {
	// One cloud pixel at the start of a row of ice: everything within the
	// buffer distance of it should be masked.
	w := 20
	blue := raster.NewConst(w, 1, 0.2)
	ndsi := raster.NewConst(w, 1, 0.9)
	ndsi.Set(0, 0, 0.5) // cloud per the L8 tree

	ice, err := ClassifyIce(catalog.Landsat8TOA, map[string]*raster.Image{"blue": blue, "ndsi": ndsi})
	require.NoError(t, err)

	for x := 0; x <= 5; x++ {
		assert.False(t, ice.IsValid(x, 0), "pixel %d inside cloud buffer", x)
	}
	for x := 6; x < w; x++ {
		require.True(t, ice.IsValid(x, 0), "pixel %d outside cloud buffer", x)
		assert.Equal(t, 1.0, ice.At(x, 0))
	}
}

func TestClassifyIce_WaterAndMask(t *testing.T) {
	blue := raster.NewConst(3, 1, 0.05)
	ndsi := raster.NewConst(3, 1, 0.2)
	blue.Mask(2, 0)

	ice, err := ClassifyIce(catalog.Landsat8TOA, map[string]*raster.Image{"blue": blue, "ndsi": ndsi})
	require.NoError(t, err)

	assert.Equal(t, 0.0, ice.At(0, 0))
	assert.Equal(t, 0.0, ice.At(1, 0))
	assert.False(t, ice.IsValid(2, 0))
}

func TestClassifyIce_MissingBand(t *testing.T) {
	blue := raster.NewConst(2, 1, 0.05)
	_, err := ClassifyIce(catalog.Landsat8TOA, map[string]*raster.Image{"blue": blue})
	assert.ErrorContains(t, err, "needs band ndsi")
}
