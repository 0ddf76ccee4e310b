package raster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedDifference(t *testing.T) {
	green := NewConst(2, 2, 0.6)
	swir := NewConst(2, 2, 0.2)
	swir.Mask(1, 1)

	nd := NormalizedDifference(green, swir)

	assert.InDelta(t, 0.5, nd.At(0, 0), 1e-9)
	assert.True(t, nd.IsValid(0, 0))
	assert.False(t, nd.IsValid(1, 1), "masked input should mask output")
}

func TestNormalizedDifferenceZeroDenominator(t *testing.T) {
	a := NewConst(1, 1, 0.0)
	b := NewConst(1, 1, 0.0)

	nd := NormalizedDifference(a, b)
	assert.False(t, nd.IsValid(0, 0))
}

func TestUnitScaleClamps(t *testing.T) {
	img := New(3, 1)
	img.Set(0, 0, -500)
	img.Set(1, 0, 5000)
	img.Set(2, 0, 20000)

	scaled := UnitScale(img, 0, 10000)

	assert.Equal(t, 0.0, scaled.At(0, 0))
	assert.InDelta(t, 0.5, scaled.At(1, 0), 1e-9)
	assert.Equal(t, 1.0, scaled.At(2, 0))
}

func TestUpdateMask(t *testing.T) {
	img := NewConst(2, 1, 7)
	mask := New(2, 1)
	mask.Set(0, 0, 1)
	mask.Set(1, 0, 0)

	img.UpdateMask(mask)

	assert.True(t, img.IsValid(0, 0))
	assert.False(t, img.IsValid(1, 0), "zero mask value should mask pixel")
}

func TestFocalFill(t *testing.T) {
	img := NewConst(5, 5, 0.4)
	img.Mask(2, 2)

	filled := FocalFill(img, 2, 1)

	require.True(t, filled.IsValid(2, 2))
	assert.InDelta(t, 0.4, filled.At(2, 2), 1e-9)
	// untouched pixels keep their values
	assert.Equal(t, 0.4, filled.At(0, 0))
}

func TestFocalFillNoNeighbours(t *testing.T) {
	img := New(3, 3)
	filled := FocalFill(img, 2, 8)
	assert.False(t, filled.IsValid(1, 1), "nothing to fill from")
}

func TestDistanceTransform(t *testing.T) {
	src := New(7, 7)
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			src.Set(x, y, 0)
		}
	}
	src.Set(3, 3, 1)

	d := DistanceTransform(src)

	assert.Equal(t, 0.0, d.At(3, 3))
	assert.Equal(t, 1.0, d.At(4, 3))
	assert.Equal(t, 2.0, d.At(4, 4))
	assert.Equal(t, 18.0, d.At(0, 0))
}

func TestDistanceTransformNoSources(t *testing.T) {
	src := NewConst(4, 4, 0)
	d := DistanceTransform(src)
	assert.True(t, math.IsInf(d.At(0, 0), 1))
	assert.True(t, math.IsInf(d.At(3, 3), 1))
}

func TestDistanceTransformTwoSources(t *testing.T) {
	src := NewConst(9, 1, 0)
	src.Set(0, 0, 1)
	src.Set(8, 0, 1)

	d := DistanceTransform(src)
	assert.Equal(t, 16.0, d.At(4, 0))
	assert.Equal(t, 4.0, d.At(2, 0))
	assert.Equal(t, 1.0, d.At(7, 0))
}
