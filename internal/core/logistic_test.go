package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgirouxb/open-ice/internal/raster"
)

// seriesObs builds a single-band observation stack over a w x h grid where
// every pixel of observation k holds classes[k] (-1 for masked).
func seriesObs(t *testing.T, w, h, year int, days []int, classes [][]float64) []*Observation {
	t.Helper()
	require.Equal(t, len(days), len(classes))

	obs := make([]*Observation, len(days))
	for k, day := range days {
		ts := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-1)
		img := raster.New(w, h)
		for i, class := range classes[k] {
			if class >= 0 {
				img.Set(i%w, i/w, class)
			}
		}
		obs[k] = &Observation{
			SceneId:  fmt.Sprintf("obs-%d", k),
			Time:     ts,
			Doy:      ts.YearDay(),
			FracYear: fracYear(ts),
			Ice:      img,
		}
	}
	return obs
}

func TestApplyLogisticFilter_MasksWinterWater(t *testing.T) {
	// Nine ice observations with a lone mid-winter water: the misfit
	// observation should be masked, everything else kept.
	days := []int{50, 60, 70, 80, 90, 100, 110, 120, 130, 140}
	classes := make([][]float64, len(days))
	for k := range classes {
		classes[k] = []float64{1}
	}
	classes[4][0] = 0 // the outlier

	obs := seriesObs(t, 1, 1, 2019, days, classes)
	r2 := ApplyLogisticFilter(obs)

	assert.False(t, obs[4].Ice.IsValid(0, 0), "outlier should be masked")
	for k := range obs {
		if k == 4 {
			continue
		}
		assert.True(t, obs[k].Ice.IsValid(0, 0), "observation %d should survive", k)
	}

	require.True(t, r2.IsValid(0, 0))
	assert.GreaterOrEqual(t, r2.At(0, 0), 0.0)
	assert.LessOrEqual(t, r2.At(0, 0), 1.0)
}

func TestApplyLogisticFilter_KeepsCleanTransition(t *testing.T) {
	// A clean ice-to-water season should survive the filter untouched.
	days := []int{60, 90, 150, 180, 210}
	classes := [][]float64{{1}, {1}, {0}, {0}, {0}}

	obs := seriesObs(t, 1, 1, 2019, days, classes)
	r2 := ApplyLogisticFilter(obs)

	for k := range obs {
		assert.True(t, obs[k].Ice.IsValid(0, 0), "observation %d should survive", k)
	}
	require.True(t, r2.IsValid(0, 0))
	assert.Greater(t, r2.At(0, 0), 0.5, "steep transition should fit well")
}

func TestApplyLogisticFilter_TooFewObservations(t *testing.T) {
	days := []int{60, 200}
	classes := [][]float64{{1}, {0}}

	obs := seriesObs(t, 1, 1, 2019, days, classes)
	r2 := ApplyLogisticFilter(obs)

	// Not enough points to fit: observations pass through, R2 stays masked.
	assert.True(t, obs[0].Ice.IsValid(0, 0))
	assert.True(t, obs[1].Ice.IsValid(0, 0))
	assert.False(t, r2.IsValid(0, 0))
}

func TestApplyLogisticFilter_AllSameClass(t *testing.T) {
	days := []int{60, 90, 120, 150}
	classes := [][]float64{{1}, {1}, {1}, {1}}

	obs := seriesObs(t, 1, 1, 2019, days, classes)
	r2 := ApplyLogisticFilter(obs)

	for k := range obs {
		assert.True(t, obs[k].Ice.IsValid(0, 0))
	}
	// No variance in the response: R2 defined as zero.
	require.True(t, r2.IsValid(0, 0))
	assert.Equal(t, 0.0, r2.At(0, 0))
}

func TestCountObservations(t *testing.T) {
	days := []int{60, 90, 120}
	classes := [][]float64{
		{1, 1},
		{1, -1},
		{0, -1},
	}

	obs := seriesObs(t, 2, 1, 2019, days, classes)
	counts := CountObservations(obs, 2, 1)

	assert.Equal(t, 3.0, counts.At(0, 0))
	assert.Equal(t, 1.0, counts.At(1, 0))
}
