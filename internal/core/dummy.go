package core

import (
	"fmt"
	"math"
	"time"

	"github.com/xgirouxb/open-ice/internal/raster"
)

// DummyWaterObservations synthesizes open-water observations in the month
// before the season ends, one for every ten real observations, so the
// logistic fit descends to zero even when a pixel's record is dominated by
// bad late-season classifications. The synthetic images are all water,
// restricted to the given mask, and flagged so they can be dropped once the
// fit has been applied.
func DummyWaterObservations(nReal int, year int, mask *raster.Image) []*Observation {
	n := int(math.Round(float64(nReal) / 10))
	if n <= 0 {
		return nil
	}

	start := time.Date(year, 9, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 10, 1, 0, 0, 0, 0, time.UTC)

	obs := make([]*Observation, 0, n)
	for k := 0; k < n; k++ {
		ts := start
		if n > 1 {
			ts = start.Add(time.Duration(float64(end.Sub(start)) * float64(k) / float64(n-1)))
		}

		water := raster.NewConst(mask.W, mask.H, 0).UpdateMask(mask)
		obs = append(obs, &Observation{
			SceneId:  fmt.Sprintf("dummy-water-%d", k),
			Time:     ts,
			Doy:      ts.YearDay(),
			FracYear: fracYear(ts),
			Dummy:    true,
			Ice:      water,
		})
	}
	return obs
}

// fracYear converts a timestamp to fractional years since 1970, offset back
// to the calendar year.
func fracYear(t time.Time) float64 {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	const secondsPerYear = 365.25 * 24 * 3600
	return 1970 + t.Sub(epoch).Seconds()/secondsPerYear
}
