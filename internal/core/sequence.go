package core

import (
	"github.com/xgirouxb/open-ice/internal/raster"
)

// BreakupResult holds the per-pixel transition outputs. BreakupDate is the
// day of year of the first open-water observation in a detected
// ice-water-water sequence; BreakupGap is the days elapsed between the last
// observed ice and that first water observation. Both are masked where no
// sequence was detected or where the first observation of the season was not
// ice.
type BreakupResult struct {
	BreakupDate *raster.Image
	BreakupGap  *raster.Image
}

// DetectBreakup walks each pixel's chronological ice/water series and flags
// the first ice-water-water sequence. The lag state starts as all ice on the
// season start day, so a transition right at the first observations can be
// detected; once a sequence is flagged the pixel's state freezes.
func DetectBreakup(obs []*Observation, startDoy, w, h int) *BreakupResult {
	res := &BreakupResult{
		BreakupDate: raster.New(w, h),
		BreakupGap:  raster.New(w, h),
	}

	for i := 0; i < w*h; i++ {
		lag0c, lag0t := 1.0, float64(startDoy)
		lag1c, lag1t := lag0c, lag0t
		lag2c, lag2t := lag0c, lag0t
		detected := false
		firstClass := -1

		for _, o := range obs {
			if !o.Ice.Valid[i] {
				continue
			}
			if firstClass < 0 {
				firstClass = int(o.Ice.Pix[i])
			}
			if detected {
				continue
			}
			lag2c, lag2t = lag1c, lag1t
			lag1c, lag1t = lag0c, lag0t
			lag0c, lag0t = o.Ice.Pix[i], float64(o.Doy)
			detected = lag0c == 0 && lag1c == 0 && lag2c == 1
		}

		// The season must open with ice; a first observation of water means
		// breakup happened before the record starts.
		if detected && firstClass == 1 {
			res.BreakupDate.Set(i%w, i/w, lag1t)
			res.BreakupGap.Set(i%w, i/w, lag1t-lag2t)
		}
	}
	return res
}
