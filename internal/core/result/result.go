// Package result holds the breakup analysis result type shared between
// the core detection pipeline and the export package.
package result

import (
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/raster"
)

// Result is the per-pixel breakup analysis for one tile and season.
type Result struct {
	Grid geo.Grid
	Year int

	// BreakupDate is the day of year the pixel transitioned from ice to
	// water; BreakupGap the days between the last ice and first water
	// observations. R2 is the logistic fit's R-squared as a rounded
	// percentage, NPixels the number of ice/water observations that survived
	// filtering. All masked outside the analyzed water surface.
	BreakupDate *raster.Image
	BreakupGap  *raster.Image
	R2          *raster.Image
	NPixels     *raster.Image

	SceneCount int
}
