// Package export serializes breakup results to NetCDF and stores the
// artifact in the results bucket.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/xgirouxb/open-ice/internal/core/result"
	"github.com/xgirouxb/open-ice/internal/raster"
	"github.com/xgirouxb/open-ice/internal/storage"
)

// FillValue marks masked pixels in the exported integer bands.
const FillValue = int32(-1)

// Band names in the artifact.
const (
	VarBreakupDate = "breakup_date"
	VarBreakupGap  = "breakup_gap"
	VarR2          = "r2"
	VarNPixels     = "n_pixels"
)

// WriteFile writes a result as a NetCDF (classic format) file.
func WriteFile(fname string, lakeId int64, res *result.Result) error {
	cw, err := cdf.OpenWriter(fname)
	if err != nil {
		return fmt.Errorf("failed to open netcdf writer: %w", err)
	}

	if err := addGlobalAttrs(cw, lakeId, res); err != nil {
		cw.Close()
		return err
	}
	if err := addCoordVars(cw, res); err != nil {
		cw.Close()
		return err
	}

	bands := []struct {
		name  string
		img   *raster.Image
		units string
		desc  string
	}{
		{VarBreakupDate, res.BreakupDate, "day of year", "day the pixel transitioned from ice to open water"},
		{VarBreakupGap, res.BreakupGap, "days", "days between last observed ice and first observed water"},
		{VarR2, res.R2, "percent", "r-squared of the logistic temporal filter"},
		{VarNPixels, res.NPixels, "count", "ice and water observations used"},
	}
	for _, b := range bands {
		if err := addBand(cw, b.name, b.img, b.units, b.desc); err != nil {
			cw.Close()
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to finalize netcdf file: %w", err)
	}
	return nil
}

// Upload writes a result to a temporary NetCDF file and stores it under the
// given bucket and key.
func Upload(ctx context.Context, store storage.ObjectStore, bucket, key string, lakeId int64, res *result.Result) error {
	tmp, err := os.MkdirTemp("", "openice-export-*")
	if err != nil {
		return fmt.Errorf("failed to create export scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	fname := filepath.Join(tmp, "breakup.nc")
	if err := WriteFile(fname, lakeId, res); err != nil {
		return err
	}

	data, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("failed to read back export file: %w", err)
	}
	if err := storage.PutBytes(ctx, store, bucket, key, data); err != nil {
		return fmt.Errorf("failed to upload export to %s/%s: %w", bucket, key, err)
	}
	return nil
}

func addGlobalAttrs(cw *cdf.CDFWriter, lakeId int64, res *result.Result) error {
	attrs, err := util.NewOrderedMap(
		[]string{"title", "lake_id", "year", "cell_size_deg"},
		map[string]interface{}{
			"title":         "Lake ice spring breakup",
			"lake_id":       int32(lakeId),
			"year":          int32(res.Year),
			"cell_size_deg": res.Grid.Cell,
		})
	if err != nil {
		return fmt.Errorf("failed to build global attributes: %w", err)
	}
	cw.AddGlobalAttrs(attrs)
	return nil
}

func addCoordVars(cw *cdf.CDFWriter, res *result.Result) error {
	lat := make([]float64, res.Grid.H)
	for y := range lat {
		lat[y] = res.Grid.CellCenter(0, y)[1]
	}
	lon := make([]float64, res.Grid.W)
	for x := range lon {
		lon[x] = res.Grid.CellCenter(x, 0)[0]
	}

	latAttrs, err := util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": "degrees_north"})
	if err != nil {
		return err
	}
	if err := cw.AddVar("lat", api.Variable{
		Values:     lat,
		Dimensions: []string{"lat"},
		Attributes: latAttrs,
	}); err != nil {
		return fmt.Errorf("failed to add lat variable: %w", err)
	}

	lonAttrs, err := util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": "degrees_east"})
	if err != nil {
		return err
	}
	if err := cw.AddVar("lon", api.Variable{
		Values:     lon,
		Dimensions: []string{"lon"},
		Attributes: lonAttrs,
	}); err != nil {
		return fmt.Errorf("failed to add lon variable: %w", err)
	}
	return nil
}

func addBand(cw *cdf.CDFWriter, name string, img *raster.Image, units, desc string) error {
	values := make([][]int32, img.H)
	for y := 0; y < img.H; y++ {
		row := make([]int32, img.W)
		for x := 0; x < img.W; x++ {
			if img.IsValid(x, y) {
				row[x] = int32(img.At(x, y))
			} else {
				row[x] = FillValue
			}
		}
		values[y] = row
	}

	attrs, err := util.NewOrderedMap(
		[]string{"units", "long_name", "_FillValue"},
		map[string]interface{}{
			"units":      units,
			"long_name":  desc,
			"_FillValue": FillValue,
		})
	if err != nil {
		return fmt.Errorf("failed to build attributes for %s: %w", name, err)
	}

	if err := cw.AddVar(name, api.Variable{
		Values:     values,
		Dimensions: []string{"lat", "lon"},
		Attributes: attrs,
	}); err != nil {
		return fmt.Errorf("failed to add %s variable: %w", name, err)
	}
	return nil
}
