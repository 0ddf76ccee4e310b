package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xgirouxb/open-ice/internal/core/result"
	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/raster"
	"github.com/xgirouxb/open-ice/internal/storage"
)

func testResult() *result.Result {
	date := raster.New(3, 2)
	date.Set(0, 0, 152)
	date.Set(1, 0, 160)

	gap := raster.New(3, 2)
	gap.Set(0, 0, 61)
	gap.Set(1, 0, 30)

	r2 := raster.New(3, 2)
	r2.Set(0, 0, 94)
	r2.Set(1, 0, 88)

	n := raster.New(3, 2)
	n.Set(0, 0, 5)
	n.Set(1, 0, 7)

	return &result.Result{
		Grid:        geo.Grid{OriginX: 10.0, OriginY: 50.2, Cell: 0.1, W: 3, H: 2},
		Year:        2019,
		BreakupDate: date,
		BreakupGap:  gap,
		R2:          r2,
		NPixels:     n,
		SceneCount:  5,
	}
}

func TestWriteFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "breakup.nc")
	require.NoError(t, WriteFile(fname, 500, testResult()))

	nc, err := netcdf.Open(fname)
	require.NoError(t, err)
	defer nc.Close()

	dateVar, err := nc.GetVariable(VarBreakupDate)
	require.NoError(t, err)
	values, ok := dateVar.Values.([][]int32)
	require.True(t, ok, "breakup_date should be a 2D int32 variable")
	require.Len(t, values, 2)
	require.Len(t, values[0], 3)

	assert.Equal(t, int32(152), values[0][0])
	assert.Equal(t, int32(160), values[0][1])
	assert.Equal(t, FillValue, values[0][2])
	assert.Equal(t, FillValue, values[1][0])
	assert.Equal(t, []string{"lat", "lon"}, dateVar.Dimensions)

	fill, has := dateVar.Attributes.Get("_FillValue")
	require.True(t, has)
	assert.Equal(t, FillValue, fill)
}

func TestWriteFile_CoordinatesAndAttrs(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "breakup.nc")
	require.NoError(t, WriteFile(fname, 500, testResult()))

	nc, err := netcdf.Open(fname)
	require.NoError(t, err)
	defer nc.Close()

	latVar, err := nc.GetVariable("lat")
	require.NoError(t, err)
	lat, ok := latVar.Values.([]float64)
	require.True(t, ok)
	require.Len(t, lat, 2)
	assert.InDelta(t, 50.15, lat[0], 1e-9)
	assert.InDelta(t, 50.05, lat[1], 1e-9)

	lonVar, err := nc.GetVariable("lon")
	require.NoError(t, err)
	lon, ok := lonVar.Values.([]float64)
	require.True(t, ok)
	require.Len(t, lon, 3)
	assert.InDelta(t, 10.05, lon[0], 1e-9)

	attrs := nc.Attributes()
	year, has := attrs.Get("year")
	require.True(t, has)
	assert.Equal(t, int32(2019), year)
	lakeId, has := attrs.Get("lake_id")
	require.True(t, has)
	assert.Equal(t, int32(500), lakeId)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(ctx, "results"))

	require.NoError(t, Upload(ctx, store, "results", "runs/test.nc", 500, testResult()))

	data, err := store.GetObject(ctx, "results", "runs/test.nc")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	// NetCDF classic magic number.
	assert.Equal(t, []byte("CDF"), data[:3])
}
