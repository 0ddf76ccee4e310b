// Package catalog indexes the per-tile scene archive held in an object
// store. Each tile (one HydroLAKES lake) has a prefix holding co-registered
// scenes: a metadata document plus one 16-bit grayscale GeoTIFF per spectral
// band, all on the tile grid. Filtering mirrors the collection queries the
// analysis runs: acquisition window, cloud cover ceiling, footprint bounds,
// and Sentinel-2 duplicate removal.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/xgirouxb/open-ice/internal/geo"
	"github.com/xgirouxb/open-ice/internal/raster"
	"github.com/xgirouxb/open-ice/internal/storage"
)

type Product string

const (
	Landsat7TOA  Product = "l7toa"
	Landsat8TOA  Product = "l8toa"
	Sentinel2TOA Product = "s2toa"
)

// Scene is the metadata document stored beside a scene's band rasters.
type Scene struct {
	Id             string            `json:"id"`
	Product        Product           `json:"product"`
	Acquired       time.Time         `json:"acquired"`
	CloudCover     float64           `json:"cloud_cover"`
	MGRSTile       string            `json:"mgrs_tile,omitempty"`
	GenerationTime int64             `json:"generation_time,omitempty"`
	Footprint      *geojson.Geometry `json:"footprint,omitempty"`
	Bands          []string          `json:"bands"`
}

// Doy returns the one-based day of year of the acquisition.
func (s *Scene) Doy() int {
	return s.Acquired.YearDay()
}

// FracYear returns the acquisition time as fractional years since 1970,
// offset back to the calendar year, the time axis of the logistic fit.
func (s *Scene) FracYear() float64 {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	const secondsPerYear = 365.25 * 24 * 3600
	return 1970 + s.Acquired.Sub(epoch).Seconds()/secondsPerYear
}

type Catalog struct {
	store  storage.ObjectStore
	bucket string
}

func New(store storage.ObjectStore, bucket string) *Catalog {
	return &Catalog{store: store, bucket: bucket}
}

func tilePrefix(lakeId int64) string {
	return fmt.Sprintf("tiles/%d", lakeId)
}

func sceneKey(lakeId int64, sceneId, name string) string {
	return path.Join(tilePrefix(lakeId), "scenes", sceneId, name)
}

// Scenes loads every scene metadata document under a tile.
func (c *Catalog) Scenes(ctx context.Context, lakeId int64) ([]Scene, error) {
	prefix := path.Join(tilePrefix(lakeId), "scenes") + "/"
	objects, err := c.store.ListObjects(ctx, c.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes for tile %d: %w", lakeId, err)
	}

	var scenes []Scene
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Name, "/metadata.json") {
			continue
		}
		data, err := c.store.GetObject(ctx, c.bucket, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read scene metadata %s: %w", obj.Name, err)
		}
		var scene Scene
		if err := json.Unmarshal(data, &scene); err != nil {
			return nil, fmt.Errorf("failed to parse scene metadata %s: %w", obj.Name, err)
		}
		scenes = append(scenes, scene)
	}

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Acquired.Before(scenes[j].Acquired) })
	return scenes, nil
}

// Query restricts a scene list the way the analysis filters collections.
type Query struct {
	Product  Product
	Start    time.Time // inclusive
	End      time.Time // exclusive
	MaxCloud float64   // keep scenes with CloudCover strictly below
	Bounds   orb.Bound // keep scenes whose footprint intersects; zero bound keeps all
}

func Filter(scenes []Scene, q Query) []Scene {
	var out []Scene
	for _, s := range scenes {
		if q.Product != "" && s.Product != q.Product {
			continue
		}
		if !q.Start.IsZero() && s.Acquired.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && !s.Acquired.Before(q.End) {
			continue
		}
		if s.CloudCover >= q.MaxCloud {
			continue
		}
		if !q.Bounds.IsZero() && s.Footprint != nil {
			if !q.Bounds.Intersects(s.Footprint.Geometry().Bound()) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// DropS2Duplicates removes Sentinel-2 scenes that share an acquisition time
// and MGRS tile, keeping the most recently generated one.
func DropS2Duplicates(scenes []Scene) []Scene {
	type dupKey struct {
		t    int64
		tile string
	}
	best := make(map[dupKey]Scene)
	var order []dupKey
	for _, s := range scenes {
		k := dupKey{t: s.Acquired.UnixMilli(), tile: s.MGRSTile}
		prev, seen := best[k]
		if !seen {
			order = append(order, k)
			best[k] = s
			continue
		}
		if s.GenerationTime > prev.GenerationTime {
			best[k] = s
		}
	}
	out := make([]Scene, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// LoadBand reads one band raster of a scene. Values are raw digital numbers;
// scaling to reflectance is the prep step's concern.
func (c *Catalog) LoadBand(ctx context.Context, lakeId int64, scene *Scene, band string) (*raster.Image, error) {
	key := sceneKey(lakeId, scene.Id, band+".tif")
	data, err := c.store.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read band %s of scene %s: %w", band, scene.Id, err)
	}
	img, err := DecodeBand(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode band %s of scene %s: %w", band, scene.Id, err)
	}
	return img, nil
}

// LoadOccurrence reads the tile's surface-water occurrence raster (percent,
// the JRC Global Surface Water layer gridded to the tile).
func (c *Catalog) LoadOccurrence(ctx context.Context, lakeId int64) (*raster.Image, error) {
	key := path.Join(tilePrefix(lakeId), "occurrence.tif")
	data, err := c.store.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read occurrence layer for tile %d: %w", lakeId, err)
	}
	img, err := DecodeBand(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode occurrence layer for tile %d: %w", lakeId, err)
	}
	return img, nil
}

// LoadGrid reads the tile's grid definition, which every raster under the
// tile prefix is aligned to.
func (c *Catalog) LoadGrid(ctx context.Context, lakeId int64) (*geo.Grid, error) {
	key := path.Join(tilePrefix(lakeId), "grid.json")
	data, err := c.store.GetObject(ctx, c.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid for tile %d: %w", lakeId, err)
	}
	var grid geo.Grid
	if err := json.Unmarshal(data, &grid); err != nil {
		return nil, fmt.Errorf("failed to parse grid for tile %d: %w", lakeId, err)
	}
	return &grid, nil
}

// PutGrid writes the tile's grid definition.
func (c *Catalog) PutGrid(ctx context.Context, lakeId int64, grid *geo.Grid) error {
	data, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("failed to marshal grid: %w", err)
	}
	return storage.PutBytes(ctx, c.store, c.bucket, path.Join(tilePrefix(lakeId), "grid.json"), data)
}

// PutScene writes a scene's metadata and band rasters, the layout the worker
// reads back. Used by ingest tooling and tests.
func (c *Catalog) PutScene(ctx context.Context, lakeId int64, scene *Scene, bands map[string]*raster.Image) error {
	meta, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to marshal scene metadata: %w", err)
	}
	if err := storage.PutBytes(ctx, c.store, c.bucket, sceneKey(lakeId, scene.Id, "metadata.json"), meta); err != nil {
		return err
	}
	for name, img := range bands {
		data, err := EncodeBand(img)
		if err != nil {
			return fmt.Errorf("failed to encode band %s: %w", name, err)
		}
		if err := storage.PutBytes(ctx, c.store, c.bucket, sceneKey(lakeId, scene.Id, name+".tif"), data); err != nil {
			return err
		}
	}
	return nil
}

// PutOccurrence writes the tile's water occurrence raster.
func (c *Catalog) PutOccurrence(ctx context.Context, lakeId int64, img *raster.Image) error {
	data, err := EncodeBand(img)
	if err != nil {
		return fmt.Errorf("failed to encode occurrence layer: %w", err)
	}
	return storage.PutBytes(ctx, c.store, c.bucket, path.Join(tilePrefix(lakeId), "occurrence.tif"), data)
}
