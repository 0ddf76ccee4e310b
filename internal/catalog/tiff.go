package catalog

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/tiff"

	"github.com/xgirouxb/open-ice/internal/raster"
)

// Band rasters are stored as 16-bit grayscale TIFFs. The full uint16 value
// is the digital number, with 65535 reserved as the nodata sentinel.
const noDataValue = 65535

// DecodeBand reads a stored band raster. Nodata pixels come back masked;
// everything else keeps its raw digital number.
func DecodeBand(data []byte) (*raster.Image, error) {
	src, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tiff: %w", err)
	}

	gray, ok := src.(*image.Gray16)
	if !ok {
		return nil, fmt.Errorf("unexpected tiff pixel format %T, want 16-bit grayscale", src)
	}

	bounds := gray.Bounds()
	img := raster.New(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := gray.Gray16At(x, y).Y
			if v == noDataValue {
				continue
			}
			img.Set(x-bounds.Min.X, y-bounds.Min.Y, float64(v))
		}
	}
	return img, nil
}

// EncodeBand writes a raster as a 16-bit grayscale TIFF. Values are rounded
// to the nearest digital number; masked pixels become nodata.
func EncodeBand(img *raster.Image) ([]byte, error) {
	gray := image.NewGray16(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			v := uint16(noDataValue)
			if img.IsValid(x, y) {
				dn := math.Round(img.At(x, y))
				if dn < 0 || dn >= noDataValue {
					return nil, fmt.Errorf("value %v at (%d,%d) outside uint16 digital number range", img.At(x, y), x, y)
				}
				v = uint16(dn)
			}
			gray.SetGray16(x, y, color.Gray16{Y: v})
		}
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, gray, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return nil, fmt.Errorf("failed to encode tiff: %w", err)
	}
	return buf.Bytes(), nil
}
