// Package raster provides the gridded image primitives used by the breakup
// detection pipeline. An Image is a single band of float64 samples with a
// per-pixel validity mask, stored row-major. All operations are mask-aware:
// an invalid pixel stays invalid unless an operation explicitly fills it.
package raster

import "math"

type Image struct {
	W, H  int
	Pix   []float64
	Valid []bool
}

// New returns a fully masked image.
func New(w, h int) *Image {
	return &Image{
		W:     w,
		H:     h,
		Pix:   make([]float64, w*h),
		Valid: make([]bool, w*h),
	}
}

// NewConst returns an image with every pixel valid and set to v.
func NewConst(w, h int, v float64) *Image {
	img := New(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
		img.Valid[i] = true
	}
	return img
}

func (img *Image) Len() int { return img.W * img.H }

func (img *Image) At(x, y int) float64 { return img.Pix[y*img.W+x] }

func (img *Image) IsValid(x, y int) bool { return img.Valid[y*img.W+x] }

func (img *Image) Set(x, y int, v float64) {
	i := y*img.W + x
	img.Pix[i] = v
	img.Valid[i] = true
}

func (img *Image) Mask(x, y int) {
	img.Valid[y*img.W+x] = false
}

func (img *Image) Clone() *Image {
	out := New(img.W, img.H)
	copy(out.Pix, img.Pix)
	copy(out.Valid, img.Valid)
	return out
}

// SameShape reports whether two images share grid dimensions.
func SameShape(a, b *Image) bool {
	return a.W == b.W && a.H == b.H
}

// UpdateMask masks every pixel of img where mask is invalid or zero, the
// semantics of updateMask over a 0/1 mask band.
func (img *Image) UpdateMask(mask *Image) *Image {
	for i := range img.Valid {
		if !mask.Valid[i] || mask.Pix[i] == 0 {
			img.Valid[i] = false
		}
	}
	return img
}

// NormalizedDifference computes (a-b)/(a+b) per pixel. Pixels where either
// input is invalid, or where the denominator is zero, are masked.
func NormalizedDifference(a, b *Image) *Image {
	out := New(a.W, a.H)
	for i := range out.Pix {
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		sum := a.Pix[i] + b.Pix[i]
		if sum == 0 {
			continue
		}
		out.Pix[i] = (a.Pix[i] - b.Pix[i]) / sum
		out.Valid[i] = true
	}
	return out
}

// UnitScale linearly rescales [lo, hi] to [0, 1], clamping outside the range.
func UnitScale(img *Image, lo, hi float64) *Image {
	out := img.Clone()
	span := hi - lo
	for i := range out.Pix {
		if !out.Valid[i] {
			continue
		}
		v := (out.Pix[i] - lo) / span
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out.Pix[i] = v
	}
	return out
}

// FocalFill fills invalid pixels with the mean of the valid pixels inside a
// circular kernel of the given radius, repeated for the given number of
// iterations. Valid pixels are left untouched, which matches a focal mean
// blended under the original image.
func FocalFill(img *Image, radius int, iterations int) *Image {
	out := img.Clone()
	r2 := radius * radius
	for it := 0; it < iterations; it++ {
		next := out.Clone()
		filled := false
		for y := 0; y < out.H; y++ {
			for x := 0; x < out.W; x++ {
				if out.Valid[y*out.W+x] {
					continue
				}
				var sum float64
				var n int
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						if dx*dx+dy*dy > r2 {
							continue
						}
						nx, ny := x+dx, y+dy
						if nx < 0 || ny < 0 || nx >= out.W || ny >= out.H {
							continue
						}
						if out.Valid[ny*out.W+nx] {
							sum += out.Pix[ny*out.W+nx]
							n++
						}
					}
				}
				if n > 0 {
					next.Set(x, y, sum/float64(n))
					filled = true
				}
			}
		}
		out = next
		if !filled {
			break
		}
	}
	return out
}

// distInf is a finite stand-in for "no source pixel anywhere"; the 1D
// transform needs finite parabola heights.
const distInf = 1e18

// DistanceTransform computes, for every pixel, the squared Euclidean distance
// in pixels to the nearest pixel of img that is valid and non-zero. If no
// such pixel exists the result is +Inf everywhere. Uses the two-pass
// Felzenszwalb-Huttenlocher algorithm.
func DistanceTransform(img *Image) *Image {
	out := NewConst(img.W, img.H, distInf)
	for i := range img.Pix {
		if img.Valid[i] && img.Pix[i] != 0 {
			out.Pix[i] = 0
		}
	}

	// columns then rows
	col := make([]float64, img.H)
	for x := 0; x < img.W; x++ {
		for y := 0; y < img.H; y++ {
			col[y] = out.Pix[y*img.W+x]
		}
		dt1d(col)
		for y := 0; y < img.H; y++ {
			out.Pix[y*img.W+x] = col[y]
		}
	}
	row := make([]float64, img.W)
	for y := 0; y < img.H; y++ {
		copy(row, out.Pix[y*img.W:(y+1)*img.W])
		dt1d(row)
		copy(out.Pix[y*img.W:(y+1)*img.W], row)
	}
	for i := range out.Pix {
		if out.Pix[i] >= distInf {
			out.Pix[i] = math.Inf(1)
		}
	}
	return out
}

// dt1d is the 1D squared distance transform over a sampled function f,
// replacing f in place with min_q (f[q] + (p-q)^2).
func dt1d(f []float64) {
	n := len(f)
	v := make([]int, n)
	z := make([]float64, n+1)
	d := make([]float64, n)

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for p := 0; p < n; p++ {
		for z[k+1] < float64(p) {
			k++
		}
		d[p] = float64((p-v[k])*(p-v[k])) + f[v[k]]
	}
	copy(f, d)
}
