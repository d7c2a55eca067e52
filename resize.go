package imgfit

import (
	"errors"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Filter is a resampling filter used by Resize.
type Filter int

// Resampling filters.
const (
	// Lanczos is a high quality filter for photographic images.
	Lanczos Filter = iota
	// Box averages the source pixels covered by each destination pixel.
	Box
	// Linear is bilinear interpolation.
	Linear
	// CatmullRom is a sharp bicubic filter.
	CatmullRom
)

var filterNames = map[Filter]string{
	Lanczos:    "lanczos",
	Box:        "box",
	Linear:     "linear",
	CatmullRom: "catmullrom",
}

var errUnknownFilter = errors.New("imgfit: unknown resampling filter")

func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (f Filter) MarshalText() ([]byte, error) {
	if _, ok := filterNames[f]; !ok {
		return nil, errUnknownFilter
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Filter) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	if name == "area" {
		name = "box"
	}
	for k, v := range filterNames {
		if v == name {
			*f = k
			return nil
		}
	}
	return errUnknownFilter
}

// ResizeHeight returns the height that preserves the aspect ratio of a
// w x h image scaled to width, minimum 1px.
func ResizeHeight(w, h, width int) int {
	if w <= 0 || h <= 0 || width <= 0 {
		return 0
	}
	return int(math.Max(1, math.Round(float64(width)*float64(h)/float64(w))))
}

// Resize scales img to width pixels preserving the aspect ratio and
// returns a new image. Upscaling uses the same filter.
func Resize(img image.Image, width int, filter Filter) *image.NRGBA {
	b := img.Bounds()
	height := ResizeHeight(b.Dx(), b.Dy(), width)
	if height == 0 {
		return &image.NRGBA{}
	}

	switch filter {
	case Box:
		return imaging.Resize(img, width, height, imaging.Box)
	case Linear:
		return imaging.Resize(img, width, height, imaging.Linear)
	case CatmullRom:
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	default:
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
}
