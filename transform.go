package imgfit

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Transform describes the rotation (clockwise, in degrees) and horizontal
// mirroring needed to display an image upright. The mirror is applied first.
type Transform struct {
	Rotation int
	Mirror   bool
}

var transforms = map[Orientation]Transform{
	Normal:     {0, false},
	FlipH:      {0, true},
	Rotate180:  {180, false},
	FlipV:      {180, true},
	Transpose:  {270, true},
	Rotate270:  {90, false},
	Transverse: {90, true},
	Rotate90:   {-90, false},
}

// Transform returns the transform that corrects o. Unknown maps to the
// identity transform.
func (o Orientation) Transform() Transform {
	return transforms[o]
}

// IsIdentity reports whether t leaves the image unchanged.
func (t Transform) IsIdentity() bool {
	return !t.Mirror && t.angle() == 0
}

func (t Transform) angle() int {
	a := t.Rotation % 360
	if a < 0 {
		a += 360
	}
	return a
}

// Size returns the bounding box of a w x h image after the transform.
func (t Transform) Size(w, h int) (int, int) {
	sin, cos := math.Sincos(float64(t.Rotation) * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	return int(math.Round(fw*cos + fh*sin)), int(math.Round(fw*sin + fh*cos))
}

// Apply returns a new image with t applied to img.
func (t Transform) Apply(img image.Image) *image.NRGBA {
	if t.Mirror {
		img = imaging.FlipH(img)
	}
	// imaging rotates counter-clockwise.
	switch t.angle() {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	if nrgba, ok := img.(*image.NRGBA); ok && t.Mirror {
		return nrgba
	}
	return imaging.Clone(img)
}

// FixOrientation applies the transform corresponding to o to img.
func FixOrientation(img image.Image, o Orientation) *image.NRGBA {
	return o.Transform().Apply(img)
}
