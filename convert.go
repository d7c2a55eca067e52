package imgfit

import (
	"bytes"
	"errors"
	"image"
	"io"
	"os"

	"github.com/gen2brain/jpegn"
)

var errNotJPEG = errors.New("not a JPEG file")

type decodeConfig struct {
	autoOrientation bool
}

var defaultDecodeConfig = decodeConfig{
	autoOrientation: true,
}

// DecodeOption sets an optional parameter for the Decode and Open functions.
type DecodeOption func(*decodeConfig)

// AutoOrientation returns a DecodeOption that sets the auto-orientation mode.
// If auto-orientation is enabled, the image will be transformed after decoding
// according to the EXIF orientation tag (if present). By default it's enabled.
func AutoOrientation(enabled bool) DecodeOption {
	return func(c *decodeConfig) {
		c.autoOrientation = enabled
	}
}

var decodeOptions = &jpegn.Options{ToRGBA: true, UpsampleMethod: jpegn.CatmullRom}

// decodeJPEG decodes raw JPEG data without applying any orientation.
// jpegn hands progressive and CMYK streams over to image/jpeg.
func decodeJPEG(data []byte) (image.Image, error) {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return nil, errNotJPEG
	}
	return jpegn.Decode(bytes.NewReader(data), decodeOptions)
}

// Decode reads a JPEG image from r.
func Decode(r io.Reader, opts ...DecodeOption) (image.Image, error) {
	cfg := defaultDecodeConfig
	for _, option := range opts {
		option(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	img, err := decodeJPEG(data)
	if err != nil {
		return nil, err
	}
	if !cfg.autoOrientation {
		return img, nil
	}
	if o := LocateOrientation(data); !o.Transform().IsIdentity() {
		return FixOrientation(img, o), nil
	}
	return img, nil
}

// DecodeConfig decodes the color model and dimensions of a JPEG image as
// stored in the file, ignoring the EXIF orientation.
func DecodeConfig(r io.Reader) (image.Config, error) {
	return jpegn.DecodeConfig(r)
}

// Open loads an image from file.
func Open(file string, opts ...DecodeOption) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, opts...)
}
