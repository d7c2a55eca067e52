package imgfit

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
)

// Quality decrements of the descent on the 0..1 scale.
const (
	DefaultStep = 0.005
	MinStep     = 1e-6
)

func validateStep(step float64) error {
	if math.IsNaN(step) || step < MinStep || step > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}
	return nil
}

// Encoder is a JPEG encoder backend.
type Encoder int

// JPEG encoders.
const (
	// Standard encodes with the Go standard library through imaging.
	Standard Encoder = iota
	// Jpegli encodes with the jpegli library.
	Jpegli
)

var encoderNames = map[Encoder]string{
	Standard: "standard",
	Jpegli:   "jpegli",
}

var errUnknownEncoder = errors.New("imgfit: unknown encoder")

func (e Encoder) String() string {
	if name, ok := encoderNames[e]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoder) MarshalText() ([]byte, error) {
	if _, ok := encoderNames[e]; !ok {
		return nil, errUnknownEncoder
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoder) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	if name == "std" {
		name = "standard"
	}
	for k, v := range encoderNames {
		if v == name {
			*e = k
			return nil
		}
	}
	return errUnknownEncoder
}

// Encode writes img as JPEG with quality in range 1-100.
func (e Encoder) Encode(w io.Writer, img image.Image, quality int) error {
	switch e {
	case Standard:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case Jpegli:
		return jpegli.Encode(w, img, &jpegli.EncodingOptions{
			Quality:           quality,
			ChromaSubsampling: image.YCbCrSubsampleRatio420,
		})
	default:
		return errUnknownEncoder
	}
}

// Encoded is the result of a quality descent.
type Encoded struct {
	Data []byte
	// Quality of the returned encoding on the 0..1 scale.
	Quality float64
	// Attempts is the number of encodings performed.
	Attempts int
}

// Fits reports whether the encoding is within limit bytes.
func (e *Encoded) Fits(limit int64) bool {
	return int64(len(e.Data)) <= limit
}

// jpegQuality maps a 0..1 quality factor to the 1..100 encoder scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// EncodeWithin encodes img starting from maximum quality and lowers the
// quality by step until the output is at most limit bytes or the quality
// is exhausted. In the latter case the last, smallest attempt is returned
// without error: the limit is best-effort.
func EncodeWithin(img image.Image, limit int64, enc Encoder, step float64) (*Encoded, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidBudget, limit)
	}
	if err := validateStep(step); err != nil {
		return nil, err
	}

	res := new(Encoded)
	last := 0
	for k := 0; ; k++ {
		quality := 1 - float64(k)*step
		// Steps finer than the encoder scale produce identical output.
		if q := jpegQuality(quality); q != last {
			var buf bytes.Buffer
			if err := enc.Encode(&buf, img, q); err != nil {
				return nil, err
			}
			res.Data = buf.Bytes()
			res.Attempts++
			last = q
		}
		res.Quality = quality
		if res.Fits(limit) || 1-float64(k+1)*step <= 0 {
			return res, nil
		}
	}
}
