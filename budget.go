package imgfit

import (
	"fmt"
	"strconv"
	"strings"
)

// Default budget: 640px wide, at most 120KB.
const (
	DefaultWidth  = 640
	DefaultSizeKB = 120
)

// Budget is the target of a batch run: output width in pixels and the
// maximum output size in bytes.
type Budget struct {
	Width int
	Size  int64
}

// NewBudget returns a budget for width pixels and sizeKB kilobytes.
func NewBudget(width, sizeKB int) Budget {
	return Budget{Width: width, Size: int64(sizeKB) * 1024}
}

// DefaultBudget returns the 640px / 120KB budget.
func DefaultBudget() Budget {
	return NewBudget(DefaultWidth, DefaultSizeKB)
}

// ParseBudget parses width and size (in kilobytes) given as text.
func ParseBudget(width, sizeKB string) (Budget, error) {
	w, err := strconv.Atoi(strings.TrimSpace(width))
	if err != nil {
		return Budget{}, fmt.Errorf("%w: width %q is not a number", ErrInvalidBudget, width)
	}
	s, err := strconv.Atoi(strings.TrimSpace(sizeKB))
	if err != nil {
		return Budget{}, fmt.Errorf("%w: size %q is not a number", ErrInvalidBudget, sizeKB)
	}
	b := NewBudget(w, s)
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Validate checks that both width and size are positive.
func (b Budget) Validate() error {
	if b.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidBudget, b.Width)
	}
	if b.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidBudget, b.Size)
	}
	return nil
}

func (b Budget) String() string {
	return fmt.Sprintf("%dpx/%.1fKB", b.Width, float64(b.Size)/1024)
}
