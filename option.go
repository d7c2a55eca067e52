package imgfit

import (
	"image"
	"io"
	"log/slog"
	"runtime"
)

// Options represents options that can be used to configure a batch run.
// An Options value is read-only once ProcessBatch has been called.
type Options struct {
	Budget  Budget
	Workers int
	Filter  Filter
	Encoder Encoder
	// Step is the quality decrement on the 0..1 scale.
	Step    float64
	Naming  Naming
	Cleanup CleanupScope
	// PreserveOrder prefixes outputs with their position in the source list
	// (or in OrderReference when set) after a fully successful batch.
	PreserveOrder  bool
	OrderReference string
	// AutoOrientation applies the EXIF orientation before resizing.
	AutoOrientation bool
	Logger          *slog.Logger
	// OnOutcome, if set, is called from worker goroutines as each file completes.
	OnOutcome func(Outcome)
}

// NewOptions creates a new option with default setting for budget.
func NewOptions(budget Budget) Options {
	return Options{
		Budget:          budget,
		Workers:         runtime.GOMAXPROCS(0),
		Filter:          Lanczos,
		Encoder:         Standard,
		Step:            DefaultStep,
		Naming:          NameBase,
		Cleanup:         CleanupCreated,
		AutoOrientation: true,
	}
}

// SetWorkers sets the value for the Workers field.
func (opts *Options) SetWorkers(n int) *Options {
	opts.Workers = n
	return opts
}

// SetFilter sets the value for the Filter field.
func (opts *Options) SetFilter(f Filter) *Options {
	opts.Filter = f
	return opts
}

// SetEncoder sets the value for the Encoder field.
func (opts *Options) SetEncoder(e Encoder) *Options {
	opts.Encoder = e
	return opts
}

// SetStep sets the value for the Step field.
func (opts *Options) SetStep(step float64) *Options {
	opts.Step = step
	return opts
}

// SetNaming sets the value for the Naming field.
func (opts *Options) SetNaming(n Naming) *Options {
	opts.Naming = n
	return opts
}

// SetCleanup sets the value for the Cleanup field.
func (opts *Options) SetCleanup(scope CleanupScope) *Options {
	opts.Cleanup = scope
	return opts
}

// SetPreserveOrder enables order preservation. If reference is not empty,
// the listing of that directory defines the order.
func (opts *Options) SetPreserveOrder(reference string) *Options {
	opts.PreserveOrder = true
	opts.OrderReference = reference
	return opts
}

// SetLogger sets the value for the Logger field.
func (opts *Options) SetLogger(logger *slog.Logger) *Options {
	opts.Logger = logger
	return opts
}

func (opts *Options) logger() *slog.Logger {
	if opts.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return opts.Logger
}

func (opts *Options) workers() int {
	if opts.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return opts.Workers
}

func (opts *Options) step() float64 {
	if opts.Step == 0 {
		return DefaultStep
	}
	return opts.Step
}

// Convert resizes base to the budget width and writes the highest quality
// JPEG that fits the budget size to w.
func (opts *Options) Convert(w io.Writer, base image.Image) (*Encoded, error) {
	if err := opts.Budget.Validate(); err != nil {
		return nil, err
	}
	res, err := EncodeWithin(Resize(base, opts.Budget.Width, opts.Filter), opts.Budget.Size, opts.Encoder, opts.step())
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(res.Data); err != nil {
		return nil, err
	}
	return res, nil
}
