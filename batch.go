package imgfit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sunshineplan/workers"
)

// Status is the final state of one source file in a batch.
type Status int

const (
	// Succeeded means the output was written and kept.
	Succeeded Status = iota + 1
	// Failed means the file could not be processed.
	Failed
	// Discarded means the output was written and then removed by the
	// abort-and-clean sweep after another file failed.
	Discarded
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// CleanupScope selects which files the abort-and-clean sweep removes.
type CleanupScope int

const (
	// CleanupCreated removes only the outputs written by the batch.
	CleanupCreated CleanupScope = iota
	// CleanupAll removes every regular file in the destination directory.
	CleanupAll
)

var errUnknownCleanup = errors.New("imgfit: unknown cleanup scope")

func (c CleanupScope) String() string {
	switch c {
	case CleanupCreated:
		return "created"
	case CleanupAll:
		return "all"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c CleanupScope) MarshalText() ([]byte, error) {
	if c != CleanupCreated && c != CleanupAll {
		return nil, errUnknownCleanup
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CleanupScope) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "created":
		*c = CleanupCreated
	case "all":
		*c = CleanupAll
	default:
		return errUnknownCleanup
	}
	return nil
}

// Outcome is the result of processing one source file.
type Outcome struct {
	Source string
	Output string
	Status Status
	Err    error

	Orientation Orientation
	Width       int
	Height      int
	// Quality of the written encoding on the 0..1 scale.
	Quality float64
	Size    int64
	// Fit is false when the size budget could not be reached at any quality.
	Fit bool
}

func (o Outcome) String() string {
	if o.Status == Failed {
		return fmt.Sprintf("%s: %s (%v)", o.Source, o.Status, o.Err)
	}
	return fmt.Sprintf("%s: %s -> %s", o.Source, o.Status, o.Output)
}

// ProcessBatch converts every file in files into dst according to opts.
//
// Preconditions are checked before any file is read: a valid budget, at least
// one file, distinct output names and a destination that is or can be made a
// directory. Files are processed concurrently on at most opts.Workers
// goroutines and a failing file never stops its siblings. Once all files are
// done, a failure triggers the cleanup sweep selected by opts.Cleanup and a
// *BatchError carrying the first failure is returned. If every file succeeded
// and opts.PreserveOrder is set, the outputs are renamed to reflect the source
// order.
//
// Outcomes are returned in the order of files.
func ProcessBatch(ctx context.Context, files []string, dst string, opts Options) ([]Outcome, error) {
	if err := opts.Budget.Validate(); err != nil {
		return nil, err
	}
	if err := validateStep(opts.step()); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	outputs, err := outputNames(files, opts.Naming)
	if err != nil {
		return nil, err
	}
	if err := prepareDir(dst); err != nil {
		return nil, err
	}

	logger := opts.logger()
	logger.Info("Start batch", "files", len(files), "destination", dst, "budget", opts.Budget)

	outcomes := make([]Outcome, len(files))
	var (
		mu     sync.Mutex
		first  = -1
		failed int
	)

	// The pool stops waiting on cancellation, so it runs detached and each
	// job checks ctx itself. Run returns only after every job has finished.
	workers.Workers(opts.workers()).Run(context.WithoutCancel(ctx), workers.SliceJob(files, func(i int, file string) {
		var outcome Outcome
		if err := ctx.Err(); err != nil {
			outcome = Outcome{Source: file, Status: Failed, Err: &FileError{Path: file, Op: "process", Err: err}}
		} else {
			outcome = opts.process(file, filepath.Join(dst, outputs[i]))
		}
		outcomes[i] = outcome

		if outcome.Status == Failed {
			logger.Error("Failed to process image", "image", file, "error", outcome.Err)
			mu.Lock()
			if first == -1 {
				first = i
			}
			failed++
			mu.Unlock()
		} else {
			logger.Debug("Processed image", "image", file, "output", outcome.Output,
				"orientation", outcome.Orientation.Code(), "quality", outcome.Quality, "size", outcome.Size)
			if !outcome.Fit {
				logger.Warn("Size budget not reached", "image", file, "size", outcome.Size, "budget", opts.Budget.Size)
			}
		}
		if opts.OnOutcome != nil {
			opts.OnOutcome(outcome)
		}
	}))
	// A job that panicked is recovered by the pool and leaves no outcome.
	for i, o := range outcomes {
		if o.Status == 0 {
			outcomes[i] = Outcome{Source: files[i], Status: Failed, Err: &FileError{Path: files[i], Op: "process", Err: errors.New("job aborted")}}
			if first == -1 {
				first = i
			}
			failed++
		}
	}

	if failed > 0 {
		cleanup(dst, outcomes, opts.Cleanup, logger)
		return outcomes, &BatchError{First: outcomes[first], Failed: failed, Total: len(files)}
	}

	if opts.PreserveOrder {
		if err := opts.restoreOrder(dst, outcomes); err != nil {
			logger.Error("Failed to restore order", "destination", dst, "error", err)
			return outcomes, err
		}
	}
	logger.Info("Batch done", "files", len(files))

	return outcomes, nil
}

// process runs the pipeline of a single file and writes its output.
func (opts *Options) process(file, output string) Outcome {
	outcome := Outcome{Source: file, Status: Failed}

	data, err := os.ReadFile(file)
	if err != nil {
		outcome.Err = &FileError{Path: file, Op: "read", Err: err}
		return outcome
	}
	img, err := decodeJPEG(data)
	if err != nil {
		outcome.Err = &FileError{Path: file, Op: "decode", Err: err}
		return outcome
	}
	if opts.AutoOrientation {
		outcome.Orientation = LocateOrientation(data)
		img = FixOrientation(img, outcome.Orientation)
	}

	var buf bytes.Buffer
	res, err := opts.Convert(&buf, img)
	if err != nil {
		outcome.Err = &FileError{Path: file, Op: "encode", Err: err}
		return outcome
	}
	if err := writeFile(output, buf.Bytes()); err != nil {
		outcome.Err = &FileError{Path: file, Op: "write", Err: err}
		return outcome
	}

	outcome.Output = output
	outcome.Status = Succeeded
	outcome.Width = opts.Budget.Width
	outcome.Height = ResizeHeight(img.Bounds().Dx(), img.Bounds().Dy(), opts.Budget.Width)
	outcome.Quality = res.Quality
	outcome.Size = int64(len(res.Data))
	outcome.Fit = res.Fits(opts.Budget.Size)
	return outcome
}

// writeFile writes data to a temporary file next to name and renames it.
func writeFile(name string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(name), "*.tmp")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), name); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

func outputNames(files []string, naming Naming) ([]string, error) {
	names := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, file := range files {
		name := naming.OutputName(file)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateOutput, prev, file, name)
		}
		seen[name] = file
		names[i] = name
	}
	return names, nil
}

func prepareDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.MkdirAll(dir, 0755)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// cleanup removes outputs after a failed batch and marks the successful
// outcomes whose output is gone as Discarded.
func cleanup(dst string, outcomes []Outcome, scope CleanupScope, logger *slog.Logger) {
	var removed int
	if scope == CleanupAll {
		entries, err := os.ReadDir(dst)
		if err != nil {
			logger.Error("Failed to read directory", "path", dst, "error", err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			name := filepath.Join(dst, e.Name())
			if err := os.Remove(name); err != nil {
				logger.Error("Failed to remove file", "name", name, "error", err)
				continue
			}
			removed++
		}
	}
	for i := range outcomes {
		if outcomes[i].Status != Succeeded {
			continue
		}
		if scope == CleanupCreated {
			if err := os.Remove(outcomes[i].Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Error("Failed to remove file", "name", outcomes[i].Output, "error", err)
				continue
			}
			removed++
		} else if _, err := os.Stat(outcomes[i].Output); err == nil {
			continue
		}
		outcomes[i].Status = Discarded
	}
	logger.Info("Cleaned destination", "path", dst, "scope", scope, "removed", removed)
}
