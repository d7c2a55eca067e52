package imgfit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBudget is returned when the width or size is not a positive number.
	ErrInvalidBudget = errors.New("invalid budget")
	// ErrInvalidStep is returned for a quality step outside [MinStep, 1].
	ErrInvalidStep = errors.New("invalid quality step")
	// ErrNoFiles is returned when a batch has no source files.
	ErrNoFiles = errors.New("no source files")
	// ErrDuplicateOutput is returned when two sources map to the same output name.
	ErrDuplicateOutput = errors.New("duplicate output name")
	// ErrNotDirectory is returned when the destination exists and is not a directory.
	ErrNotDirectory = errors.New("destination is not a directory")
)

// FileError records a failure in the pipeline of one source file.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// BatchError is returned by ProcessBatch when at least one file failed.
// It carries the first failure observed.
type BatchError struct {
	First  Outcome
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("failed to process %s: %v", e.First.Source, e.First.Err)
	if e.Failed > 1 {
		msg += fmt.Sprintf(" (and %d more of %d files)", e.Failed-1, e.Total)
	}
	return msg
}

func (e *BatchError) Unwrap() error { return e.First.Err }
