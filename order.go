package imgfit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const stagingPrefix = ".imgfit-"

// RestoreOrder renames outputs, all located in dst, so that a lexical listing
// of dst reproduces their order: the file at position i gets the prefix
// "<i+1>_", zero-padded to the width of len(outputs). Files are moved through
// a staging subdirectory so a new name never collides with a pending one.
// It returns the new paths in the order of outputs.
//
// If a rename fails, the files already moved are put back under their
// original names before the error is returned.
func RestoreOrder(dst string, outputs []string) (renamed []string, err error) {
	stage := filepath.Join(dst, stagingPrefix+uuid.NewString())
	if err := os.Mkdir(stage, 0755); err != nil {
		return nil, err
	}
	defer os.Remove(stage)

	staged := func(i int) string { return filepath.Join(stage, filepath.Base(outputs[i])) }
	var moved, done int
	defer func() {
		if err == nil {
			return
		}
		errs := []error{err}
		for i := range done {
			errs = append(errs, os.Rename(renamed[i], outputs[i]))
		}
		for i := done; i < moved; i++ {
			errs = append(errs, os.Rename(staged(i), outputs[i]))
		}
		renamed, err = nil, errors.Join(errs...)
	}()

	for i, output := range outputs {
		if err = os.Rename(output, staged(i)); err != nil {
			return
		}
		moved++
	}

	digits := len(strconv.Itoa(len(outputs)))
	renamed = make([]string, len(outputs))
	for i, output := range outputs {
		renamed[i] = filepath.Join(dst, fmt.Sprintf("%0*d_%s", digits, i+1, filepath.Base(output)))
		if err = os.Rename(staged(i), renamed[i]); err != nil {
			return
		}
		done++
	}
	return
}

// referenceOrder returns the indexes of sources sorted by the position of
// their base name in reference. Sources missing from reference keep their
// relative order after the matched ones.
func referenceOrder(sources, reference []string) []int {
	pos := make(map[string]int, len(reference))
	for i, r := range reference {
		if _, ok := pos[filepath.Base(r)]; !ok {
			pos[filepath.Base(r)] = i
		}
	}

	order := make([]int, 0, len(sources))
	var rest []int
	matched := make([]int, len(reference))
	for i := range matched {
		matched[i] = -1
	}
	for i, src := range sources {
		if p, ok := pos[filepath.Base(src)]; ok && matched[p] == -1 {
			matched[p] = i
		} else {
			rest = append(rest, i)
		}
	}
	for _, i := range matched {
		if i != -1 {
			order = append(order, i)
		}
	}
	return append(order, rest...)
}

// restoreOrder applies RestoreOrder to the outputs of a successful batch
// and updates the outcomes with the new paths.
func (opts *Options) restoreOrder(dst string, outcomes []Outcome) error {
	sources := make([]string, len(outcomes))
	for i, o := range outcomes {
		sources[i] = o.Source
	}

	order := make([]int, len(outcomes))
	for i := range order {
		order[i] = i
	}
	if opts.OrderReference != "" {
		reference, err := ListImages(opts.OrderReference)
		if err != nil {
			return err
		}
		order = referenceOrder(sources, reference)
	}

	outputs := make([]string, len(order))
	for k, i := range order {
		outputs[k] = outcomes[i].Output
	}
	renamed, err := RestoreOrder(dst, outputs)
	if err != nil {
		return err
	}
	for k, i := range order {
		outcomes[i].Output = renamed[k]
	}
	opts.logger().Info("Restored order", "destination", dst, "files", len(renamed))
	return nil
}
