package imgfit

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
)

func writeImages(t *testing.T, dir string, w, h int, names ...string) []string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	var files []string
	for _, name := range names {
		file := filepath.Join(dir, name)
		if err := os.WriteFile(file, testJPEG(t, w, h), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, file)
	}
	return files
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessBatch(t *testing.T) {
	root := t.TempDir()
	files := writeImages(t, filepath.Join(root, "src"), 1000, 750, "a.jpg", "b.JPEG")
	rotated := filepath.Join(root, "src", "c.jpg")
	data := testJPEG(t, 1000, 750, exifSegment(binary.LittleEndian, ifdEntry{orientationTag, 6}))
	if err := os.WriteFile(rotated, data, 0644); err != nil {
		t.Fatal(err)
	}
	files = append(files, rotated)

	var calls atomic.Int32
	opts := NewOptions(NewBudget(640, 120))
	opts.OnOutcome = func(Outcome) { calls.Add(1) }

	dst := filepath.Join(root, "out")
	outcomes, err := ProcessBatch(context.Background(), files, dst, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 3 || calls.Load() != 3 {
		t.Fatalf("expected 3 outcomes and 3 callbacks; got %d and %d", len(outcomes), calls.Load())
	}

	testCase := []struct {
		output      string
		orientation Orientation
		height      int
	}{
		{"a.jpg", Unknown, 480},
		{"b.jpg", Unknown, 480},
		{"c.jpg", Rotate270, 853},
	}
	for i, tc := range testCase {
		o := outcomes[i]
		if o.Status != Succeeded || o.Err != nil {
			t.Fatalf("%s: expected success; got %s", o.Source, o)
		}
		if o.Source != files[i] || o.Output != filepath.Join(dst, tc.output) {
			t.Errorf("unexpected paths %s -> %s", o.Source, o.Output)
		}
		if o.Orientation != tc.orientation || o.Width != 640 || o.Height != tc.height {
			t.Errorf("%s: unexpected outcome %+v", tc.output, o)
		}
		b, err := os.ReadFile(o.Output)
		if err != nil {
			t.Fatal(err)
		}
		if int64(len(b)) > 120*1024 || int64(len(b)) != o.Size || !o.Fit {
			t.Errorf("%s: %d bytes written, outcome says %d", tc.output, len(b), o.Size)
		}
		config, err := DecodeConfig(bytes.NewReader(b))
		if err != nil {
			t.Fatal(err)
		}
		if config.Width != 640 || config.Height != tc.height {
			t.Errorf("%s: expected 640x%d; got %dx%d", tc.output, tc.height, config.Width, config.Height)
		}
	}
	if names := dirNames(t, dst); len(names) != 3 {
		t.Errorf("expected only outputs in destination; got %v", names)
	}
}

func TestProcessBatchFailure(t *testing.T) {
	root := t.TempDir()
	files := writeImages(t, filepath.Join(root, "src"), 200, 150, "a.jpg", "b.jpg")
	corrupt := filepath.Join(root, "src", "corrupt.jpg")
	if err := os.WriteFile(corrupt, []byte{0xff, 0xd8, 0xff, 0xdb, 0x00, 0x43, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}
	files = append(files, corrupt)

	// Order restoration is requested but must not run on a failed batch.
	opts := NewOptions(NewBudget(100, 50))
	opts.SetWorkers(2).SetPreserveOrder("")
	dst := filepath.Join(root, "out")
	outcomes, err := ProcessBatch(context.Background(), files, dst, opts)
	if err == nil {
		t.Fatal("batch with corrupt file want error")
	}
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError; got %T", err)
	}
	if be.First.Source != corrupt || be.Failed != 1 || be.Total != 3 {
		t.Errorf("unexpected batch error %+v", be)
	}
	var fe *FileError
	if !errors.As(err, &fe) || fe.Op != "decode" || fe.Path != corrupt {
		t.Errorf("expected decode FileError; got %v", err)
	}

	var failed int
	for _, o := range outcomes {
		switch o.Status {
		case Failed:
			failed++
			if o.Source != corrupt {
				t.Errorf("unexpected failure %s", o)
			}
		case Discarded:
			if name := filepath.Base(o.Output); name != filepath.Base(o.Source) {
				t.Errorf("expected unordered output name %s; got %s", filepath.Base(o.Source), name)
			}
		default:
			t.Errorf("expected discarded outcome; got %s", o)
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly one failure; got %d", failed)
	}
	if names := dirNames(t, dst); len(names) != 0 {
		t.Errorf("expected empty destination; got %v", names)
	}
}

func TestProcessBatchCleanup(t *testing.T) {
	testCase := []struct {
		scope CleanupScope
		want  []string
	}{
		{CleanupCreated, []string{"keep.txt", "sub"}},
		{CleanupAll, []string{"sub"}},
	}
	for _, tc := range testCase {
		root := t.TempDir()
		files := writeImages(t, filepath.Join(root, "src"), 64, 48, "a.jpg")
		missing := filepath.Join(root, "src", "missing.jpg")
		files = append(files, missing)

		dst := filepath.Join(root, "out")
		if err := os.MkdirAll(filepath.Join(dst, "sub"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dst, "keep.txt"), []byte("keep"), 0644); err != nil {
			t.Fatal(err)
		}

		opts := NewOptions(NewBudget(32, 10))
		opts.SetCleanup(tc.scope)
		outcomes, err := ProcessBatch(context.Background(), files, dst, opts)
		var fe *FileError
		if !errors.As(err, &fe) || fe.Op != "read" || !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s: expected read error; got %v", tc.scope, err)
		}
		if outcomes[0].Status != Discarded || outcomes[1].Status != Failed {
			t.Errorf("%s: unexpected outcomes %v", tc.scope, outcomes)
		}
		if names := dirNames(t, dst); !reflect.DeepEqual(names, tc.want) {
			t.Errorf("%s: expected %v in destination; got %v", tc.scope, tc.want, names)
		}
	}
}

func TestProcessBatchPreconditions(t *testing.T) {
	root := t.TempDir()
	files := writeImages(t, filepath.Join(root, "one"), 16, 16, "a.jpg")
	dup := writeImages(t, filepath.Join(root, "two"), 16, 16, "a.jpeg")
	notDir := filepath.Join(root, "file")
	if err := os.WriteFile(notDir, nil, 0644); err != nil {
		t.Fatal(err)
	}

	withStep := func(step float64) Options {
		opts := NewOptions(DefaultBudget())
		opts.SetStep(step)
		return opts
	}

	testCase := []struct {
		name  string
		files []string
		dst   string
		opts  Options
		err   error
	}{
		{"budget", files, filepath.Join(root, "out"), NewOptions(Budget{Width: 640}), ErrInvalidBudget},
		{"no files", nil, filepath.Join(root, "out"), NewOptions(DefaultBudget()), ErrNoFiles},
		{"duplicate", append(files, dup...), filepath.Join(root, "out"), NewOptions(DefaultBudget()), ErrDuplicateOutput},
		{"not directory", files, notDir, NewOptions(DefaultBudget()), ErrNotDirectory},
		{"nan step", files, filepath.Join(root, "out"), withStep(math.NaN()), ErrInvalidStep},
		{"tiny step", files, filepath.Join(root, "out"), withStep(1e-17), ErrInvalidStep},
	}
	for _, tc := range testCase {
		outcomes, err := ProcessBatch(context.Background(), tc.files, tc.dst, tc.opts)
		if !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v; got %v", tc.name, tc.err, err)
		}
		if outcomes != nil {
			t.Errorf("%s: expected no outcomes; got %v", tc.name, outcomes)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination must not be created when a precondition fails")
	}

	// Prefixed names keep the source extension, so the same files are distinct.
	opts := NewOptions(NewBudget(8, 10))
	opts.SetNaming(NamePrefixed)
	outcomes, err := ProcessBatch(context.Background(), append(files, dup...), filepath.Join(root, "prefixed"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(outcomes[1].Output) != "compressed_a.jpeg" {
		t.Errorf("unexpected output %s", outcomes[1].Output)
	}
}

func TestProcessBatchCanceled(t *testing.T) {
	root := t.TempDir()
	files := writeImages(t, filepath.Join(root, "src"), 16, 16, "a.jpg", "b.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dst := filepath.Join(root, "out")
	outcomes, err := ProcessBatch(ctx, files, dst, NewOptions(NewBudget(8, 10)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
	for _, o := range outcomes {
		if o.Status != Failed {
			t.Errorf("expected failure; got %s", o)
		}
	}
	if names := dirNames(t, dst); len(names) != 0 {
		t.Errorf("expected empty destination; got %v", names)
	}
}
