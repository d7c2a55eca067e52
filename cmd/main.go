package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sunshineplan/imgfit"
	"github.com/sunshineplan/utils/log"
	"github.com/vharitonsky/iniflags"
)

var (
	filter  = imgfit.Lanczos
	encoder = imgfit.Standard
	clean   = imgfit.CleanupCreated
)

var (
	src       = flag.String("src", "", "")
	dst       = flag.String("dst", "output", "")
	width     = flag.String("width", fmt.Sprint(imgfit.DefaultWidth), "")
	size      = flag.String("size", fmt.Sprint(imgfit.DefaultSizeKB), "")
	worker    = flag.Int("worker", 5, "")
	order     = flag.Bool("order", false, "")
	reference = flag.String("reference", "", "")
	step      = flag.Float64("step", imgfit.DefaultStep, "")
	prefixed  = flag.Bool("prefixed", false, "")
	recursive = flag.Bool("recursive", false, "")
	quiet     = flag.Bool("quiet", false, "")
	debug     = flag.Bool("debug", false, "")
)

func init() {
	flag.TextVar(&filter, "filter", imgfit.Lanczos, "")
	flag.TextVar(&encoder, "encoder", imgfit.Standard, "")
	flag.TextVar(&clean, "clean", imgfit.CleanupCreated, "")
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
	fmt.Println(`
  --src
		source file or directory
  --dst
		destination directory (default: output)
  --width
		target width in pixels (default: 640)
  --size
		target size in kilobytes (default: 120)
  --worker
		number of concurrent workers (default: 5)
  --order
		prefix outputs with their position in the source order (default: false)
  --reference
		directory whose listing defines the order, only used with --order
  --filter
		resampling filter (lanczos, box, linear, catmullrom, default: lanczos)
  --encoder
		jpeg encoder (standard, jpegli, default: standard)
  --step
		quality step of the size search (range 0-1, default: 0.005)
  --clean
		files removed when an image fails (created, all, default: created)
  --prefixed
		name outputs compressed_<name> instead of <name>.jpg (default: false)
  --recursive
		scan source directory recursively (default: false)
  --quiet
		hide progress (default: false)
  --debug
		write per image details to log file (default: false)`)
}

func main() {
	self, err := os.Executable()
	if err != nil {
		log.Error("Failed to get self path", "error", err)
		os.Exit(1)
	}

	flag.Usage = usage
	iniflags.SetConfigFile(filepath.Join(filepath.Dir(self), "config.ini"))
	iniflags.SetAllowMissingConfigFile(true)
	iniflags.Parse()

	if err := run(self); err != nil {
		os.Exit(1)
	}
}

func run(self string) error {
	budget, err := imgfit.ParseBudget(*width, *size)
	if err != nil {
		log.Error("Invalid budget", "width", *width, "size", *size, "error", err)
		return err
	}

	f, err := os.OpenFile(
		filepath.Join(filepath.Dir(self), fmt.Sprintf("imgfit%s.log", time.Now().Format("20060102150405"))),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Error("Failed to open log file", "error", err)
		return err
	}
	defer f.Close()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	images, err := sources(*src)
	if err != nil {
		log.Error("Failed to load source", "source", *src, "error", err)
		return err
	}
	log.Info("Total images", "count", len(images), "budget", budget)

	task := imgfit.NewOptions(budget)
	task.SetWorkers(*worker).SetFilter(filter).SetEncoder(encoder).SetStep(*step).SetCleanup(clean)
	task.SetLogger(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	if *prefixed {
		task.SetNaming(imgfit.NamePrefixed)
	}
	if *order {
		task.SetPreserveOrder(*reference)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	finish := func(error) {}
	if !*quiet && len(images) > 1 {
		task.OnOutcome, finish = progress(len(images))
	}
	outcomes, err := imgfit.ProcessBatch(ctx, images, *dst, task)
	finish(err)
	report(outcomes)
	if err != nil {
		var be *imgfit.BatchError
		if errors.As(err, &be) {
			log.Error("Batch aborted", "image", be.First.Source, "failed", be.Failed, "total", be.Total, "error", be.First.Err)
		} else {
			log.Error("Failed to process batch", "error", err)
		}
		return err
	}
	log.Info("Done.")
	return nil
}
