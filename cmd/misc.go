package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/sunshineplan/imgfit"
	"github.com/sunshineplan/progressbar"
	"github.com/sunshineplan/utils/log"
)

// progress starts a bar of total steps. The returned callback advances it
// and finish stops it: it waits for the final frame after a clean batch and
// cancels the bar otherwise.
func progress(total int) (onOutcome func(imgfit.Outcome), finish func(error)) {
	pb := progressbar.New(total)
	pb.Start()
	return func(imgfit.Outcome) { pb.Add(1) }, func(err error) {
		if err != nil {
			pb.Cancel()
			return
		}
		pb.Wait()
	}
}

// sources returns the images to process for root, a file or a directory.
func sources(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	switch mode := info.Mode(); {
	case mode.IsRegular():
		return []string{root}, nil
	case mode.IsDir():
		if *recursive {
			return loadImages(root), nil
		}
		return imgfit.ListImages(root)
	default:
		return nil, fmt.Errorf("unknown source %s", root)
	}
}

func loadImages(root string) (imgs []string) {
	var message string
	var width int
	done := make(chan struct{})
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m := message
				if !*quiet {
					fmt.Fprintf(os.Stdout, "\r%s\r%s", strings.Repeat(" ", width), m)
				}
				width = runewidth.StringWidth(m)
			}
		}
	}()
	var dir string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dir = path
		} else if d.Type().IsRegular() && imgfit.IsJPEG(d.Name()) {
			imgs = append(imgs, path)
		}
		message = fmt.Sprintf("Found images: %d, Scanning directory %s", len(imgs), dir)
		return nil
	})
	close(done)
	if !*quiet {
		fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", width))
	}
	return
}

func report(outcomes []imgfit.Outcome) {
	var succeeded, failed, discarded, over int
	for _, o := range outcomes {
		switch o.Status {
		case imgfit.Succeeded:
			succeeded++
			if !o.Fit {
				over++
			}
		case imgfit.Failed:
			failed++
			log.Error("Failed to process image", "image", o.Source, "error", o.Err)
		case imgfit.Discarded:
			discarded++
		}
	}
	if len(outcomes) > 0 {
		log.Info("Summary", "succeeded", succeeded, "failed", failed, "discarded", discarded, "over budget", over)
	}
}
