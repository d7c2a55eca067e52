package main

import (
	"errors"
	"testing"
	"time"

	"github.com/sunshineplan/imgfit"
)

func TestProgress(t *testing.T) {
	testCase := []struct {
		reported int
		err      error
	}{
		{3, nil},
		{1, errors.New("batch aborted")},
	}
	for _, tc := range testCase {
		onOutcome, finish := progress(3)
		for range tc.reported {
			onOutcome(imgfit.Outcome{})
		}
		done := make(chan struct{})
		go func() {
			finish(tc.err)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("finish(%v) did not return after %d of 3 outcomes", tc.err, tc.reported)
		}
	}
}
