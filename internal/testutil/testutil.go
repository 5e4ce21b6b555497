// Package testutil provides shared test helpers for building controllers and trackers.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/kbview/internal/models"
	"github.com/starford/kbview/internal/tableview"
	"github.com/starford/kbview/internal/upload"
)

// SequentialIDs returns a generator producing rec-1, rec-2, ...
func SequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
}

// Controller builds a controller over seed with predictable record ids.
func Controller(t *testing.T, seed []models.RecordFields, opts ...tableview.Option) *tableview.Controller {
	t.Helper()
	opts = append([]tableview.Option{tableview.WithIDGenerator(SequentialIDs())}, opts...)
	ctl, err := tableview.New(seed, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return ctl
}

// Tracker starts an upload tracker that is closed when the test ends.
func Tracker(t *testing.T, cfg upload.Config, observe func(upload.Event)) *upload.Tracker {
	t.Helper()
	tr := upload.NewTracker(cfg, DiscardLogger(), observe)
	t.Cleanup(tr.Close)
	return tr
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
