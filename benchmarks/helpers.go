// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/testutil"
)

// GenFlatTracks adds n endless tracks starting at 0 to g.
func GenFlatTracks(g *timelinex.TrackGroup, n int) {
	for i := 0; i < n; i++ {
		g.AddTrack(timelinex.TrackConfig{
			ID:       fmt.Sprintf("t%d", i),
			OnUpdate: func(_, _ float64) error { return nil },
		})
	}
}

// GenStaggeredTracks adds n looping tracks of the given length, each
// starting one period after the previous one.
func GenStaggeredTracks(g *timelinex.TrackGroup, n int, period float64) {
	for i := 0; i < n; i++ {
		g.AddTrack(timelinex.TrackConfig{
			ID:        fmt.Sprintf("s%d", i),
			Loop:      true,
			StartTime: float64(i) * period,
			Duration:  timelinex.Ms(period * 4),
			OnStart:   func() error { return nil },
			OnUpdate:  func(_, _ float64) error { return nil },
			OnEnd:     func() error { return nil },
		})
	}
}

// NewManualTimeline builds a timeline on a manual driver with logging off.
func NewManualTimeline(cfg timelinex.Config) (*timelinex.Timeline, *testutil.ManualDriver) {
	d := testutil.NewManualDriver()
	tl, err := timelinex.New(cfg,
		timelinex.WithClock(d.Clock()),
		timelinex.WithScheduler(d.Sched),
		timelinex.WithLogger(logging.Discard()),
	)
	if err != nil {
		panic(err)
	}
	return tl, d
}

// GenSnapshotYAML generates YAML bytes for a snapshot of a timeline with
// numTracks tracks, ticked once.
func GenSnapshotYAML(numTracks int) []byte {
	cfg := timelinex.DefaultConfig()
	cfg.Duration = 10000
	tl, _ := NewManualTimeline(cfg)
	GenStaggeredTracks(&tl.TrackGroup, numTracks, 10)
	if err := tl.Seek(25); err != nil {
		panic(err)
	}
	if err := tl.Tick(); err != nil {
		panic(err)
	}
	data, err := yaml.Marshal(tl.Snapshot())
	if err != nil {
		panic(err)
	}
	return data
}
