// Package benchmarks provides performance benchmarks for track and group ticks.
package benchmarks

import (
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/comalice/timelinex"
)

func BenchmarkTrackTick(b *testing.B) {
	track, err := timelinex.NewTrack(timelinex.TrackConfig{
		StartTime: 0,
		Duration:  timelinex.Ms(1e12),
		OnUpdate:  func(_, _ float64) error { return nil },
	})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := track.Tick(float64(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoopingTrackTick(b *testing.B) {
	track, err := timelinex.NewTrack(timelinex.TrackConfig{
		Loop:      true,
		StartTime: 0,
		Duration:  timelinex.Ms(16),
		OnStart:   func() error { return nil },
		OnUpdate:  func(_, _ float64) error { return nil },
		OnEnd:     func() error { return nil },
	})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := track.Tick(float64(i) * 5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGroupFanOut(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("tracks=%d", n), func(b *testing.B) {
			var g timelinex.TrackGroup
			GenStaggeredTracks(&g, n, 5)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := g.Tick(float64(i)); err != nil {
					b.Fatal(err)
				}
			}
			b.ReportMetric(float64(n)*float64(b.N)/b.Elapsed().Seconds(), "tracks/sec")
		})
	}
}

func BenchmarkSnapshotYAML(b *testing.B) {
	for _, n := range []int{10, 100} {
		b.Run(fmt.Sprintf("tracks=%d", n), func(b *testing.B) {
			data := GenSnapshotYAML(n)
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var s timelinex.Snapshot
				if err := yaml.Unmarshal(data, &s); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
