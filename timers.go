package timelinex

import (
	"fmt"
	"math"
)

// minInterval keeps SetInterval from building a zero-length looping track,
// which would fire once and never again.
const minInterval = 1.0

func timerID(n int) string { return fmt.Sprintf("__timeout__%d", n) }

// SetTimeout fires cb once, ms after the current position. It returns an
// id for ClearTimeout.
func (tl *Timeline) SetTimeout(cb func(), ms float64) int {
	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}
	tl.timeoutSeq++
	id := tl.timeoutSeq
	track, _ := NewTrack(TrackConfig{
		ID:        timerID(id),
		StartTime: math.Max(tl.currentTime+ms, 0),
		Duration:  Ms(0),
		OnStart: func() error {
			cb()
			return nil
		},
	})
	tl.Add(track)
	return id
}

// SetInterval fires cb every ms, starting ms after the current position.
// Intervals shorter than 1ms are raised to 1ms.
func (tl *Timeline) SetInterval(cb func(), ms float64) int {
	if math.IsNaN(ms) || ms < minInterval {
		ms = minInterval
	}
	tl.timeoutSeq++
	id := tl.timeoutSeq
	track, _ := NewTrack(TrackConfig{
		ID:        timerID(id),
		Loop:      true,
		StartTime: math.Max(tl.currentTime+ms, 0),
		Duration:  Ms(ms),
		OnStart: func() error {
			cb()
			return nil
		},
	})
	tl.Add(track)
	return id
}

// ClearTimeout cancels a pending timeout. Unknown ids are ignored.
func (tl *Timeline) ClearTimeout(id int) {
	if tracks := tl.GetTracksByID(timerID(id)); len(tracks) > 0 {
		tracks[0].Kill()
	}
}

// ClearInterval cancels an interval.
func (tl *Timeline) ClearInterval(id int) { tl.ClearTimeout(id) }
