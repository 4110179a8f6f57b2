package timelinex

import (
	"time"

	"github.com/comalice/timelinex/protocol"
)

// TrackSnapshot is the observable state of one track.
type TrackSnapshot struct {
	ID        string         `json:"id" yaml:"id"`
	Loop      bool           `json:"loop" yaml:"loop"`
	StartTime protocol.Float `json:"startTime" yaml:"startTime"`
	EndTime   protocol.Float `json:"endTime" yaml:"endTime"`
	Alive     bool           `json:"alive" yaml:"alive"`
	Inited    bool           `json:"inited" yaml:"inited"`
	Started   bool           `json:"started" yaml:"started"`
	Running   bool           `json:"running" yaml:"running"`
	Iteration int            `json:"iteration" yaml:"iteration"`
}

// Snapshot is a point-in-time view of a timeline, for persistence and the
// control API.
type Snapshot struct {
	Name          string                  `json:"name" yaml:"name"`
	Mode          string                  `json:"mode" yaml:"mode"`
	Config        protocol.ConfigSnapshot `json:"config" yaml:"config"`
	CurrentTime   protocol.Float          `json:"currentTime" yaml:"currentTime"`
	ReferenceTime protocol.Float          `json:"referenceTime" yaml:"referenceTime"`
	Playing       bool                    `json:"playing" yaml:"playing"`
	FPS           protocol.Float          `json:"fps" yaml:"fps"`
	Paired        bool                    `json:"paired" yaml:"paired"`
	Shadows       int                     `json:"shadows" yaml:"shadows"`
	DroppedTicks  uint64                  `json:"droppedTicks" yaml:"droppedTicks"`
	Tracks        []TrackSnapshot         `json:"tracks" yaml:"tracks"`
	Taken         time.Time               `json:"taken" yaml:"taken"`
}

// Snapshot captures the timeline's current state.
func (tl *Timeline) Snapshot() Snapshot {
	s := Snapshot{
		Name:          tl.name,
		Mode:          tl.sync.mode.String(),
		Config:        tl.cfg.Snapshot(),
		CurrentTime:   protocol.Float(tl.currentTime),
		ReferenceTime: protocol.Float(tl.referenceTime),
		Playing:       tl.playing,
		FPS:           protocol.Float(tl.fps),
		Paired:        tl.sync.paired,
		Shadows:       len(tl.sync.locals) + len(tl.sync.remotes),
		DroppedTicks:  tl.sync.dropped,
		Tracks:        make([]TrackSnapshot, 0, len(tl.tracks)),
		Taken:         time.Now().UTC(),
	}
	for _, t := range tl.tracks {
		s.Tracks = append(s.Tracks, TrackSnapshot{
			ID:        t.id,
			Loop:      t.loop,
			StartTime: protocol.Float(t.startTime),
			EndTime:   protocol.Float(t.endTime),
			Alive:     t.alive,
			Inited:    t.inited,
			Started:   t.started,
			Running:   t.running,
			Iteration: t.iteration,
		})
	}
	return s
}
