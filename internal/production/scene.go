package production

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/easing"
)

// TrackSpec is the file form of a track. Callbacks are attached by a Binder.
type TrackSpec struct {
	ID       string   `yaml:"id"`
	Start    float64  `yaml:"start"`
	End      *float64 `yaml:"end,omitempty"`
	Duration *float64 `yaml:"duration,omitempty"`
	Loop     bool     `yaml:"loop,omitempty"`
	Easing   string   `yaml:"easing,omitempty"`
}

// Scene is a timeline configuration plus its tracks.
type Scene struct {
	Name     string           `yaml:"name"`
	Timeline timelinex.Config `yaml:"timeline"`
	Tracks   []TrackSpec      `yaml:"tracks"`
}

// Binder fills in the callbacks of a track built from spec.
type Binder func(spec TrackSpec, cfg *timelinex.TrackConfig)

// ParseScene decodes a YAML scene. Timeline keys that are left out keep
// their defaults.
func ParseScene(data []byte) (Scene, error) {
	scene := Scene{Timeline: timelinex.DefaultConfig()}
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return Scene{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := scene.Timeline.Validate(); err != nil {
		return Scene{}, err
	}
	for i, spec := range scene.Tracks {
		if _, err := spec.config(); err != nil {
			return Scene{}, fmt.Errorf("track %d (%s): %w", i, spec.ID, err)
		}
	}
	return scene, nil
}

// LoadScene reads a scene file from fs.
func LoadScene(fs afero.Fs, path string) (Scene, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Scene{}, fmt.Errorf("read %s: %w", path, err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return Scene{}, fmt.Errorf("scene %s: %w", path, err)
	}
	return scene, nil
}

func (s TrackSpec) config() (timelinex.TrackConfig, error) {
	ease, err := easing.ByName(s.Easing)
	if err != nil {
		return timelinex.TrackConfig{}, err
	}
	cfg := timelinex.TrackConfig{
		ID:        s.ID,
		Loop:      s.Loop,
		StartTime: s.Start,
		EndTime:   s.End,
		Duration:  s.Duration,
	}
	if ease != nil {
		cfg.Easing = ease
	}
	if _, err := timelinex.NewTrack(cfg); err != nil {
		return timelinex.TrackConfig{}, err
	}
	return cfg, nil
}

// Apply adds the scene's tracks to tl in file order.
func (s Scene) Apply(tl *timelinex.Timeline, bind Binder) ([]*timelinex.Track, error) {
	tracks := make([]*timelinex.Track, 0, len(s.Tracks))
	for _, spec := range s.Tracks {
		cfg, err := spec.config()
		if err != nil {
			return tracks, fmt.Errorf("track %s: %w", spec.ID, err)
		}
		if bind != nil {
			bind(spec, &cfg)
		}
		track, err := tl.AddTrack(cfg)
		if err != nil {
			return tracks, fmt.Errorf("track %s: %w", spec.ID, err)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
