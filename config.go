package timelinex

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/comalice/timelinex/protocol"
)

// ErrorPolicy decides what a callback error does to a running timeline.
type ErrorPolicy string

const (
	// ErrorPolicyLog logs the error and keeps scheduling ticks.
	ErrorPolicyLog ErrorPolicy = "log"
	// ErrorPolicyIgnore drops the error silently.
	ErrorPolicyIgnore ErrorPolicy = "ignore"
	// ErrorPolicyHalt stops the timeline and surfaces the error.
	ErrorPolicyHalt ErrorPolicy = "halt"
)

// Config is the transmissible timeline configuration. Times are in
// milliseconds.
type Config struct {
	Duration       float64     `yaml:"duration"`
	Loop           bool        `yaml:"loop"`
	AutoRelease    bool        `yaml:"autoRelease"`
	MaxStep        float64     `yaml:"maxStep"`
	MaxFPS         float64     `yaml:"maxFPS"`
	RecordFPSDecay float64     `yaml:"recordFPSDecay"`
	OpenStats      bool        `yaml:"openStats"`
	ErrorPolicy    ErrorPolicy `yaml:"errorPolicy"`
}

// DefaultConfig returns an endless, non-looping timeline with auto release,
// a 1s max step and no FPS cap.
func DefaultConfig() Config {
	return Config{
		Duration:       math.Inf(1),
		Loop:           false,
		AutoRelease:    true,
		MaxStep:        1000,
		MaxFPS:         math.Inf(1),
		RecordFPSDecay: 0.5,
		ErrorPolicy:    ErrorPolicyLog,
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.Duration) || c.Duration < 0 {
		return fmt.Errorf("%w: duration must be >= 0, got %v", ErrInvalidConfig, c.Duration)
	}
	if c.Loop && c.Duration == 0 {
		return fmt.Errorf("%w: a looping timeline needs a duration > 0", ErrInvalidConfig)
	}
	if math.IsNaN(c.MaxStep) || c.MaxStep <= 0 {
		return fmt.Errorf("%w: maxStep must be > 0, got %v", ErrInvalidConfig, c.MaxStep)
	}
	if math.IsNaN(c.MaxFPS) || c.MaxFPS <= 0 {
		return fmt.Errorf("%w: maxFPS must be > 0, got %v", ErrInvalidConfig, c.MaxFPS)
	}
	if math.IsNaN(c.RecordFPSDecay) || c.RecordFPSDecay <= 0 || c.RecordFPSDecay > 1 {
		return fmt.Errorf("%w: recordFPSDecay must be in (0,1], got %v", ErrInvalidConfig, c.RecordFPSDecay)
	}
	switch c.ErrorPolicy {
	case "", ErrorPolicyLog, ErrorPolicyIgnore, ErrorPolicyHalt:
	default:
		return fmt.Errorf("%w: unknown errorPolicy %q", ErrInvalidConfig, c.ErrorPolicy)
	}
	return nil
}

// ParseConfig decodes YAML over DefaultConfig, so omitted keys keep their
// defaults. Use .inf for an endless duration.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Snapshot returns the wire form of the config.
func (c Config) Snapshot() protocol.ConfigSnapshot {
	return protocol.ConfigSnapshot{
		Duration:       protocol.Float(c.Duration),
		Loop:           c.Loop,
		AutoRelease:    c.AutoRelease,
		MaxStep:        protocol.Float(c.MaxStep),
		MaxFPS:         protocol.Float(c.MaxFPS),
		RecordFPSDecay: protocol.Float(c.RecordFPSDecay),
		OpenStats:      c.OpenStats,
		ErrorPolicy:    string(c.ErrorPolicy),
	}
}

// ConfigFromSnapshot is the inverse of Config.Snapshot. Zero or missing
// values fall back to the defaults.
func ConfigFromSnapshot(s protocol.ConfigSnapshot) Config {
	cfg := DefaultConfig()
	cfg.Duration = float64(s.Duration)
	cfg.Loop = s.Loop
	cfg.AutoRelease = s.AutoRelease
	cfg.OpenStats = s.OpenStats
	if s.MaxStep > 0 {
		cfg.MaxStep = float64(s.MaxStep)
	}
	if s.MaxFPS > 0 {
		cfg.MaxFPS = float64(s.MaxFPS)
	}
	if s.RecordFPSDecay > 0 && s.RecordFPSDecay <= 1 {
		cfg.RecordFPSDecay = float64(s.RecordFPSDecay)
	}
	if s.ErrorPolicy != "" {
		cfg.ErrorPolicy = ErrorPolicy(s.ErrorPolicy)
	}
	return cfg
}
