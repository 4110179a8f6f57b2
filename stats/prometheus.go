package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the timeline collectors. One Metrics serves any number of
// timelines, each labelled by name.
type Metrics struct {
	Ticks        *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	TickDuration *prometheus.HistogramVec
	FPS          *prometheus.GaugeVec
	CurrentTime  *prometheus.GaugeVec
	Tracks       *prometheus.GaugeVec
	Dropped      *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timelinex_ticks_total",
			Help: "Ticks processed per timeline",
		}, []string{"timeline"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timelinex_tick_failures_total",
			Help: "Ticks aborted by a callback error",
		}, []string{"timeline"}),
		TickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timelinex_tick_duration_seconds",
			Help:    "Wall time spent in one tick, fan-out and sync included",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"timeline"}),
		FPS: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timelinex_fps",
			Help: "Smoothed frames per second",
		}, []string{"timeline"}),
		CurrentTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timelinex_current_time_ms",
			Help: "Timeline position in milliseconds",
		}, []string{"timeline"}),
		Tracks: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timelinex_tracks",
			Help: "Tracks currently in the timeline",
		}, []string{"timeline"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "timelinex_sync_dropped_ticks_total",
			Help: "TICK messages dropped because a remote shadow fell behind",
		}, []string{"timeline"}),
	}
}

// Sink returns a Sink that reports under the given timeline name.
func (m *Metrics) Sink(name string) *PrometheusSink {
	return &PrometheusSink{m: m, name: name, now: time.Now}
}

// PrometheusSink exports samples through Metrics.
type PrometheusSink struct {
	m    *Metrics
	name string
	now  func() time.Time

	mu    sync.Mutex
	begin time.Time
}

func (s *PrometheusSink) Begin() {
	s.mu.Lock()
	s.begin = s.now()
	s.mu.Unlock()
}

func (s *PrometheusSink) End(sample Sample) {
	s.mu.Lock()
	elapsed := s.now().Sub(s.begin)
	s.mu.Unlock()

	s.m.Ticks.WithLabelValues(s.name).Inc()
	if sample.Failed {
		s.m.Failures.WithLabelValues(s.name).Inc()
	}
	s.m.TickDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
	s.m.FPS.WithLabelValues(s.name).Set(sample.FPS)
	s.m.CurrentTime.WithLabelValues(s.name).Set(sample.CurrentTime)
	s.m.Tracks.WithLabelValues(s.name).Set(float64(sample.Tracks))
}

// AddDropped counts sync ticks dropped for a slow shadow.
func (s *PrometheusSink) AddDropped(n int) {
	s.m.Dropped.WithLabelValues(s.name).Add(float64(n))
}
