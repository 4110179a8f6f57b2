package control

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/internal/production"
	"github.com/comalice/timelinex/transport"
)

// Options configures NewMux.
type Options struct {
	Timeline *timelinex.Timeline
	Runner   Runner
	// Persister backs timeline.save. Optional.
	Persister production.Persister
	// Gatherer serves /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Mux routes the origin's HTTP surface. Close it to release the RPC bridge.
type Mux struct {
	*http.ServeMux
	rpc *RPCServer
}

// NewMux registers:
//
//	/rpc      JSON-RPC 2.0 control
//	/sync     WebSocket endpoint for remote shadows
//	/metrics  Prometheus exposition
//	/healthz  liveness
func NewMux(opts Options) *Mux {
	log := opts.Logger
	if log == nil {
		log = logging.WithComponent(nil, "control")
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	m := &Mux{
		ServeMux: http.NewServeMux(),
		rpc:      NewRPCServer(opts.Timeline, opts.Runner, opts.Persister),
	}
	m.Handle("/rpc", m.rpc)
	m.Handle("/sync", transport.Handler(func(c *transport.WSChannel) {
		acceptShadow(opts.Timeline, opts.Runner, c, log)
	}, log))
	m.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	m.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return m
}

// Close releases the RPC bridge.
func (m *Mux) Close() {
	m.rpc.Close()
}

// acceptShadow listens on c until the connection ends.
func acceptShadow(tl *timelinex.Timeline, run Runner, c *transport.WSChannel, log *slog.Logger) {
	ctx := context.Background()
	if err := run.Call(ctx, func() error { return tl.Listen(c) }); err != nil {
		log.Warn("refusing shadow connection", "error", err)
		c.Close()
		return
	}
	log.Info("shadow connected")
	go func() {
		<-c.Done()
		run.Call(ctx, func() error {
			tl.StopListen(c)
			return nil
		})
		log.Info("shadow disconnected", "error", c.Err())
	}()
}
