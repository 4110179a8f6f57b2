// Package control exposes a running Timeline over HTTP: a JSON-RPC 2.0
// control endpoint, the WebSocket sync endpoint for remote shadows, and
// Prometheus metrics.
package control

import (
	"context"
	"errors"
	"net/http"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/production"
)

// JSON-RPC error codes for timeline operations.
const (
	codeInvalidParams = jrpc2.Code(-32602)
	codeShadowControl = jrpc2.Code(-32010)
	codeDisposed      = jrpc2.Code(-32011)
	codeNotFound      = jrpc2.Code(-32012)
	codeNoPersister   = jrpc2.Code(-32013)
)

// Runner executes fn on the goroutine that owns the timeline.
// *realtime.Loop satisfies it.
type Runner interface {
	Call(ctx context.Context, fn func() error) error
}

// SeekParams is the input for timeline.seek.
type SeekParams struct {
	Time float64 `json:"time"`
}

// FPSParams is the input for timeline.setMaxFPS.
type FPSParams struct {
	MaxFPS float64 `json:"maxFPS"`
}

// NameParams names a stored snapshot.
type NameParams struct {
	Name string `json:"name,omitempty"`
}

// StatusResult is the response for timeline.status.
type StatusResult struct {
	Name        string  `json:"name"`
	Mode        string  `json:"mode"`
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"currentTime"`
	FPS         float64 `json:"fps"`
	Tracks      int     `json:"tracks"`
	Shadows     int     `json:"shadows"`
}

// EmptyResult is returned by methods with nothing to report.
type EmptyResult struct{}

// RPCServer serves timeline.* methods for one timeline.
type RPCServer struct {
	bridge  jhttp.Bridge
	tl      *timelinex.Timeline
	run     Runner
	persist production.Persister
}

// NewRPCServer builds the bridge. persist may be nil, which disables
// timeline.save and timeline.list.
func NewRPCServer(tl *timelinex.Timeline, run Runner, persist production.Persister) *RPCServer {
	rs := &RPCServer{tl: tl, run: run, persist: persist}

	methods := handler.Map{
		"timeline.play":      handler.New(rs.play),
		"timeline.pause":     handler.New(rs.pause),
		"timeline.resume":    handler.New(rs.resume),
		"timeline.stop":      handler.New(rs.stop),
		"timeline.seek":      handler.New(rs.seek),
		"timeline.setMaxFPS": handler.New(rs.setMaxFPS),
		"timeline.status":    handler.New(rs.status),
		"timeline.snapshot":  handler.New(rs.snapshot),
		"timeline.save":      handler.New(rs.save),
		"timeline.list":      handler.New(rs.list),
	}
	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

func (rs *RPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rs.bridge.ServeHTTP(w, r)
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}

func (rs *RPCServer) do(ctx context.Context, fn func() error) (*EmptyResult, error) {
	if err := rs.run.Call(ctx, fn); err != nil {
		return nil, rpcError(err)
	}
	return &EmptyResult{}, nil
}

func (rs *RPCServer) play(ctx context.Context) (*EmptyResult, error) {
	return rs.do(ctx, rs.tl.Play)
}

func (rs *RPCServer) pause(ctx context.Context) (*EmptyResult, error) {
	return rs.do(ctx, rs.tl.Pause)
}

func (rs *RPCServer) resume(ctx context.Context) (*EmptyResult, error) {
	return rs.do(ctx, rs.tl.Resume)
}

func (rs *RPCServer) stop(ctx context.Context) (*EmptyResult, error) {
	return rs.do(ctx, rs.tl.Stop)
}

func (rs *RPCServer) seek(ctx context.Context, p *SeekParams) (*EmptyResult, error) {
	if p.Time < 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "time must be >= 0"}
	}
	return rs.do(ctx, func() error { return rs.tl.Seek(p.Time) })
}

func (rs *RPCServer) setMaxFPS(ctx context.Context, p *FPSParams) (*EmptyResult, error) {
	return rs.do(ctx, func() error { return rs.tl.UpdateMaxFPS(p.MaxFPS) })
}

func (rs *RPCServer) status(ctx context.Context) (*StatusResult, error) {
	var res StatusResult
	err := rs.run.Call(ctx, func() error {
		res = StatusResult{
			Name:        rs.tl.Name(),
			Mode:        rs.tl.Mode().String(),
			Playing:     rs.tl.Playing(),
			CurrentTime: rs.tl.CurrentTime(),
			FPS:         rs.tl.FPS(),
			Tracks:      rs.tl.Len(),
			Shadows:     len(rs.tl.LocalShadows()) + len(rs.tl.RemoteShadows()),
		}
		return nil
	})
	if err != nil {
		return nil, rpcError(err)
	}
	return &res, nil
}

func (rs *RPCServer) snapshot(ctx context.Context) (*timelinex.Snapshot, error) {
	var s timelinex.Snapshot
	if err := rs.run.Call(ctx, func() error { s = rs.tl.Snapshot(); return nil }); err != nil {
		return nil, rpcError(err)
	}
	return &s, nil
}

func (rs *RPCServer) save(ctx context.Context, p *NameParams) (*EmptyResult, error) {
	if rs.persist == nil {
		return nil, &jrpc2.Error{Code: codeNoPersister, Message: "snapshot store not configured"}
	}
	s, err := rs.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = s.Name
	}
	if err := rs.persist.Save(ctx, name, *s); err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return &EmptyResult{}, nil
}

func (rs *RPCServer) list(ctx context.Context) ([]string, error) {
	if rs.persist == nil {
		return nil, &jrpc2.Error{Code: codeNoPersister, Message: "snapshot store not configured"}
	}
	names, err := rs.persist.List(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func rpcError(err error) error {
	switch {
	case errors.Is(err, timelinex.ErrShadowControl):
		return &jrpc2.Error{Code: codeShadowControl, Message: err.Error()}
	case errors.Is(err, timelinex.ErrDisposed):
		return &jrpc2.Error{Code: codeDisposed, Message: err.Error()}
	case errors.Is(err, timelinex.ErrInvalidFPS):
		return &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, production.ErrNotFound):
		return &jrpc2.Error{Code: codeNotFound, Message: err.Error()}
	}
	return err
}
