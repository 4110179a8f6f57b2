package transport_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/protocol"
	"github.com/comalice/timelinex/testutil"
	"github.com/comalice/timelinex/transport"
)

var (
	_ timelinex.Channel = (*transport.Pipe)(nil)
	_ timelinex.Channel = (*transport.WSChannel)(nil)
)

type inbox struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (b *inbox) add(m protocol.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

func (b *inbox) snapshot() []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Message(nil), b.msgs...)
}

func TestPipe_DeliversInOrder(t *testing.T) {
	a, b := transport.NewPipe()
	defer a.Close()

	var got inbox
	cancel := b.Subscribe(got.add)
	assert.Equal(t, 1, b.Subscribers())

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, a.Post(protocol.NewDone(id)))
	}
	require.Eventually(t, func() bool { return len(got.snapshot()) == 3 }, time.Second, time.Millisecond)
	msgs := got.snapshot()
	assert.Equal(t, "1", msgs[0].ShadowID)
	assert.Equal(t, "3", msgs[2].ShadowID)

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
}

func TestPipe_RejectsInvalidAndClosed(t *testing.T) {
	a, b := transport.NewPipe()
	assert.ErrorIs(t, a.Post(protocol.Message{Type: "BOGUS", ShadowID: "x"}), protocol.ErrInvalidMessage)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, a.Post(protocol.NewDone("x")), transport.ErrClosed)
	assert.NoError(t, a.Close())
}

func newWSPair(t *testing.T) (server, client *transport.WSChannel) {
	t.Helper()
	accepted := make(chan *transport.WSChannel, 1)
	srv := httptest.NewServer(transport.Handler(func(c *transport.WSChannel) { accepted <- c }, logging.Discard()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := transport.Dial(context.Background(), url, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}
	t.Cleanup(func() { server.Close() })
	return server, client
}

func TestWSChannel_RoundTrip(t *testing.T) {
	server, client := newWSPair(t)

	var got inbox
	server.Subscribe(got.add)

	tick, err := protocol.NewTick("s1", protocol.TickPayload{CurrentTime: 12.5, Duration: protocol.Float(1e9)})
	require.NoError(t, err)
	require.NoError(t, client.Post(protocol.NewPairingRequest("s1")))
	require.NoError(t, client.Post(tick))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	msgs := got.snapshot()
	assert.Equal(t, protocol.TypePairingRequest, msgs[0].Type)
	p, err := msgs[1].DecodeTick()
	require.NoError(t, err)
	assert.Equal(t, protocol.Float(12.5), p.CurrentTime)
}

func TestWSChannel_CloseEndsPeer(t *testing.T) {
	server, client := newWSPair(t)

	require.NoError(t, client.Close())
	select {
	case <-server.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server side did not observe the close")
	}
	assert.NoError(t, server.Err())
	assert.ErrorIs(t, client.Post(protocol.NewDone("x")), transport.ErrClosed)
}

func TestWSChannel_SyncsTimelines(t *testing.T) {
	server, client := newWSPair(t)

	od := testutil.NewManualDriver()
	sd := testutil.NewLoopDriver(5 * time.Millisecond)
	require.NoError(t, sd.Start(context.Background()))
	defer sd.Stop()

	cfg := timelinex.DefaultConfig()
	cfg.Duration = 3000
	origin, err := timelinex.New(cfg, timelinex.WithName("origin"),
		timelinex.WithClock(od.Clock()), timelinex.WithScheduler(od.Scheduler()),
		timelinex.WithLogger(logging.Discard()))
	require.NoError(t, err)
	shadow, err := timelinex.New(timelinex.DefaultConfig(), timelinex.WithName("shadow"),
		timelinex.WithClock(sd.Clock()), timelinex.WithScheduler(sd.Scheduler()),
		timelinex.WithLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, origin.Listen(server))
	var pairErr error
	sd.Run(func() { pairErr = shadow.SetRemoteOrigin(client) })
	require.NoError(t, pairErr)

	// The origin runs on a manual scheduler; pump it until INIT goes out.
	paired := func() bool {
		od.Sched.Drain()
		var ok bool
		sd.Run(func() { ok = shadow.Paired() })
		return ok
	}
	require.Eventually(t, paired, 2*time.Second, 5*time.Millisecond)

	var duration float64
	sd.Run(func() { duration = shadow.Duration() })
	assert.Equal(t, 3000.0, duration)

	require.NoError(t, origin.Seek(750))
	require.NoError(t, origin.Tick())

	require.Eventually(t, func() bool {
		od.Sched.Drain()
		var at float64
		sd.Run(func() { at = shadow.CurrentTime() })
		return at == 750
	}, 2*time.Second, 5*time.Millisecond)
}
