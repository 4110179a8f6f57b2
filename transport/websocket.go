package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Shadows are not browsers; any origin may pair.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSChannel carries sync messages as JSON text frames over a WebSocket.
type WSChannel struct {
	conn *websocket.Conn
	subs subscribers
	send chan []byte
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// NewWSChannel wraps an established connection and starts its pumps.
func NewWSChannel(conn *websocket.Conn, log *slog.Logger) *WSChannel {
	if log == nil {
		log = logging.WithComponent(nil, "transport")
	}
	c := &WSChannel{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  log.With("remote", conn.RemoteAddr().String()),
		done: make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

// Dial connects to a sync endpoint such as ws://host:port/sync.
func Dial(ctx context.Context, url string, log *slog.Logger) (*WSChannel, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSChannel(conn, log), nil
}

// Handler upgrades requests and hands each new channel to accept. accept
// runs on the request goroutine and should not block.
func Handler(accept func(*WSChannel), log *slog.Logger) http.Handler {
	if log == nil {
		log = logging.WithComponent(nil, "transport")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		accept(NewWSChannel(conn, log))
	})
}

// Post encodes m and queues it for the write pump.
func (c *WSChannel) Post(m protocol.Message) error {
	if err := protocol.Validate(m); err != nil {
		return err
	}
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Subscribe registers fn for decoded inbound messages. fn runs on the read
// goroutine.
func (c *WSChannel) Subscribe(fn func(protocol.Message)) (cancel func()) {
	return c.subs.add(fn)
}

// Done is closed when the connection ends.
func (c *WSChannel) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, nil for a clean Close.
func (c *WSChannel) Err() error {
	<-c.done
	return c.err
}

// Close sends a close frame and tears the connection down.
func (c *WSChannel) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.finish(nil)
	return nil
}

func (c *WSChannel) finish(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}

func (c *WSChannel) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				err = nil
			}
			c.finish(err)
			return
		}
		m, err := protocol.Decode(data)
		if err != nil {
			c.log.Debug("dropping bad message", "error", err)
			continue
		}
		c.subs.deliver(m)
	}
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.finish(err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.finish(err)
				return
			}
		case <-c.done:
			return
		}
	}
}
