package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// conn is one websocket attached to an instance. The reader runs in the
// HTTP handler goroutine, the writer in its own goroutine; userID is owned
// by the instance loop.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte // nil entry = write close frame and hang up
	done   chan struct{}
	once   sync.Once
	remote string
	log    zerolog.Logger

	userID string
}

func newConn(ws *websocket.Conn, buffer int, log zerolog.Logger) *conn {
	remote := ws.RemoteAddr().String()
	return &conn{
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		remote: remote,
		log:    log.With().Str("remote", remote).Logger(),
	}
}

// enqueue never blocks. A peer that cannot keep up is disconnected.
func (c *conn) enqueue(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.log.Warn().Msg("send buffer full, dropping connection")
		c.close()
	}
}

func (c *conn) write(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode frame")
		return
	}
	c.enqueue(b)
}

func (c *conn) reply(id json.RawMessage, result json.RawMessage) {
	c.write(Response{JSONRPC: Version, Result: result, ID: id})
}

func (c *conn) replyError(id json.RawMessage, e *RPCError) {
	c.write(Response{JSONRPC: Version, Error: e, ID: id})
}

// reject sends a final notice and closes once it is flushed.
func (c *conn) reject(msg string) {
	c.write(Notice{Error: msg})
	c.enqueue(nil)
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) writePump() {
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if msg == nil {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid handshake"))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

// readPump delivers every text frame to onFrame until the socket fails.
func (c *conn) readPump(onFrame func([]byte) bool) {
	defer c.close()
	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if !onFrame(data) {
			return
		}
	}
}
