// ABOUTME: Websocket connection wrapper with a single writer goroutine
// ABOUTME: Send is non-blocking; events are dropped for connections that fall behind

package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DropCounter is notified when an event is dropped for a slow connection.
type DropCounter interface {
	Inc()
}

// Conn wraps a websocket connection. All writes funnel through a buffered
// channel into one writer goroutine; gorilla connections do not allow
// concurrent writers.
type Conn struct {
	id     string
	ws     *websocket.Conn
	sendCh chan []byte

	writeTimeout time.Duration
	dropped      DropCounter
	logger       *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// newConn wraps ws and starts its writer goroutine.
func newConn(ws *websocket.Conn, sendBuffer int, writeTimeout time.Duration, dropped DropCounter, logger *slog.Logger) *Conn {
	c := &Conn{
		id:           uuid.New().String(),
		ws:           ws,
		sendCh:       make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		dropped:      dropped,
		logger:       logger,
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection's unique ID (distinct from the user's ID; a user
// reconnecting gets a fresh connection ID).
func (c *Conn) ID() string {
	return c.id
}

// Send encodes and queues an event frame. Never blocks: if the connection's
// buffer is full the frame is dropped, matching the protocol's best-effort
// delivery.
func (c *Conn) Send(event string, payload any) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		c.logger.Error("encoding frame", "event", event, "error", err)
		return
	}

	select {
	case c.sendCh <- data:
	case <-c.done:
	default:
		if c.dropped != nil {
			c.dropped.Inc()
		}
		c.logger.Debug("dropped event for slow connection", "conn", c.id, "event", event)
	}
}

// SendError reports a failure to this connection only.
func (c *Conn) SendError(msg string) {
	c.Send(EventError, ErrorPayload{Message: msg})
}

// Close shuts down the writer and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "conn", c.id, "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: raw})
}
