package wshub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// State of a connection. Transitions are one way: Open, then Closing once
// teardown begins, then Closed once the socket is released.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

type outFrame struct {
	messageType int
	data        []byte
}

// Connection wraps one accepted client socket. It owns the socket
// exclusively: readPump is the only reader and writePump the only writer.
type Connection struct {
	// ID of the connection, assigned at accept time.
	ID string
	// ConnectedAt records when the connection was accepted.
	ConnectedAt time.Time

	// The hub that owns this connection's lifecycle.
	hub *Hub
	// The websocket connection.
	ws *websocket.Conn

	mu            sync.Mutex
	state         State
	send          chan outFrame
	closeDeadline time.Time
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// enqueue queues one outbound frame. It fails with ErrConnectionClosed once
// the connection has left the Open state. A full queue means the peer
// stopped draining; the connection is dropped rather than blocking every
// sender behind it.
func (c *Connection) enqueue(messageType int, data []byte) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	select {
	case c.send <- outFrame{messageType: messageType, data: data}:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	zap.L().Warn("dropping connection with full send queue",
		zap.String("connection.id", c.ID),
	)
	c.hub.drop(c)
	return ErrConnectionClosed
}

// beginClose moves the connection to Closing and closes the send queue so
// writePump can flush what remains. Idempotent.
func (c *Connection) beginClose(flushTimeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return
	}
	c.state = StateClosing
	c.closeDeadline = time.Now().Add(flushTimeout)
	close(c.send)
}

func (c *Connection) markClosed() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

// writeDeadline bounds a single write, or the whole remaining flush once
// the connection is Closing.
func (c *Connection) writeDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosing {
		return c.closeDeadline
	}
	return time.Now().Add(writeWait)
}

// readPump pumps messages from the websocket connection into the hub.
//
// The hub runs readPump in a per-connection goroutine, so a slow handler on
// one connection never stalls another. The application ensures that there is
// at most one reader on a connection by executing all reads from this
// goroutine.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		zap.L().Warn("failed to set read deadline", zap.Error(err))
		return
	}
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.L().Error("websocket connection closed unexpectedly",
					zap.String("connection.id", c.ID),
					zap.Error(&TransportError{Op: "read", Err: err}),
				)
				// will be unregistered in defer
			}
			return
		}
		c.hub.dispatch(c, messageType, data)
	}
}

func (c *Connection) onSend(frame outFrame) error {
	_ = c.ws.SetWriteDeadline(c.writeDeadline())
	if err := c.ws.WriteMessage(frame.messageType, frame.data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (c *Connection) keepAlive() error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	return nil
}

// writePump pumps queued frames to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine. After beginClose, the pump
// drains whatever fits inside the flush deadline, writes the close frame,
// and releases the socket; flush errors are logged and never block teardown.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markClosed()
		c.ws.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				// The hub closed the queue and everything buffered has
				// been drained.
				_ = c.ws.SetWriteDeadline(c.writeDeadline())
				if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					zap.L().Debug("failed to write close message",
						zap.String("connection.id", c.ID),
						zap.Error(err),
					)
				}
				return
			}
			if err := c.onSend(frame); err != nil {
				zap.L().Error("failed to send message",
					zap.String("connection.id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.keepAlive(); err != nil {
				zap.L().Warn("failed to send keep alive",
					zap.String("connection.id", c.ID),
					zap.Error(err),
				)
				continue
			}
		}
	}
}
