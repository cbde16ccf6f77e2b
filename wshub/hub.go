package wshub

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 256
	defaultFlushTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Option configures a hub at construction time.
type Option func(*Hub)

// WithEcho makes group broadcasts include the sender.
func WithEcho(echo bool) Option {
	return func(h *Hub) { h.dispatcher.echo = echo }
}

// WithFlushTimeout bounds how long a closing connection may spend draining
// its pending send queue before the socket is released.
func WithFlushTimeout(d time.Duration) Option {
	return func(h *Hub) { h.flushTimeout = d }
}

// WithQueueSize sets the per-connection send queue capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) { h.queueSize = n }
}

// WithBinaryHandler registers the handler for raw binary frames.
func WithBinaryHandler(fn BinaryHandler) Option {
	return func(h *Hub) { h.dispatcher.binary = fn }
}

// Hub owns the accept-to-close lifecycle of every connection: it registers
// accepted connections, runs their serve loops, and guarantees that every
// exit path removes the connection from the registry and all groups before
// the socket is released.
type Hub struct {
	registry   *Registry
	groups     *GroupManager
	dispatcher *Dispatcher

	// Registered listeners.
	listeners []*Listener

	// Inbound frames from the connections.
	inbound chan *Msg

	// Inbound registration requests from new connections.
	register chan *Connection

	// Inbound de-registration requests from expiring connections.
	unregister chan *Connection

	// Inbound listen requests from new listeners.
	listen chan *Listener

	flushTimeout time.Duration
	queueSize    int
}

func NewHub(router *Router, opts ...Option) *Hub {
	groups := NewGroupManager()
	registry := NewRegistry(groups)
	h := &Hub{
		registry: registry,
		groups:   groups,
		dispatcher: &Dispatcher{
			registry: registry,
			groups:   groups,
			router:   router,
		},
		inbound:      make(chan *Msg),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		listen:       make(chan *Listener),
		flushTimeout: defaultFlushTimeout,
		queueSize:    defaultQueueSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterListener subscribes a listener to lifecycle events. The hub's run
// loop must be running.
func (h *Hub) RegisterListener(listener *Listener) {
	h.listen <- listener
}

// Has reports whether an identity is currently connected.
func (h *Hub) Has(identity string) bool {
	return h.registry.Has(identity)
}

// Send delivers a raw text payload to one identity. It fails with
// ErrNotFound if the identity is absent and ErrConnectionClosed if the
// connection is tearing down.
func (h *Hub) Send(identity string, payload []byte) error {
	return h.dispatcher.Send(identity, payload)
}

// Broadcast delivers a raw text payload to every current member of a group,
// best effort.
func (h *Hub) Broadcast(group string, payload []byte) {
	h.dispatcher.Broadcast(group, payload, "")
}

// Join adds a connected identity to a group.
func (h *Hub) Join(identity, group string) error {
	if !h.registry.Has(identity) {
		return ErrNotFound
	}
	h.groups.Join(identity, group)
	return nil
}

// Leave removes an identity from a group.
func (h *Hub) Leave(identity, group string) {
	h.groups.Leave(identity, group)
}

// Members returns the identities currently in a group.
func (h *Hub) Members(group string) []string {
	return h.groups.Members(group)
}

// Connections returns the identities of all connected clients.
func (h *Hub) Connections() []string {
	return h.registry.IDs()
}

// Close starts server-initiated teardown of one connection.
func (h *Hub) Close(identity string) error {
	conn, err := h.registry.Get(identity)
	if err != nil {
		return err
	}
	h.drop(conn)
	return nil
}

// Accept takes ownership of an already-upgraded websocket connection,
// assigns it an identity, registers it, and starts its serve loops. The
// returned handle is valid until the connection closes.
func (h *Hub) Accept(ws *websocket.Conn) *Connection {
	conn := &Connection{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		hub:         h,
		ws:          ws,
		state:       StateOpen,
		send:        make(chan outFrame, h.queueSize),
	}
	h.register <- conn

	// Allow collection of memory referenced by the caller by doing all work
	// in new goroutines.
	go conn.writePump()
	go conn.readPump()

	return conn
}

// ServeRequest upgrades an HTTP request and accepts the resulting
// connection. Handshake policy beyond the default upgrade check belongs to
// the hosting layer.
func (h *Hub) ServeRequest(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	conn := h.Accept(ws)
	zap.L().Info("accepted websocket connection",
		zap.String("connection.id", conn.ID),
	)
}

// dispatch runs on the per-connection read goroutine: the router handler
// fires here so one slow handler cannot stall other connections, then the
// frame is forwarded to the run loop for listeners.
func (h *Hub) dispatch(c *Connection, messageType int, data []byte) {
	h.dispatcher.OnMessage(c, messageType, data)
	h.inbound <- &Msg{ConnectionID: c.ID, Kind: kindOf(messageType), Data: data}
}

// drop requests teardown of a connection without blocking the caller.
func (h *Hub) drop(c *Connection) {
	go func() {
		h.unregister <- c
	}()
}

// Run processes lifecycle events until the context is cancelled. Exactly
// one Run loop per hub.
//
//nolint:gocognit
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case listener := <-h.listen:
			h.listeners = append(h.listeners, listener)
		case conn := <-h.register:
			if err := h.registry.Add(conn); err != nil {
				zap.L().Error("failed to register connection",
					zap.String("connection.id", conn.ID),
					zap.Error(err),
				)
				conn.beginClose(h.flushTimeout)
				continue
			}
			for _, listener := range h.listeners {
				if listener.OnConnect == nil {
					continue
				}
				listener.OnConnect(conn)
			}
		case conn := <-h.unregister:
			if !h.registry.Remove(conn.ID) {
				continue
			}
			conn.beginClose(h.flushTimeout)
			for _, listener := range h.listeners {
				if listener.OnDisconnect == nil {
					continue
				}
				listener.OnDisconnect(conn)
			}
		case msg := <-h.inbound:
			if msg == nil {
				continue
			}
			for _, listener := range h.listeners {
				if listener.OnMessage == nil {
					continue
				}
				listener.OnMessage(msg)
			}
		}
	}
}
