package wshub

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BinaryHandler receives raw binary frames. Binary payloads bypass the
// request envelope; their encoding is the application's concern.
type BinaryHandler func(conn *Connection, data []byte)

// Dispatcher routes inbound frames to registered handlers and outbound
// messages to their target connections.
type Dispatcher struct {
	registry *Registry
	groups   *GroupManager
	router   *Router
	binary   BinaryHandler
	echo     bool
}

// Context carries one inbound request through its handler, along with the
// operations the handler may call back into.
type Context struct {
	Request *Request

	dispatcher *Dispatcher
	conn       *Connection
}

// ConnectionID returns the identity of the connection that sent the request.
func (c *Context) ConnectionID() string { return c.conn.ID }

// Bind unmarshals the request's data payload into v.
func (c *Context) Bind(v any) error {
	if len(c.Request.Data) == 0 {
		return errors.New("request has no data payload")
	}
	if err := json.Unmarshal(c.Request.Data, v); err != nil {
		return fmt.Errorf("failed to bind request data: %w", err)
	}
	return nil
}

// Reply sends a success response for the current request back to its sender.
func (c *Context) Reply(data any) error {
	payload, err := json.Marshal(&Response{
		ID:    c.Request.ID,
		Route: c.Request.Route,
		Event: c.Request.Event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return c.conn.enqueue(websocket.TextMessage, payload)
}

// Send delivers a response-shaped message for the current request to another
// identity. It fails with ErrNotFound if the identity is absent and
// ErrConnectionClosed if it is tearing down.
func (c *Context) Send(identity string, data any) error {
	payload, err := json.Marshal(&Response{
		ID:    c.Request.ID,
		Route: c.Request.Route,
		Event: c.Request.Event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return c.dispatcher.Send(identity, payload)
}

// Broadcast delivers a response-shaped message for the current request to
// every member of the group. The sender is excluded unless the hub was
// configured to echo.
func (c *Context) Broadcast(group string, data any) error {
	payload, err := json.Marshal(&Response{
		ID:    c.Request.ID,
		Route: c.Request.Route,
		Event: c.Request.Event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	exclude := c.conn.ID
	if c.dispatcher.echo {
		exclude = ""
	}
	c.dispatcher.Broadcast(group, payload, exclude)
	return nil
}

// Join adds the sender to a group.
func (c *Context) Join(group string) { c.dispatcher.groups.Join(c.conn.ID, group) }

// Leave removes the sender from a group.
func (c *Context) Leave(group string) { c.dispatcher.groups.Leave(c.conn.ID, group) }

// OnMessage decodes one inbound frame and invokes the matching handler.
// Handler errors and panics are captured here so one failing handler never
// tears down the connection loop.
func (d *Dispatcher) OnMessage(conn *Connection, messageType int, data []byte) {
	switch messageType {
	case websocket.BinaryMessage:
		if d.binary == nil {
			return
		}
		if err := d.invokeBinary(conn, data); err != nil {
			zap.L().Error("binary handler failed",
				zap.String("connection.id", conn.ID),
				zap.Error(err),
			)
		}
	case websocket.TextMessage:
		d.onRequest(conn, data)
	}
}

func (d *Dispatcher) onRequest(conn *Connection, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		zap.L().Warn("received malformed request",
			zap.String("connection.id", conn.ID),
			zap.Error(err),
		)
		d.replyError(conn, &req, "malformed request")
		return
	}

	fn, ok := d.router.lookup(req.Route, req.Event)
	if !ok {
		zap.L().Warn("no handler for request",
			zap.String("connection.id", conn.ID),
			zap.String("request.route", req.Route),
			zap.String("request.event", req.Event),
		)
		d.replyError(conn, &req, fmt.Sprintf("unknown route/event %s/%s", req.Route, req.Event))
		return
	}

	ctx := &Context{Request: &req, dispatcher: d, conn: conn}
	if err := d.invoke(ctx, fn); err != nil {
		zap.L().Error("handler failed",
			zap.String("connection.id", conn.ID),
			zap.String("request.route", req.Route),
			zap.String("request.event", req.Event),
			zap.Error(err),
		)
		d.replyError(conn, &req, err.Error())
	}
}

func (d *Dispatcher) invoke(ctx *Context, fn HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				Route: ctx.Request.Route,
				Event: ctx.Request.Event,
				Err:   fmt.Errorf("panic: %v", r),
			}
		}
	}()
	if handlerErr := fn(ctx); handlerErr != nil {
		return &HandlerError{
			Route: ctx.Request.Route,
			Event: ctx.Request.Event,
			Err:   handlerErr,
		}
	}
	return nil
}

func (d *Dispatcher) invokeBinary(conn *Connection, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Route: "binary", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	d.binary(conn, data)
	return nil
}

func (d *Dispatcher) replyError(conn *Connection, req *Request, message string) {
	payload, err := json.Marshal(&Response{
		ID:    req.ID,
		Route: req.Route,
		Event: req.Event,
		Error: &message,
	})
	if err != nil {
		zap.L().Error("failed to marshal error response", zap.Error(err))
		return
	}
	if err := conn.enqueue(websocket.TextMessage, payload); err != nil {
		zap.L().Debug("failed to deliver error response",
			zap.String("connection.id", conn.ID),
			zap.Error(err),
		)
	}
}

// Send enqueues a raw text payload on the target identity's send queue.
func (d *Dispatcher) Send(identity string, payload []byte) error {
	conn, err := d.registry.Get(identity)
	if err != nil {
		return err
	}
	return conn.enqueue(websocket.TextMessage, payload)
}

// Broadcast delivers a raw text payload to every member of the group at
// call time, skipping exclude. Delivery is best effort: a member that
// disconnects mid-broadcast is skipped, never aborting delivery to the rest.
func (d *Dispatcher) Broadcast(group string, payload []byte, exclude string) {
	for _, conn := range d.registry.ListByGroup(group) {
		if conn.ID == exclude {
			continue
		}
		if err := conn.enqueue(websocket.TextMessage, payload); err != nil {
			zap.L().Debug("skipping group member during broadcast",
				zap.String("connection.id", conn.ID),
				zap.String("group.name", group),
				zap.Error(err),
			)
		}
	}
}
