package wshub

import (
	"fmt"
	"sync"
)

// HandlerFunc handles one decoded request. A returned error is logged,
// answered to the sender as an error response, and never tears down the
// connection.
type HandlerFunc func(ctx *Context) error

// Route groups event handlers under one route name.
type Route struct {
	name string

	mu     sync.RWMutex
	events map[string]HandlerFunc
}

// Handle registers the handler for an event on this route. Registering the
// same event twice is a programming error and panics.
func (r *Route) Handle(event string, fn HandlerFunc) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event]; ok {
		panic(fmt.Sprintf("event %q already registered on route %q", event, r.name))
	}
	r.events[event] = fn
	return r
}

func (r *Route) lookup(event string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.events[event]
	return fn, ok
}

// Router maps route and event names from the request envelope to their
// handlers. Handlers are resolved into the table at registration time.
type Router struct {
	mu     sync.RWMutex
	routes map[string]*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[string]*Route),
	}
}

// Route returns the named route, creating it on first use.
func (r *Router) Route(name string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[name]
	if !ok {
		route = &Route{name: name, events: make(map[string]HandlerFunc)}
		r.routes[name] = route
	}
	return route
}

func (r *Router) lookup(route, event string) (HandlerFunc, bool) {
	r.mu.RLock()
	rt, ok := r.routes[route]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return rt.lookup(event)
}
