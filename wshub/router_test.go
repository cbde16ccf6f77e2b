package wshub

import "testing"

func TestRouterLookup(t *testing.T) {
	router := NewRouter()
	router.Route("echo").Handle("ping", func(ctx *Context) error { return nil })

	if _, ok := router.lookup("echo", "ping"); !ok {
		t.Fatal("expected registered handler to resolve")
	}
	if _, ok := router.lookup("echo", "pong"); ok {
		t.Fatal("expected unknown event to miss")
	}
	if _, ok := router.lookup("nope", "ping"); ok {
		t.Fatal("expected unknown route to miss")
	}
}

func TestRouteIsReusedAcrossCalls(t *testing.T) {
	router := NewRouter()
	first := router.Route("echo")
	second := router.Route("echo")

	if first != second {
		t.Fatal("expected the same route instance on repeat calls")
	}
}

func TestDuplicateEventRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()

	router := NewRouter()
	router.Route("echo").
		Handle("ping", func(ctx *Context) error { return nil }).
		Handle("ping", func(ctx *Context) error { return nil })
}
