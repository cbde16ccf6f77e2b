package wsmaster

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPushEndpointForConnection(t *testing.T) {
	got := PushEndpointForConnection("http://localhost:8081/", "/ws/", "abc123")
	want := "http://localhost:8081/ws/@connections/abc123"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPushPostsPayload(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoint := PushEndpointForConnection(srv.URL, "ws", "abc123")
	if _, err := Push(context.Background(), endpoint, []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if string(received) != `{"hello":"world"}` {
		t.Fatalf("unexpected payload %s", received)
	}
}

func TestPushGoneConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	endpoint := PushEndpointForConnection(srv.URL, "ws", "gone")
	_, err := Push(context.Background(), endpoint, []byte("{}"))
	if err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("expected gone error, got %v", err)
	}
}
