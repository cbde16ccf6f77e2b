package wshub

import (
	"errors"
	"testing"
)

func newTestRegistry() (*Registry, *GroupManager) {
	groups := NewGroupManager()
	return NewRegistry(groups), groups
}

func TestRegistryAddGetRemove(t *testing.T) {
	registry, _ := newTestRegistry()
	conn := &Connection{ID: "a"}

	if err := registry.Add(conn); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	got, err := registry.Get("a")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got != conn {
		t.Fatal("get returned a different handle")
	}

	if !registry.Remove("a") {
		t.Fatal("expected remove to report a removal")
	}
	if _, err := registry.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRejectsDuplicateIdentity(t *testing.T) {
	registry, _ := newTestRegistry()

	if err := registry.Add(&Connection{ID: "a"}); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := registry.Add(&Connection{ID: "a"}); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	registry, _ := newTestRegistry()

	if err := registry.Add(&Connection{ID: "a"}); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if !registry.Remove("a") {
		t.Fatal("expected first remove to report a removal")
	}
	if registry.Remove("a") {
		t.Fatal("expected second remove to be a no-op")
	}
	if registry.Remove("never-existed") {
		t.Fatal("expected removing an absent identity to be a no-op")
	}
}

func TestRegistryRemoveClearsGroupMembership(t *testing.T) {
	registry, groups := newTestRegistry()

	if err := registry.Add(&Connection{ID: "a"}); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	groups.Join("a", "room1")
	groups.Join("a", "room2")

	registry.Remove("a")

	if members := groups.Members("room1"); len(members) != 0 {
		t.Fatalf("expected empty room1, got %v", members)
	}
	if got := groups.Groups(); len(got) != 0 {
		t.Fatalf("expected no groups left, got %v", got)
	}
}

func TestListByGroupSkipsUnregisteredMembers(t *testing.T) {
	registry, groups := newTestRegistry()

	if err := registry.Add(&Connection{ID: "a"}); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := registry.Add(&Connection{ID: "b"}); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	groups.Join("a", "room1")
	groups.Join("b", "room1")
	// A member whose connection already went away must be skipped, not fail
	// the whole listing.
	groups.Join("ghost", "room1")

	handles := registry.ListByGroup("room1")
	if len(handles) != 2 {
		t.Fatalf("expected 2 live handles, got %d", len(handles))
	}
	for _, conn := range handles {
		if conn.ID != "a" && conn.ID != "b" {
			t.Fatalf("unexpected handle %s", conn.ID)
		}
	}
}
