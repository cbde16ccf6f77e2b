package wshub

// Listener receives lifecycle notifications for every connection on a hub.
// Callbacks run on the hub's run loop; long work should be handed off.
type Listener struct {
	// ID names the listener in logs.
	ID string

	// The handler for inbound frames.
	OnMessage func(*Msg)

	// The handler for new connections.
	OnConnect func(*Connection)

	// The handler for disconnections.
	OnDisconnect func(*Connection)
}
