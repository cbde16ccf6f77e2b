// Package wshub manages live websocket connections for a hosting web
// server: an identity-keyed registry of connection handles, named groups
// for scoped broadcast, and a route/event dispatcher that invokes
// application handlers for each inbound request envelope.
//
// The hosting layer owns the HTTP handshake and upgrade; the hub takes
// over from Accept (or ServeRequest) and guarantees that every exit path
// unregisters the connection and releases the socket.
package wshub
