package core

// Frame is a single encoded event ready for the wire.
type Frame []byte

// Conn is a transport endpoint bound to one client.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// ID identifies the physical connection, not the user behind it.
	ID() string
	TrySend(Frame) error
	Close()
}

// Emitter fans events out to connections. Emit is room-scoped, EmitAll is
// process-wide. Delivery is at-most-once per connection per emission.
type Emitter interface {
	Emit(room string, event string, v any)
	EmitAll(event string, v any)
}
