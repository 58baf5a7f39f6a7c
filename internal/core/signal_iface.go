package core

// Frame is one serialized event sent to a subscriber.
type Frame []byte

type SessionID string

// SignalConnection abstracts the subscriber transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
