package cancomm

import "sync/atomic"

// Transport is the non-blocking CAN driver interface.
type Transport interface {
	// TrySend queues a frame for transmission. It returns ErrNoResource
	// if there's no room, the frame was not queued and may be retried.
	TrySend(Frame) error
	// TryReceive retrieves the next received frame in arrival order,
	// or ErrNoMessage.
	TryReceive() (Frame, error)
}

// Notifier is implemented by transports receiving frames in the
// background. The callback is invoked once per received frame from
// the receiving goroutine and must only do minimal signalling.
type Notifier interface {
	SetNotify(func())
}

// Flag is a completion flag set by a producer context and consumed
// by the polling loop.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag.
func (f *Flag) Set() {
	f.v.Store(true)
}

// TestAndClear reports whether the flag was raised and lowers it.
func (f *Flag) TestAndClear() bool {
	return f.v.Swap(false)
}

// IsSet peeks at the flag.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}
