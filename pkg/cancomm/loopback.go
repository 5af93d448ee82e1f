package cancomm

import "sync"

// DefaultLoopbackCapacity is the receive queue depth of a loopback endpoint.
const DefaultLoopbackCapacity = 16

// Loopback is one end of an in-memory point-to-point CAN link, for
// tests and simulations. It supports injecting backpressure and send
// errors.
type Loopback struct {
	peer     *Loopback
	capacity int

	lock         sync.Mutex
	rx           []Frame
	sent         []Frame
	notify       func()
	backpressure int
	sendErrs     []error
	recvErrs     []error
	closed       bool
}

// NewLoopback creates two connected endpoints, each able to queue
// capacity received frames.
func NewLoopback(capacity int) (*Loopback, *Loopback) {
	if capacity <= 0 {
		capacity = DefaultLoopbackCapacity
	}
	a, b := &Loopback{capacity: capacity}, &Loopback{capacity: capacity}
	a.peer, b.peer = b, a
	return a, b
}

// TrySend implements Transport.
func (l *Loopback) TrySend(f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	l.lock.Lock()
	switch {
	case l.closed:
		l.lock.Unlock()
		return ErrClosed
	case l.backpressure > 0:
		l.backpressure--
		l.lock.Unlock()
		return ErrNoResource
	case len(l.sendErrs) > 0:
		err := l.sendErrs[0]
		l.sendErrs = l.sendErrs[1:]
		l.lock.Unlock()
		return err
	}
	l.lock.Unlock()

	if !l.peer.deliver(f) {
		return ErrNoResource
	}
	l.lock.Lock()
	l.sent = append(l.sent, f)
	l.lock.Unlock()
	return nil
}

func (l *Loopback) deliver(f Frame) bool {
	l.lock.Lock()
	if l.closed {
		// frames to a closed peer are lost on the wire.
		l.lock.Unlock()
		return true
	}
	if len(l.rx) >= l.capacity {
		l.lock.Unlock()
		return false
	}
	l.rx = append(l.rx, f)
	notify := l.notify
	l.lock.Unlock()
	if notify != nil {
		notify()
	}
	return true
}

// TryReceive implements Transport.
func (l *Loopback) TryReceive() (Frame, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(l.recvErrs) > 0 {
		err := l.recvErrs[0]
		l.recvErrs = l.recvErrs[1:]
		return Frame{}, err
	}
	if len(l.rx) == 0 {
		if l.closed {
			return Frame{}, ErrClosed
		}
		return Frame{}, ErrNoMessage
	}
	f := l.rx[0]
	l.rx = l.rx[1:]
	return f, nil
}

// SetNotify implements Notifier.
func (l *Loopback) SetNotify(fn func()) {
	l.lock.Lock()
	l.notify = fn
	l.lock.Unlock()
}

// InjectBackpressure makes the next n TrySend calls fail with ErrNoResource.
func (l *Loopback) InjectBackpressure(n int) {
	l.lock.Lock()
	l.backpressure += n
	l.lock.Unlock()
}

// InjectSendError makes the next TrySend calls fail with errs in order.
func (l *Loopback) InjectSendError(errs ...error) {
	l.lock.Lock()
	l.sendErrs = append(l.sendErrs, errs...)
	l.lock.Unlock()
}

// InjectReceiveError makes the next TryReceive calls fail with errs in order.
func (l *Loopback) InjectReceiveError(errs ...error) {
	l.lock.Lock()
	l.recvErrs = append(l.recvErrs, errs...)
	l.lock.Unlock()
}

// Sent returns and forgets frames successfully sent from this end.
func (l *Loopback) Sent() []Frame {
	l.lock.Lock()
	defer l.lock.Unlock()
	sent := l.sent
	l.sent = nil
	return sent
}

// Pending returns the number of frames waiting to be received.
func (l *Loopback) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.rx)
}

// Close implements io.Closer.
func (l *Loopback) Close() error {
	l.lock.Lock()
	l.closed = true
	l.lock.Unlock()
	return nil
}
