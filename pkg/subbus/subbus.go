// Package subbus implements the board register address space: an
// ordered partition of 16-bit addresses into ranges owned by drivers.
package subbus

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/subbus/pkg/framework"
)

var (
	// ErrDriverOrder indicates a driver is not above all registered ranges.
	ErrDriverOrder = errors.New("driver not in ascending order")
	// ErrDriverRange indicates the driver range doesn't match its cache.
	ErrDriverRange = errors.New("invalid driver range")
	// ErrTooManyDrivers indicates MaxDrivers is exceeded.
	ErrTooManyDrivers = errors.New("too many drivers")
)

// DefaultMaxDrivers is the default limit of registered drivers.
const DefaultMaxDrivers = 16

// Bus dispatches register reads and writes to the owning drivers.
// It is built once at startup, all accesses must come from the
// polling goroutine.
type Bus struct {
	MaxDrivers int
	FailAddr   uint16

	drivers []*Driver
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{MaxDrivers: DefaultMaxDrivers, FailAddr: FailAddr}
}

// Add registers drivers in strictly ascending, non overlapping order.
// On error none of drivers is registered.
func (b *Bus) Add(drivers ...*Driver) error {
	max := b.MaxDrivers
	if max <= 0 {
		max = DefaultMaxDrivers
	}
	last := len(b.drivers) - 1
	prev := func(n int) *Driver {
		if n > 0 {
			return drivers[n-1]
		}
		if last >= 0 {
			return b.drivers[last]
		}
		return nil
	}
	for n, drv := range drivers {
		if err := drv.validate(); err != nil {
			return err
		}
		if len(b.drivers)+n >= max {
			return fmt.Errorf("%w: %s", ErrTooManyDrivers, drv)
		}
		if p := prev(n); p != nil && p.High >= drv.Low {
			return fmt.Errorf("%w: %s after %s", ErrDriverOrder, drv, p)
		}
	}
	for _, drv := range drivers {
		b.drivers = append(b.drivers, drv)
		glog.V(3).Infof("subbus: driver %s registered", drv)
	}
	return nil
}

// MustAdd is Add but panics on error.
func (b *Bus) MustAdd(drivers ...*Driver) *Bus {
	if err := b.Add(drivers...); err != nil {
		panic(err)
	}
	return b
}

// Drivers returns the registered drivers in address order.
func (b *Bus) Drivers() []*Driver {
	return b.drivers
}

func (b *Bus) lookup(addr uint16) (*Driver, *Word) {
	for _, drv := range b.drivers {
		if addr < drv.Low {
			// ranges are sorted, no further range matches.
			return nil, nil
		}
		if addr <= drv.High {
			return drv, &drv.Cache[addr-drv.Low]
		}
	}
	return nil, nil
}

// Read reads the cached value of addr. ack is false when no driver
// owns addr or the word is not readable.
func (b *Bus) Read(addr uint16) (value uint16, ack bool) {
	drv, w := b.lookup(addr)
	if w == nil || !w.Readable {
		return 0, false
	}
	value, w.WasRead = w.Value, true
	if w.Dynamic && drv.OnDemand != nil {
		drv.OnDemand(drv, addr-drv.Low)
	}
	return value, true
}

// Write stores value as a pending write of addr. The owning driver
// decides whether and when it takes effect.
func (b *Bus) Write(addr uint16, value uint16) bool {
	_, w := b.lookup(addr)
	if w == nil || !w.Writable {
		return false
	}
	w.PendingWrite, w.Written = value, true
	return true
}

// Reset calls reset hooks of all drivers in order.
func (b *Bus) Reset() {
	for _, drv := range b.drivers {
		if drv.OnReset != nil {
			drv.OnReset(drv)
		}
	}
}

// Poll calls poll hooks of all drivers in order.
func (b *Bus) Poll() {
	for _, drv := range b.drivers {
		if drv.OnPoll != nil {
			drv.OnPoll(drv)
		}
	}
}

// SetFail writes the fail register.
func (b *Bus) SetFail(value uint16) bool {
	return b.Write(b.FailAddr, value)
}

// AddToLoop implements LoopAdder.
func (b *Bus) AddToLoop(loop *fx.Loop) {
	loop.AddPoller(fx.StageDrivers, fx.PollFunc(func(fx.PollContext) error {
		b.Poll()
		return nil
	}))
}
