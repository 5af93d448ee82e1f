package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Poller is one cooperative poll step. It must do a bounded amount
// of work and return.
type Poller interface {
	Poll(PollContext) error
}

// PollFunc is the func form of Poller.
type PollFunc func(PollContext) error

// Poll implements Poller.
func (f PollFunc) Poll(pc PollContext) error {
	return f(pc)
}

// TimeSource provides the time of current iteration.
type TimeSource interface {
	Time() time.Time
}

// PollContext provides the context of current poll iteration.
type PollContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Stage gets the current stage.
	Stage() int
	// Iteration is the sequence number of current iteration, starting from 1.
	Iteration() uint64

	LoopControl
}

// LoopControl exposes access to the polling loop.
type LoopControl interface {
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

// Stages is the total number of stages in one iteration.
const Stages int = 8

// Predefined stages, pollers run in ascending stage order.
const (
	StageFirst int = 0
	// StageDrivers is where address-space drivers refresh their caches.
	StageDrivers int = 2
	// StageProtocol is where protocol engines consume and produce frames.
	StageProtocol int = 4
	// StageHousekeeping runs after protocol processing.
	StageHousekeeping int = 6
	StageLast         int = Stages - 1
)
