package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop repeatedly runs registered pollers in a fixed order from a
// single goroutine. Pollers never run concurrently with each other.
type Loop struct {
	// Interval is the maximum idle time between iterations.
	Interval time.Duration

	stages  [Stages]pollerList
	runners []Runnable
	iter    uint64

	wakeUpCh chan struct{}
	initOnce sync.Once
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx   context.Context
	time  time.Time
	stage int
	num   uint64
}

type pollerList struct {
	pollers []Poller
}

type loopCtxKeyType struct{}

var loopCtxKey loopCtxKeyType

// DefaultInterval is used when Loop.Interval is not set.
const DefaultInterval = time.Millisecond

// LoopCtlFrom gets LoopControl from context.
func LoopCtlFrom(ctx context.Context) LoopControl {
	if ctl, ok := ctx.Value(loopCtxKey).(LoopControl); ok {
		return ctl
	}
	return nil
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddPoller registers pollers at the given stage. Pollers in the same
// stage run in registration order.
func (l *Loop) AddPoller(stage int, pollers ...Poller) *Loop {
	lst := &l.stages[stage]
	lst.pollers = append(lst.pollers, pollers...)
	for _, p := range pollers {
		if runner, ok := p.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

func (l *Loop) init() {
	l.initOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
}

// Run implements Runnable. It returns when ctx is done or any
// Runnable added to the loop fails.
func (l *Loop) Run(ctx context.Context) error {
	l.init()
	ctx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	err := l.iterate(ctx, runner.Failed())
	cancel()
	if werr := runner.Wait(); werr != nil {
		return werr
	}
	return err
}

func (l *Loop) iterate(ctx context.Context, failed <-chan struct{}) error {
	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-failed:
			return nil
		case <-ticker.C:
			l.RunIteration(ctx)
		case <-l.wakeUpCh:
			l.RunIteration(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); isFailure(err) {
		log.Fatalln(err)
	}
}

// TriggerNext implements LoopControl. Multiple triggers before the
// next iteration collapse into one.
func (l *Loop) TriggerNext() {
	l.init()
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// RunIteration runs all pollers once. It's used by Run and by tests
// which need to step the loop deterministically.
func (l *Loop) RunIteration(ctx context.Context) {
	l.iter++
	iter := &loopIteration{Loop: l, time: time.Now(), num: l.iter}
	iter.ctx = context.WithValue(ctx, loopCtxKey, LoopControl(l))
	for i := 0; i < Stages; i++ {
		iter.stage = i
		runPollers(iter, l.stages[i].pollers)
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Stage() int {
	return t.stage
}

func (t *loopIteration) Iteration() uint64 {
	return t.num
}

func runPollers(iter *loopIteration, pollers []Poller) {
	for _, p := range pollers {
		if err := p.Poll(iter); err != nil {
			glog.Errorf("poller error: %v", err)
		}
	}
}
