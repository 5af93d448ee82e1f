package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopStageOrder(t *testing.T) {
	var order []string
	record := func(name string) Poller {
		return PollFunc(func(pc PollContext) error {
			order = append(order, name)
			return nil
		})
	}
	l := NewLoop()
	l.AddPoller(StageProtocol, record("engine"))
	l.AddPoller(StageDrivers, record("base"), record("can"))
	l.AddPoller(StageHousekeeping, PollFunc(func(pc PollContext) error {
		order = append(order, "fail")
		return errors.New("ignored")
	}))

	l.RunIteration(context.Background())
	l.RunIteration(context.Background())
	require.Equal(t, []string{
		"base", "can", "engine", "fail",
		"base", "can", "engine", "fail",
	}, order)
}

func TestLoopIterationContext(t *testing.T) {
	var stages []int
	var iters []uint64
	l := NewLoop()
	p := PollFunc(func(pc PollContext) error {
		stages = append(stages, pc.Stage())
		iters = append(iters, pc.Iteration())
		require.NotNil(t, LoopCtlFrom(pc.Context()))
		return nil
	})
	l.AddPoller(StageFirst, p)
	l.AddPoller(StageLast, p)
	l.RunIteration(context.Background())
	l.RunIteration(context.Background())
	require.Equal(t, []int{StageFirst, StageLast, StageFirst, StageLast}, stages)
	require.Equal(t, []uint64{1, 1, 2, 2}, iters)
}

func TestLoopTriggerNext(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	ran := make(chan struct{}, 16)
	l.AddPoller(StageFirst, PollFunc(func(pc PollContext) error {
		ran <- struct{}{}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	l.TriggerNext()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	require.Equal(t, "a", errs.Aggregate().Error())
	errs.Add(errors.New("b"))
	require.Equal(t, "Multiple errors:\na\nb", errs.Aggregate().Error())
}

func TestLoopStopsOnRunnableFailure(t *testing.T) {
	errBroken := errors.New("broken")
	stopped := make(chan struct{})
	l := NewLoop().AddRunnable(
		NamedRun("broken", RunFunc(func(context.Context) error { return errBroken })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		}),
	)
	err := l.Run(context.Background())
	require.True(t, errors.Is(err, errBroken))
	<-stopped
}

func TestRunWithContextCloser(t *testing.T) {
	closer := &testCloser{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-closer.closed
		return nil
	})
	require.Equal(t, context.Canceled, err)

	closer = &testCloser{closed: make(chan struct{})}
	require.NoError(t, RunWithContextCloser(context.Background(), closer, func() error { return nil }))
	<-closer.closed
}

type testCloser struct {
	closed chan struct{}
}

func (c *testCloser) Close() error {
	close(c.closed)
	return nil
}
