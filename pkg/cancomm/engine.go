package cancomm

import (
	"errors"

	"github.com/golang/glog"

	fx "github.com/robotalks/subbus/pkg/framework"
	"github.com/robotalks/subbus/pkg/subbus"
)

// Stats counts engine activity.
type Stats struct {
	Frames     int
	Requests   int
	Replies    int
	Errors     int
	Suppressed int
	Dropped    int
	Abandoned  int
}

// Engine is the board side protocol engine. It owns all protocol state
// and handles at most one exchange at a time.
type Engine struct {
	Board     uint8
	Transport Transport

	reasm    Reassembler
	interp   Interpreter
	tx       Transmitter
	reporter *Reporter
	regBase  uint16

	rxReady  Flag
	notified bool
	stats    Stats
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMaxTransfer limits request and reply payload sizes.
func WithMaxTransfer(n int) EngineOption {
	return func(e *Engine) {
		e.reasm.MaxTransfer, e.interp.MaxTransfer = n, n
	}
}

// WithRegisterBase moves the CAN control registers.
func WithRegisterBase(base uint16) EngineOption {
	return func(e *Engine) {
		e.regBase = base
	}
}

// NewEngine creates an Engine for board serving regs over t.
func NewEngine(board uint8, t Transport, regs Registers, opts ...EngineOption) *Engine {
	e := &Engine{Board: board, Transport: t, regBase: CANBaseAddr}
	e.interp.Regs = regs
	e.tx.Transport = t
	for _, opt := range opts {
		opt(e)
	}
	e.reporter = NewReporter(e.regBase, e.interp.maxTransfer())
	if n, ok := t.(Notifier); ok {
		e.notified = true
		n.SetNotify(e.rxReady.Set)
		// frames may have arrived before registration.
		e.rxReady.Set()
	}
	return e
}

// Driver returns the CAN control register range to be added to the bus.
func (e *Engine) Driver() *subbus.Driver {
	return e.reporter.Driver()
}

// Reporter returns the error reporter.
func (e *Engine) Reporter() *Reporter {
	return e.reporter
}

// Stats returns activity counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Suppressed = e.reporter.Suppressed()
	return s
}

// Busy indicates a response is outstanding.
func (e *Engine) Busy() bool {
	return e.tx.Pending()
}

// Notify is the receive completion callback, safe from any goroutine.
func (e *Engine) Notify() {
	e.rxReady.Set()
}

// Step does a bounded amount of work: resume the outstanding response,
// or handle at most one received frame.
func (e *Engine) Step() {
	if e.tx.Pending() {
		e.advance()
		return
	}
	if e.notified && !e.rxReady.TestAndClear() {
		return
	}
	f, err := e.Transport.TryReceive()
	if errors.Is(err, ErrNoMessage) {
		return
	}
	if e.notified {
		// more frames may be queued, check again next time.
		e.rxReady.Set()
	}
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			e.reporter.RecordTransport(err)
		}
		return
	}
	e.stats.Frames++
	e.handleFrame(f)
}

// Poll implements framework.Poller.
func (e *Engine) Poll(fx.PollContext) error {
	e.Step()
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (e *Engine) AddToLoop(loop *fx.Loop) {
	if n, ok := e.Transport.(Notifier); ok {
		n.SetNotify(func() {
			e.rxReady.Set()
			loop.TriggerNext()
		})
	}
	if adder, ok := e.Transport.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if r, ok := e.Transport.(fx.Runnable); ok {
		loop.AddRunnable(r)
	}
	loop.AddPoller(fx.StageProtocol, e)
}

func (e *Engine) handleFrame(f Frame) {
	if f.Extended {
		// no reply identifier can be derived.
		glog.V(2).Infof("engine: drop %s", f)
		e.stats.Dropped++
		return
	}
	if IsReply(f.ID) || BoardOf(f.ID) != e.Board {
		var cmdByte byte
		if f.Len > 0 {
			cmdByte = f.Data[0]
		}
		e.fail(f.ID, protoErr(ErrCodeBadAddress, cmdByte))
		return
	}
	req, begun, err := e.reasm.Feed(f)
	if begun {
		e.reporter.Clear()
	}
	if err != nil {
		e.fail(f.ID, err)
		return
	}
	if req == nil {
		return
	}
	e.stats.Requests++
	glog.V(2).Infof("engine: request %03X %s % x", req.ID, req.Cmd, req.Payload)
	reply, err := e.interp.Execute(req)
	if err != nil {
		e.fail(req.ID, err)
		return
	}
	if err = e.tx.Start(ReplyID(req.ID), req.Cmd, reply); err != nil {
		e.fail(req.ID, err)
		return
	}
	e.stats.Replies++
	e.advance()
}

func (e *Engine) fail(id uint16, err error) {
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		perr = protoErr(ErrCodeOther)
	}
	if !e.reporter.Allow(id) {
		glog.V(2).Infof("engine: suppress %v for %03X", perr, id)
		return
	}
	glog.V(1).Infof("engine: %03X: %v", id, perr)
	e.stats.Errors++
	e.tx.Abort()
	if err := e.tx.Start(ReplyID(id), CmdError, perr.Payload()); err != nil {
		glog.Warningf("engine: drop %v for %03X: %v", perr, id, err)
		return
	}
	e.advance()
}

func (e *Engine) advance() {
	id, cmd := e.tx.ID(), e.tx.Cmd()
	state, err := e.tx.Advance()
	if state != TxAbandoned {
		return
	}
	e.stats.Abandoned++
	e.reporter.RecordTransport(err)
	if cmd == CmdError {
		return
	}
	perr := protoErr(ErrCodeOther, CmdByte(cmd, 0), byte(WireTransportCode(err)))
	if e.tx.Start(id, CmdError, perr.Payload()) != nil {
		return
	}
	e.stats.Errors++
	if state, err = e.tx.Advance(); state == TxAbandoned {
		e.stats.Abandoned++
		e.reporter.RecordTransport(err)
	}
}
