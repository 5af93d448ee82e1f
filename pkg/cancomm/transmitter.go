package cancomm

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// TxState is the state of a Transmitter after Advance.
type TxState int

// Transmitter states.
const (
	// TxIdle means nothing to send.
	TxIdle TxState = iota
	// TxBlocked means the transport has no room, the same frame is
	// retried on the next Advance.
	TxBlocked
	// TxDone means the whole message has been sent.
	TxDone
	// TxAbandoned means a transport error dropped the message.
	TxAbandoned
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxBlocked:
		return "blocked"
	case TxDone:
		return "done"
	case TxAbandoned:
		return "abandoned"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Transmitter streams one message at a time as frames, resuming
// exactly at the unsent frame after backpressure.
type Transmitter struct {
	Transport Transport

	buf     [MaxTransferLimit]byte
	filled  int
	cursor  int
	id      uint16
	cmd     CmdCode
	seq     Seq
	started bool
	pending bool
	blocked bool

	framesSent int
}

// Pending indicates a message is being sent.
func (t *Transmitter) Pending() bool {
	return t.pending
}

// Blocked indicates the last attempt hit backpressure.
func (t *Transmitter) Blocked() bool {
	return t.blocked
}

// Cmd returns the command of the message in flight.
func (t *Transmitter) Cmd() CmdCode {
	return t.cmd
}

// ID returns the identifier of the message in flight.
func (t *Transmitter) ID() uint16 {
	return t.id
}

// FramesSent counts accepted frames since creation.
func (t *Transmitter) FramesSent() int {
	return t.framesSent
}

// Start prepares a message for sending. Nothing is sent until Advance.
func (t *Transmitter) Start(id uint16, cmd CmdCode, payload []byte) error {
	if t.pending {
		return ErrBusy
	}
	if len(payload) > len(t.buf) {
		return protoErr(ErrCodeOverflow, CmdByte(cmd, 0))
	}
	t.id, t.cmd, t.seq = id, cmd, 0
	t.filled, t.cursor = copy(t.buf[:], payload), 0
	t.started, t.blocked, t.pending = false, false, true
	return nil
}

// Abort drops the message in flight.
func (t *Transmitter) Abort() {
	t.pending, t.blocked = false, false
}

// Advance sends frames until the message is complete, the transport
// pushes back or fails. err is set only for TxAbandoned.
func (t *Transmitter) Advance() (TxState, error) {
	if !t.pending {
		return TxIdle, nil
	}
	for !t.started || t.cursor < t.filled {
		f, n := chunkFrame(t.id, t.cmd, t.seq, !t.started, t.buf[:t.filled], t.cursor)
		err := t.Transport.TrySend(f)
		if errors.Is(err, ErrNoResource) {
			if !t.blocked {
				glog.V(2).Infof("transmitter: %03X blocked at seq %d", t.id, t.seq)
			}
			t.blocked = true
			return TxBlocked, nil
		}
		if err != nil {
			glog.Warningf("transmitter: %03X %s abandoned at %d/%d: %v",
				t.id, t.cmd, t.cursor, t.filled, err)
			t.Abort()
			return TxAbandoned, err
		}
		glog.V(2).Infof("transmitter: sent %s", f)
		t.framesSent++
		t.cursor += n
		t.seq, t.started, t.blocked = t.seq.Next(), true, false
	}
	t.pending = false
	return TxDone, nil
}
