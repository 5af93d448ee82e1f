package cancomm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/subbus/pkg/subbus"
)

const testBoard uint8 = 1

type engineTestEnv struct {
	t      *testing.T
	host   *Loopback
	board  *Loopback
	bus    *subbus.Bus
	engine *Engine
}

func newEngineTestEnv(t *testing.T, wrap func(*Loopback) Transport) *engineTestEnv {
	env := &engineTestEnv{t: t, bus: newTestRegisters(t)}
	env.host, env.board = NewLoopback(0)
	var tr Transport = env.board
	if wrap != nil {
		tr = wrap(env.board)
	}
	env.engine = NewEngine(testBoard, tr, env.bus)
	block := make([]subbus.Word, 10)
	for n := range block {
		block[n] = subbus.RO(uint16(0x4000 + n))
	}
	env.bus.MustAdd(env.engine.Driver(), subbus.NewDriver("block", 0x40, block...))
	return env
}

func (e *engineTestEnv) send(frames ...Frame) {
	for _, f := range frames {
		require.NoError(e.t, e.host.TrySend(f))
	}
}

func (e *engineTestEnv) request(reqID uint8, cmd CmdCode, payload ...byte) uint16 {
	id := RequestID(testBoard, reqID)
	e.send(EncodeFrames(id, cmd, payload)...)
	return id
}

func (e *engineTestEnv) step() {
	for n := 0; n < 64; n++ {
		e.engine.Step()
	}
}

func (e *engineTestEnv) received() [][]byte {
	var frames [][]byte
	for {
		f, err := e.host.TryReceive()
		if err == ErrNoMessage {
			return frames
		}
		require.NoError(e.t, err)
		frames = append(frames, append([]byte{}, f.Payload()...))
	}
}

func (e *engineTestEnv) receivedFrames() []Frame {
	var frames []Frame
	for {
		f, err := e.host.TryReceive()
		if err == ErrNoMessage {
			return frames
		}
		require.NoError(e.t, err)
		frames = append(frames, f)
	}
}

func TestEngineReadList(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	id := env.request(3, CmdReadList, 0x02, 0x04)
	env.step()
	frames := env.receivedFrames()
	require.Len(t, frames, 1)
	require.Equal(t, ReplyID(id), frames[0].ID)
	require.Equal(t, []byte{0x00, 4, 0x02, 0x01, 0x00, 0x00}, frames[0].Payload())
	require.Equal(t, 1, env.engine.Stats().Requests)
	require.Equal(t, 1, env.engine.Stats().Replies)
}

func TestEngineWriteInc(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	env.request(3, CmdWriteInc, 0x10, 0x34, 0x12)
	env.step()
	require.Equal(t, [][]byte{{0x04, 0}}, env.received())
	v, ok := env.bus.Drivers()[2].IsWritten(0x10)
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), v)
}

func TestEngineMultiFrameReply(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	env.request(3, CmdReadInc, 10, 0x40)
	env.step()
	frames := env.received()
	require.Len(t, frames, 3)
	require.Equal(t, []byte{0x01, 20, 0x00, 0x40, 0x01, 0x40, 0x02, 0x40}, frames[0])
	require.Equal(t, []byte{0x09, 0x03, 0x40, 0x04, 0x40, 0x05, 0x40, 0x06}, frames[1])
	require.Equal(t, []byte{0x11, 0x40, 0x07, 0x40, 0x08, 0x40, 0x09, 0x40}, frames[2])
}

func TestEngineMultiFrameRequest(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	env.request(3, CmdWriteNoInc, 0x12, 1, 0, 2, 0, 3, 0, 4, 0)
	env.step()
	require.Equal(t, [][]byte{{0x05, 0}}, env.received())
	v, ok := env.bus.Drivers()[2].IsWritten(0x12)
	require.True(t, ok)
	require.Equal(t, uint16(4), v)
}

func TestEngineBackpressure(t *testing.T) {
	var st *scriptedTransport
	env := newEngineTestEnv(t, func(l *Loopback) Transport {
		st = &scriptedTransport{Loopback: l, errs: map[int]error{2: ErrNoResource}}
		return st
	})
	env.request(3, CmdReadInc, 10, 0x40)
	env.engine.Step()
	require.True(t, env.engine.Busy())
	require.Len(t, env.received(), 1)
	env.engine.Step()
	require.False(t, env.engine.Busy())
	require.Len(t, env.received(), 2)
	require.Equal(t, 4, st.attempts)
}

func TestEngineInvalidSeq(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	id := RequestID(testBoard, 3)
	env.send(
		MustFrame(id, 0x04, 9, 0x10, 1, 0, 2, 0, 3),
		MustFrame(id, 0x14, 0, 4, 0),
	)
	env.step()
	require.Equal(t, [][]byte{{0x06, 2, byte(ErrCodeInvalidSeq), 0x14}}, env.received())

	env.request(3, CmdReadList, 0x03)
	env.step()
	require.Equal(t, [][]byte{{0x00, 2, 13, 0}}, env.received())
}

func TestEngineBadAddress(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	id := RequestID(2, 5)
	env.send(MustFrame(id, 0x00, 1, 0x02))
	env.step()
	frames := env.receivedFrames()
	require.Len(t, frames, 1)
	require.Equal(t, ReplyID(id), frames[0].ID)
	require.Equal(t, []byte{0x06, 2, byte(ErrCodeBadAddress), 0x00}, frames[0].Payload())
}

func TestEngineErrorReplies(t *testing.T) {
	testCases := []struct {
		name    string
		cmd     CmdCode
		payload []byte
		reply   []byte
	}{
		{"nack", CmdReadList, []byte{0x02, 0x12}, []byte{0x06, 2, byte(ErrCodeNACK), 0x12}},
		{"invalid", CmdReadInc, []byte{1}, []byte{0x06, 2, byte(ErrCodeInvalidCmd), 0x01}},
		{"overflow", CmdReadInc, []byte{200, 0x40}, []byte{0x06, 2, byte(ErrCodeOverflow), 0x01}},
		{"error request", CmdError, []byte{1}, []byte{0x06, 2, byte(ErrCodeBadReqResp), 0x06}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEngineTestEnv(t, nil)
			env.request(1, tc.cmd, tc.payload...)
			env.step()
			require.Equal(t, [][]byte{tc.reply}, env.received())
		})
	}
}

func TestEngineReplyBitIsBadAddress(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	id := ReplyID(RequestID(testBoard, 1))
	env.send(MustFrame(id, 0x00, 1, 0x02))
	env.step()
	frames := env.receivedFrames()
	require.Len(t, frames, 1)
	require.Equal(t, id, frames[0].ID)
	require.Equal(t, []byte{0x06, 2, byte(ErrCodeBadAddress), 0x00}, frames[0].Payload())
	require.Zero(t, env.engine.Stats().Dropped)
	require.Zero(t, env.engine.Stats().Requests)
}

func TestEngineDropsFrames(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	ext := MustFrame(RequestID(testBoard, 1), 0x00, 1, 0x02)
	ext.Extended = true
	env.send(ext)
	env.step()
	require.Empty(t, env.received())
	require.Equal(t, 1, env.engine.Stats().Dropped)
}

func TestEngineSuppressDuplicateErrors(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	id := RequestID(testBoard, 4)
	// continuation frames without a request in progress.
	env.send(MustFrame(id, 0x0C, 1, 2), MustFrame(id, 0x14, 3, 4))
	env.step()
	require.Equal(t, [][]byte{{0x06, 2, byte(ErrCodeInvalidCmd), 0x0C}}, env.received())
	require.Equal(t, 1, env.engine.Stats().Suppressed)

	// a new request re-enables errors.
	env.request(4, CmdReadList, 0x03)
	env.send(MustFrame(id, 0x0C, 1, 2))
	env.step()
	require.Equal(t, [][]byte{
		{0x00, 2, 13, 0},
		{0x06, 2, byte(ErrCodeInvalidCmd), 0x0C},
	}, env.received())
}

func TestEngineSendError(t *testing.T) {
	env := newEngineTestEnv(t, func(l *Loopback) Transport {
		return &scriptedTransport{Loopback: l, errs: map[int]error{1: &TransportError{Code: 17}}}
	})
	env.request(3, CmdReadList, 0x02)
	env.step()
	require.Equal(t, [][]byte{{0x06, 3, byte(ErrCodeOther), 0x00, 17}}, env.received())
	err0, err1 := env.engine.Reporter().Sticky()
	require.Equal(t, uint16(0), err0)
	require.Equal(t, uint16(2), err1)
	require.Equal(t, 1, env.engine.Stats().Abandoned)

	// sticky bits are readable once.
	env.request(4, CmdReadInc, 3, byte(CANErr0Addr))
	env.step()
	require.Equal(t, [][]byte{{0x01, 6, 0, 0, 2, 0, MaxTransferLimit, 0}}, env.received())
	env.bus.Poll()
	err0, err1 = env.engine.Reporter().Sticky()
	require.Zero(t, err0)
	require.Zero(t, err1)
}

func TestEngineSendErrorCodeNormalized(t *testing.T) {
	testCases := []struct {
		name       string
		code       int
		arg        byte
		err0, err1 uint16
	}{
		{"negative", -17, 17, 0, 0x0002},
		{"too large", 0x109, 0, 0x0001, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEngineTestEnv(t, func(l *Loopback) Transport {
				return &scriptedTransport{Loopback: l, errs: map[int]error{1: &TransportError{Code: tc.code}}}
			})
			env.request(3, CmdReadList, 0x02)
			env.step()
			require.Equal(t, [][]byte{{0x06, 3, byte(ErrCodeOther), 0x00, tc.arg}}, env.received())
			err0, err1 := env.engine.Reporter().Sticky()
			require.Equal(t, tc.err0, err0)
			require.Equal(t, tc.err1, err1)
		})
	}
}

func TestEngineReceiveError(t *testing.T) {
	env := newEngineTestEnv(t, nil)
	env.board.InjectReceiveError(&TransportError{Code: 3}, ErrClosed)
	env.request(1, CmdReadList, 0x03)
	env.step()
	require.Equal(t, [][]byte{{0x00, 2, 13, 0}}, env.received())
	err0, _ := env.engine.Reporter().Sticky()
	require.Equal(t, uint16(1<<3), err0)
}
