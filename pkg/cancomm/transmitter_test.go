package cancomm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func payloadOf(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i + 1)
	}
	return p
}

func TestTransmitterSend(t *testing.T) {
	board, host := NewLoopback(0)
	tx := &Transmitter{Transport: board}
	state, err := tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxIdle, state)

	require.NoError(t, tx.Start(0x141, CmdReadInc, payloadOf(20)))
	require.True(t, tx.Pending())
	require.Equal(t, ErrBusy, tx.Start(0x141, CmdReadInc, nil))

	state, err = tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxDone, state)
	require.False(t, tx.Pending())
	require.Equal(t, 3, tx.FramesSent())
	require.Equal(t, 3, host.Pending())

	sent := board.Sent()
	require.Len(t, sent, 3)
	for n, f := range sent {
		_, seq := SplitCmd(f.Data[0])
		require.Equal(t, Seq(n), seq)
	}
	require.Equal(t, []byte{0x01, 20, 1, 2, 3, 4, 5, 6}, sent[0].Payload())
	require.Equal(t, []byte{0x11, 14, 15, 16, 17, 18, 19, 20}, sent[2].Payload())
}

// scriptedTransport fails the send attempts listed in errs, counted
// from 1, and passes the rest to the embedded Loopback.
type scriptedTransport struct {
	*Loopback
	attempts int
	errs     map[int]error
}

func (s *scriptedTransport) TrySend(f Frame) error {
	s.attempts++
	if err, ok := s.errs[s.attempts]; ok {
		return err
	}
	return s.Loopback.TrySend(f)
}

func TestTransmitterBackpressure(t *testing.T) {
	board, _ := NewLoopback(0)
	st := &scriptedTransport{Loopback: board, errs: map[int]error{2: ErrNoResource}}
	tx := &Transmitter{Transport: st}
	require.NoError(t, tx.Start(0x141, CmdReadInc, payloadOf(20)))

	state, err := tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxBlocked, state)
	require.True(t, tx.Blocked())
	require.True(t, tx.Pending())
	require.Equal(t, 1, tx.FramesSent())

	state, err = tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxDone, state)
	require.False(t, tx.Blocked())
	require.Equal(t, 3, tx.FramesSent())
	require.Equal(t, 4, st.attempts)

	sent := board.Sent()
	require.Len(t, sent, 3)
	require.Equal(t, EncodeFrames(0x141, CmdReadInc, payloadOf(20)), sent)
}

func TestTransmitterAbandon(t *testing.T) {
	board, _ := NewLoopback(0)
	failure := &TransportError{Code: 5}
	st := &scriptedTransport{Loopback: board, errs: map[int]error{2: failure}}
	tx := &Transmitter{Transport: st}
	require.NoError(t, tx.Start(0x141, CmdReadInc, payloadOf(20)))

	state, err := tx.Advance()
	require.Equal(t, TxAbandoned, state)
	require.Equal(t, failure, err)
	require.False(t, tx.Pending())
	require.Len(t, board.Sent(), 1)

	state, err = tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxIdle, state)
}

func TestTransmitterEmptyReply(t *testing.T) {
	board, _ := NewLoopback(0)
	tx := &Transmitter{Transport: board}
	require.NoError(t, tx.Start(0x141, CmdWriteInc, nil))
	state, err := tx.Advance()
	require.NoError(t, err)
	require.Equal(t, TxDone, state)
	sent := board.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, []byte{0x04, 0}, sent[0].Payload())
}

func TestTransmitterOverflow(t *testing.T) {
	tx := &Transmitter{}
	err := tx.Start(0x141, CmdReadInc, payloadOf(MaxTransferLimit+1))
	require.True(t, errors.Is(err, ErrOverflow))
	require.False(t, tx.Pending())
}
