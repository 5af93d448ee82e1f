package cancomm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReassemblerSingleFrame(t *testing.T) {
	var r Reassembler
	msg, begun, err := r.Feed(MustFrame(0x101, 0x00, 2, 0x02, 0x04))
	require.NoError(t, err)
	require.True(t, begun)
	require.NotNil(t, msg)
	require.Equal(t, uint16(0x101), msg.ID)
	require.Equal(t, CmdReadList, msg.Cmd)
	require.Equal(t, []byte{0x02, 0x04}, msg.Payload)
	require.False(t, r.InProgress())
}

func TestReassemblerMultiFrame(t *testing.T) {
	var r Reassembler
	msg, begun, err := r.Feed(MustFrame(0x101, 0x04, 9, 1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	require.True(t, begun)
	require.Nil(t, msg)
	require.True(t, r.InProgress())
	require.Equal(t, uint16(0x101), r.SourceID())

	msg, begun, err = r.Feed(MustFrame(0x101, 0x0C, 7, 8, 9))
	require.NoError(t, err)
	require.False(t, begun)
	require.NotNil(t, msg)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, msg.Payload)
}

func TestReassemblerErrors(t *testing.T) {
	testCases := []struct {
		name   string
		frames []Frame
		err    *ProtocolError
	}{
		{
			name:   "empty first frame",
			frames: []Frame{MustFrame(0x101)},
			err:    &ProtocolError{Code: ErrCodeInvalidCmd},
		},
		{
			name:   "no length",
			frames: []Frame{MustFrame(0x101, 0x01)},
			err:    &ProtocolError{Code: ErrCodeInvalidCmd, Args: []byte{0x01}},
		},
		{
			name:   "first frame with sequence",
			frames: []Frame{MustFrame(0x101, 0x09, 2, 1, 2)},
			err:    &ProtocolError{Code: ErrCodeInvalidCmd, Args: []byte{0x09}},
		},
		{
			name:   "chunk beyond declared",
			frames: []Frame{MustFrame(0x101, 0x04, 2, 1, 2, 3)},
			err:    &ProtocolError{Code: ErrCodeOverflow, Args: []byte{0x04}},
		},
		{
			name: "bad sequence",
			frames: []Frame{
				MustFrame(0x101, 0x04, 9, 1, 2, 3, 4, 5, 6),
				MustFrame(0x101, 0x14, 7, 8, 9),
			},
			err: &ProtocolError{Code: ErrCodeInvalidSeq, Args: []byte{0x14}},
		},
		{
			name: "command changed",
			frames: []Frame{
				MustFrame(0x101, 0x04, 9, 1, 2, 3, 4, 5, 6),
				MustFrame(0x101, 0x0D, 7, 8, 9),
			},
			err: &ProtocolError{Code: ErrCodeInvalidSeq, Args: []byte{0x0D}},
		},
		{
			name: "continuation beyond declared",
			frames: []Frame{
				MustFrame(0x101, 0x04, 8, 1, 2, 3, 4, 5, 6),
				MustFrame(0x101, 0x0C, 7, 8, 9),
			},
			err: &ProtocolError{Code: ErrCodeOverflow, Args: []byte{0x0C}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r Reassembler
			var err error
			for _, f := range tc.frames {
				_, _, err = r.Feed(f)
			}
			require.Equal(t, tc.err, err)
			require.False(t, r.InProgress())
		})
	}
}

func TestReassemblerMaxTransfer(t *testing.T) {
	r := Reassembler{MaxTransfer: 8}
	_, _, err := r.Feed(MustFrame(0x101, 0x04, 9, 1))
	require.True(t, errors.Is(err, ErrOverflow))
	_, begun, err := r.Feed(MustFrame(0x101, 0x04, 8, 1))
	require.NoError(t, err)
	require.True(t, begun)
}

func TestReassemblerAbandon(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(MustFrame(0x101, 0x04, 9, 1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	msg, begun, err := r.Feed(MustFrame(0x102, 0x00, 1, 0x02))
	require.NoError(t, err)
	require.True(t, begun)
	require.NotNil(t, msg)
	require.Equal(t, uint16(0x102), msg.ID)
}

func TestReassemblerRecovers(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(MustFrame(0x101, 0x04, 9, 1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	_, _, err = r.Feed(MustFrame(0x101, 0x14, 7, 8, 9))
	require.True(t, errors.Is(err, ErrInvalidSeq))
	msg, begun, err := r.Feed(MustFrame(0x101, 0x00, 1, 0x02))
	require.NoError(t, err)
	require.True(t, begun)
	require.Equal(t, []byte{0x02}, msg.Payload)
}
