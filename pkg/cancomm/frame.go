package cancomm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame is a classical CAN data frame.
type Frame struct {
	ID       uint16 // 11-bit identifier
	Extended bool
	Len      uint8 // 0..8
	Data     [8]byte
}

// Identifier fields.
const (
	IDBoardMask uint16 = 0x780
	IDReplyBit  uint16 = 0x040
	IDReqIDMask uint16 = 0x03F

	maxStdID uint16 = 0x7FF
)

var (
	// ErrInvalidID indicates the identifier doesn't fit 11 bits.
	ErrInvalidID = errors.New("invalid CAN identifier")
	// ErrInvalidLen indicates more than 8 data bytes.
	ErrInvalidLen = errors.New("invalid CAN data length")
)

// NewFrame creates a standard frame.
func NewFrame(id uint16, data []byte) (Frame, error) {
	var f Frame
	if len(data) > len(f.Data) {
		return f, ErrInvalidLen
	}
	f.ID, f.Len = id, uint8(len(data))
	copy(f.Data[:], data)
	return f, f.Validate()
}

// MustFrame is NewFrame but panics on error.
func MustFrame(id uint16, data ...byte) Frame {
	f, err := NewFrame(id, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	if f.ID > maxStdID {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

// String formats the frame like candump.
func (f Frame) String() string {
	return fmt.Sprintf("%03X#% X", f.ID, f.Data[:f.Len])
}

// BoardID computes the board-select bits of an identifier.
func BoardID(board uint8) uint16 {
	return (uint16(board) << 7) & IDBoardMask
}

// RequestID computes the identifier of a request to board.
func RequestID(board, reqID uint8) uint16 {
	return BoardID(board) | (uint16(reqID) & IDReqIDMask)
}

// ReplyID computes the identifier of the reply to a request.
func ReplyID(id uint16) uint16 {
	return id | IDReplyBit
}

// IsReply checks the reply bit.
func IsReply(id uint16) bool {
	return id&IDReplyBit != 0
}

// BoardOf extracts the board number from an identifier.
func BoardOf(id uint16) uint8 {
	return uint8((id & IDBoardMask) >> 7)
}

// FrameFilter decides whether a frame is accepted.
type FrameFilter func(Frame) bool

// ByMask matches when (frame.ID & mask) == (id & mask).
func ByMask(id, mask uint16) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return f.ID&mask == want }
}

// RequestsTo matches standard requests addressed to board.
func RequestsTo(board uint8) FrameFilter {
	match := ByMask(BoardID(board), IDBoardMask|IDReplyBit)
	return func(f Frame) bool { return !f.Extended && match(f) }
}

// RepliesTo matches replies to the request identifier id.
func RepliesTo(id uint16) FrameFilter {
	return ByMask(ReplyID(id), maxStdID)
}

// Wire layout of a frame tunnelled over packet transports, same as
// Linux SocketCAN struct can_frame (16 bytes, little-endian):
//   0..3  can_id (bit 31: extended)
//   4     can_dlc
//   5..7  padding
//   8..15 data
const (
	WireSize = 16

	wireEffFlag uint32 = 0x80000000
)

// MarshalBinary implements encoding.BinaryMarshaler.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	id := uint32(f.ID)
	if f.Extended {
		id |= wireEffFlag
	}
	buf := make([]byte, WireSize)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < WireSize {
		return fmt.Errorf("frame needs %d bytes, got %d", WireSize, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	f.Extended = id&wireEffFlag != 0
	if f.Extended && id&^wireEffFlag > uint32(maxStdID) {
		return ErrInvalidID
	}
	f.ID = uint16(id & uint32(maxStdID))
	f.Len = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}
