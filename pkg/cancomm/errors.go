package cancomm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResource is returned by Transport.TrySend when the transmit
	// queue is full. The same frame should be retried later.
	ErrNoResource = errors.New("no resource")
	// ErrNoMessage is returned by Transport.TryReceive when no frame is available.
	ErrNoMessage = errors.New("no message")
	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("closed")
	// ErrBusy indicates a response is already in flight.
	ErrBusy = errors.New("response in flight")
)

// ErrCode is the code carried by ERROR replies.
type ErrCode byte

// Error codes.
const (
	ErrCodeBadReqResp ErrCode = iota + 1
	ErrCodeNACK
	ErrCodeOther
	ErrCodeInvalidCmd
	ErrCodeBadAddress
	ErrCodeOverflow
	ErrCodeInvalidSeq
)

var errCodeNames = map[ErrCode]string{
	ErrCodeBadReqResp: "BAD_REQ_RESP",
	ErrCodeNACK:       "NACK",
	ErrCodeOther:      "OTHER",
	ErrCodeInvalidCmd: "INVALID_CMD",
	ErrCodeBadAddress: "BAD_ADDRESS",
	ErrCodeOverflow:   "OVERFLOW",
	ErrCodeInvalidSeq: "INVALID_SEQ",
}

func (c ErrCode) String() string {
	if name, ok := errCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERR(%d)", byte(c))
}

// ProtocolError is a failed exchange, it's what an ERROR reply carries.
type ProtocolError struct {
	Code ErrCode
	Args []byte
}

// Error implements error.
func (e *ProtocolError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("protocol error %s", e.Code)
	}
	return fmt.Sprintf("protocol error %s % x", e.Code, e.Args)
}

// Payload encodes the ERROR reply payload.
func (e *ProtocolError) Payload() []byte {
	return append([]byte{byte(e.Code)}, e.Args...)
}

// Is matches any *ProtocolError with the same code.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Code == e.Code && t.Args == nil
}

// ParseProtocolError decodes an ERROR reply payload.
func ParseProtocolError(payload []byte) *ProtocolError {
	if len(payload) == 0 {
		return &ProtocolError{Code: ErrCodeOther}
	}
	e := &ProtocolError{Code: ErrCode(payload[0])}
	if len(payload) > 1 {
		e.Args = append([]byte(nil), payload[1:]...)
	}
	return e
}

func protoErr(code ErrCode, args ...byte) *ProtocolError {
	return &ProtocolError{Code: code, Args: args}
}

// nackErr carries the rejected address, one byte when it fits.
func nackErr(addr uint16) *ProtocolError {
	if addr <= 0xff {
		return protoErr(ErrCodeNACK, byte(addr))
	}
	return protoErr(ErrCodeNACK, byte(addr), byte(addr>>8))
}

// Sentinels usable with errors.Is.
var (
	ErrBadReqResp = &ProtocolError{Code: ErrCodeBadReqResp}
	ErrNACK       = &ProtocolError{Code: ErrCodeNACK}
	ErrOther      = &ProtocolError{Code: ErrCodeOther}
	ErrInvalidCmd = &ProtocolError{Code: ErrCodeInvalidCmd}
	ErrBadAddress = &ProtocolError{Code: ErrCodeBadAddress}
	ErrOverflow   = &ProtocolError{Code: ErrCodeOverflow}
	ErrInvalidSeq = &ProtocolError{Code: ErrCodeInvalidSeq}
)

// TransportError is a transport failure other than backpressure.
type TransportError struct {
	Code int
	Err  error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("transport error %d", e.Code)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// TransportCode extracts the code of a transport error, 0 if unknown.
func TransportCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

// WireTransportCode is the transport code as carried in an OTHER error
// frame and the sticky registers: negative codes are taken by magnitude
// and codes not fitting a byte become 0.
func WireTransportCode(err error) int {
	code := TransportCode(err)
	if code < 0 {
		code = -code
	}
	if code > 0xFF {
		return 0
	}
	return code
}
