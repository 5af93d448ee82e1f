package cancomm

import "fmt"

// CmdCode is the command carried in the low bits of a command byte.
type CmdCode byte

// Command codes.
const (
	CmdReadList CmdCode = iota
	CmdReadInc
	CmdReadNoInc
	CmdReadCountNoInc
	CmdWriteInc
	CmdWriteNoInc
	CmdError
	cmdInvalid
)

// Command byte fields.
const (
	CmdCodeMask byte = 0x07
	CmdSeqMask  byte = 0xF8
	cmdSeqShift      = 3
)

var cmdNames = map[CmdCode]string{
	CmdReadList:       "READ_LIST",
	CmdReadInc:        "READ_INC",
	CmdReadNoInc:      "READ_NOINC",
	CmdReadCountNoInc: "READ_CNT_NOINC",
	CmdWriteInc:       "WRITE_INC",
	CmdWriteNoInc:     "WRITE_NOINC",
	CmdError:          "ERROR",
}

func (c CmdCode) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD(%d)", byte(c))
}

// Seq is the 5-bit sequence number of a frame within a message.
type Seq byte

// Next calculates the next sequence number, wrapping at 32.
func (s Seq) Next() Seq {
	return (s + 1) & (Seq(CmdSeqMask) >> cmdSeqShift)
}

// CmdByte encodes a command byte.
func CmdByte(code CmdCode, seq Seq) byte {
	return (byte(code) & CmdCodeMask) | ((byte(seq) << cmdSeqShift) & CmdSeqMask)
}

// SplitCmd decodes a command byte.
func SplitCmd(b byte) (CmdCode, Seq) {
	return CmdCode(b & CmdCodeMask), Seq((b & CmdSeqMask) >> cmdSeqShift)
}
