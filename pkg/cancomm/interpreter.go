package cancomm

import "encoding/binary"

// Registers is the register space commands operate on.
type Registers interface {
	Read(addr uint16) (uint16, bool)
	Write(addr uint16, value uint16) bool
}

// Interpreter executes reassembled requests against Registers.
type Interpreter struct {
	Regs Registers
	// MaxTransfer bounds reply payloads, MaxTransferLimit if zero.
	MaxTransfer int
}

func (in *Interpreter) maxTransfer() int {
	if in.MaxTransfer <= 0 || in.MaxTransfer > MaxTransferLimit {
		return MaxTransferLimit
	}
	return in.MaxTransfer
}

// Execute runs a request and returns the reply payload. Any rejected
// register access aborts the whole command with a NACK.
func (in *Interpreter) Execute(req *Message) ([]byte, error) {
	p, cmdByte := req.Payload, CmdByte(req.Cmd, 0)
	switch req.Cmd {
	case CmdReadList:
		if len(p) == 0 {
			return nil, protoErr(ErrCodeInvalidCmd, cmdByte)
		}
		if err := in.checkReply(2*len(p), cmdByte); err != nil {
			return nil, err
		}
		reply := make([]byte, 0, 2*len(p))
		for _, addr := range p {
			var err error
			if reply, err = in.read(reply, uint16(addr)); err != nil {
				return nil, err
			}
		}
		return reply, nil
	case CmdReadInc, CmdReadNoInc:
		if len(p) != 2 {
			return nil, protoErr(ErrCodeInvalidCmd, cmdByte)
		}
		count, addr := int(p[0]), uint16(p[1])
		if err := in.checkReply(2*count, cmdByte); err != nil {
			return nil, err
		}
		reply := make([]byte, 0, 2*count)
		for i := 0; i < count; i++ {
			var err error
			if reply, err = in.read(reply, addr); err != nil {
				return nil, err
			}
			if req.Cmd == CmdReadInc {
				addr++
			}
		}
		return reply, nil
	case CmdReadCountNoInc:
		if len(p) != 3 {
			return nil, protoErr(ErrCodeInvalidCmd, cmdByte)
		}
		maxCount, countAddr, addr := int(p[0]), uint16(p[1]), uint16(p[2])
		if err := in.checkReply(2+2*maxCount, cmdByte); err != nil {
			return nil, err
		}
		count, ack := in.Regs.Read(countAddr)
		if !ack {
			return nil, nackErr(countAddr)
		}
		if int(count) > maxCount {
			count = uint16(maxCount)
		}
		reply := make([]byte, 2, 2+2*int(count))
		binary.LittleEndian.PutUint16(reply, count)
		for i := 0; i < int(count); i++ {
			var err error
			if reply, err = in.read(reply, addr); err != nil {
				return nil, err
			}
		}
		return reply, nil
	case CmdWriteInc, CmdWriteNoInc:
		if len(p) < 3 || (len(p)-1)%2 != 0 {
			return nil, protoErr(ErrCodeInvalidCmd, cmdByte)
		}
		addr := uint16(p[0])
		for vals := p[1:]; len(vals) > 0; vals = vals[2:] {
			if !in.Regs.Write(addr, binary.LittleEndian.Uint16(vals)) {
				return nil, nackErr(addr)
			}
			if req.Cmd == CmdWriteInc {
				addr++
			}
		}
		return []byte{}, nil
	case CmdError:
		return nil, protoErr(ErrCodeBadReqResp, cmdByte)
	default:
		return nil, protoErr(ErrCodeInvalidCmd, cmdByte)
	}
}

func (in *Interpreter) checkReply(size int, cmdByte byte) error {
	if size > in.maxTransfer() {
		return protoErr(ErrCodeOverflow, cmdByte)
	}
	return nil
}

func (in *Interpreter) read(reply []byte, addr uint16) ([]byte, error) {
	v, ack := in.Regs.Read(addr)
	if !ack {
		return nil, nackErr(addr)
	}
	return append(reply, byte(v), byte(v>>8)), nil
}
