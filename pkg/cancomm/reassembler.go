package cancomm

import "github.com/golang/glog"

// Reassembler accumulates the frames of one logical message at a time.
//
// Idle -> Accumulating -> (complete) Idle
type Reassembler struct {
	// MaxTransfer bounds the declared length, MaxTransferLimit if zero.
	MaxTransfer int

	buf        [MaxTransferLimit]byte
	filled     int
	declared   int
	id         uint16
	cmd        CmdCode
	seq        Seq
	inProgress bool
}

// InProgress indicates a message is being accumulated.
func (r *Reassembler) InProgress() bool {
	return r.inProgress
}

// SourceID returns the identifier of the message in progress.
func (r *Reassembler) SourceID() uint16 {
	return r.id
}

// Reset drops the message in progress.
func (r *Reassembler) Reset() {
	r.inProgress, r.filled, r.declared = false, 0, 0
}

func (r *Reassembler) maxTransfer() int {
	if r.MaxTransfer <= 0 || r.MaxTransfer > MaxTransferLimit {
		return MaxTransferLimit
	}
	return r.MaxTransfer
}

// Feed consumes one frame. It returns the message once complete. begun
// reports the frame successfully started a new message. On a
// *ProtocolError no message is in progress afterwards.
func (r *Reassembler) Feed(f Frame) (msg *Message, begun bool, err error) {
	data := f.Payload()
	if r.inProgress && f.ID != r.id {
		glog.V(2).Infof("reassembler: abandon %03X (%d/%d bytes) for %03X",
			r.id, r.filled, r.declared, f.ID)
		r.Reset()
	}
	if r.inProgress {
		msg, err = r.continuation(data)
		return
	}
	if len(data) < 2 {
		r.Reset()
		if len(data) == 0 {
			return nil, false, protoErr(ErrCodeInvalidCmd)
		}
		return nil, false, protoErr(ErrCodeInvalidCmd, data[0])
	}
	cmd, seq := SplitCmd(data[0])
	if seq != 0 {
		return nil, false, protoErr(ErrCodeInvalidCmd, data[0])
	}
	declared, chunk := int(data[1]), data[2:]
	if declared > r.maxTransfer() || len(chunk) > declared {
		return nil, false, protoErr(ErrCodeOverflow, data[0])
	}
	r.id, r.cmd, r.seq = f.ID, cmd, seq.Next()
	r.declared, r.filled = declared, copy(r.buf[:], chunk)
	r.inProgress = true
	return r.complete(), true, nil
}

func (r *Reassembler) continuation(data []byte) (*Message, error) {
	if len(data) == 0 {
		r.Reset()
		return nil, protoErr(ErrCodeInvalidCmd)
	}
	cmd, seq := SplitCmd(data[0])
	if cmd != r.cmd || seq != r.seq {
		glog.V(2).Infof("reassembler: %03X expects %s seq %d, got %s seq %d",
			r.id, r.cmd, r.seq, cmd, seq)
		r.Reset()
		return nil, protoErr(ErrCodeInvalidSeq, data[0])
	}
	chunk := data[1:]
	if r.filled+len(chunk) > r.declared {
		r.Reset()
		return nil, protoErr(ErrCodeOverflow, data[0])
	}
	r.filled += copy(r.buf[r.filled:], chunk)
	r.seq = r.seq.Next()
	return r.complete(), nil
}

func (r *Reassembler) complete() *Message {
	if r.filled < r.declared {
		return nil
	}
	msg := &Message{
		ID:      r.id,
		Cmd:     r.cmd,
		Payload: append([]byte{}, r.buf[:r.filled]...),
	}
	r.Reset()
	return msg
}
