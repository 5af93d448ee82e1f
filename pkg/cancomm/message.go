package cancomm

// MaxTransferLimit is the largest payload a message can declare.
const MaxTransferLimit = 255

// Payload bytes carried by frames.
const (
	firstChunkSize = 6
	nextChunkSize  = 7
)

// Message is a reassembled logical request or reply.
type Message struct {
	ID      uint16
	Cmd     CmdCode
	Payload []byte
}

// chunkFrame builds the frame carrying payload[cursor:]. first
// selects the first-frame layout with the declared length. It returns
// the frame and the number of payload bytes it carries.
func chunkFrame(id uint16, cmd CmdCode, seq Seq, first bool, payload []byte, cursor int) (Frame, int) {
	f := Frame{ID: id}
	f.Data[0] = CmdByte(cmd, seq)
	hdr, size := 1, nextChunkSize
	if first {
		f.Data[1] = byte(len(payload))
		hdr, size = 2, firstChunkSize
	}
	n := copy(f.Data[hdr:hdr+size], payload[cursor:])
	f.Len = uint8(hdr + n)
	return f, n
}

// EncodeFrames splits a message into frames.
func EncodeFrames(id uint16, cmd CmdCode, payload []byte) []Frame {
	var frames []Frame
	var seq Seq
	cursor, first := 0, true
	for first || cursor < len(payload) {
		f, n := chunkFrame(id, cmd, seq, first, payload, cursor)
		frames = append(frames, f)
		cursor += n
		seq, first = seq.Next(), false
	}
	return frames
}
