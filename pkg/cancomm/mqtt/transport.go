package mqtt

import (
	"context"
	"fmt"
	"io"

	"github.com/robotalks/subbus/pkg/cancomm"
)

// Topic names of a board, relative to the topic prefix.
func requestTopic(board uint8) string { return fmt.Sprintf("board%d/req", board) }
func replyTopic(board uint8) string   { return fmt.Sprintf("board%d/rep", board) }

// AllFramesTopic matches the frames of all boards.
const AllFramesTopic = "+/+"

// ReadWriter implements cancomm.PacketReadWriter, each MQTT message
// carries one frame.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	done     chan struct{}
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, cancomm.DefaultPacketRxQueue),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForBoard sets topics for the board side:
// SubTopic = boardN/req
// PubTopic = boardN/rep
func (p *ReadWriter) ForBoard(board uint8) *ReadWriter {
	return p.WithTopics(requestTopic(board), replyTopic(board))
}

// ForHost sets topics for the host side talking to board:
// SubTopic = boardN/rep
// PubTopic = boardN/req
func (p *ReadWriter) ForHost(board uint8) *ReadWriter {
	return p.WithTopics(replyTopic(board), requestTopic(board))
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	defer close(p.done)
	if err := p.Queue.Connect(); err != nil {
		return err
	}
	defer p.Queue.Close()
	if p.SubTopic != "" {
		p.Queue.Sub(p.SubTopic, p.handleMsg)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	}
}

// NewTransport creates a frame transport over the broker at brokerURL.
// clientID is used unless the URL specifies one. Use ForBoard or
// ForHost on the returned ReadWriter to pick topics.
func NewTransport(brokerURL, clientID string) (*cancomm.PacketTransport, *ReadWriter, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientID)
	}
	rw := NewPacketReadWriter(NewQueue(opts, prefix))
	return cancomm.NewPacketTransport(rw), rw, nil
}

// WatchFrames subscribes to frames of all boards, for monitoring.
func WatchFrames(q *Queue, fn func(topic string, f cancomm.Frame)) {
	q.Sub(AllFramesTopic, func(topic string, payload []byte) {
		for len(payload) >= cancomm.WireSize {
			var f cancomm.Frame
			if err := f.UnmarshalBinary(payload[:cancomm.WireSize]); err == nil {
				fn(topic, f)
			}
			payload = payload[cancomm.WireSize:]
		}
	})
}
