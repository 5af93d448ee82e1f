// Package stream carries CAN frames over a byte stream such as a TCP
// connection or a serial line bridge.
package stream

import (
	"io"
	"net"

	"github.com/robotalks/subbus/pkg/cancomm"
)

// ReadWriter implements PacketReadWriter.
// Frames are written back to back in the SocketCAN layout.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// Dial connects to a frame stream server.
func Dial(network, addr string) (*ReadWriter, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// DialTransport creates a frame transport to addr.
func DialTransport(network, addr string) (*cancomm.PacketTransport, error) {
	rw, err := Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return cancomm.NewPacketTransport(rw), nil
}

// ReadPacket implements PacketReader, one frame per packet.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	pkt := make([]byte, cancomm.WireSize)
	if _, err := io.ReadFull(p, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	_, err := p.Write(pkt)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
