//go:build linux

package socketcan

import (
	"context"
	"io"

	"github.com/brutella/can"
	"github.com/golang/glog"

	"github.com/robotalks/subbus/pkg/cancomm"
	fx "github.com/robotalks/subbus/pkg/framework"
)

const (
	canEffFlag uint32 = 0x80000000
	canEffMask uint32 = 0x1FFFFFFF
)

// ReadWriter implements cancomm.PacketReadWriter on a SocketCAN bus.
type ReadWriter struct {
	Bus *can.Bus

	packetCh chan []byte
	done     chan struct{}
}

// New opens the interface, e.g. can0.
func New(iface string) (*ReadWriter, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, err
	}
	rw := &ReadWriter{
		Bus:      bus,
		packetCh: make(chan []byte, cancomm.DefaultPacketRxQueue),
		done:     make(chan struct{}),
	}
	bus.Subscribe(rw)
	return rw, nil
}

// NewTransport opens the interface as a frame transport.
func NewTransport(iface string) (*cancomm.PacketTransport, error) {
	rw, err := New(iface)
	if err != nil {
		return nil, err
	}
	return cancomm.NewPacketTransport(rw), nil
}

// Handle implements can.Handler.
func (p *ReadWriter) Handle(frame can.Frame) {
	f, ok := fromCAN(frame)
	if !ok {
		glog.V(3).Infof("socketcan: skip extended frame %08X", frame.ID)
		return
	}
	pkt, err := f.MarshalBinary()
	if err != nil {
		glog.V(1).Infof("socketcan: drop frame: %v", err)
		return
	}
	select {
	case p.packetCh <- pkt:
	case <-p.done:
	}
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
	var f cancomm.Frame
	if err := f.UnmarshalBinary(pkt); err != nil {
		return err
	}
	return p.Bus.Publish(toCAN(f))
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	defer close(p.done)
	return fx.RunWithContextCancel(ctx, func() {
		p.Bus.Disconnect()
	}, p.Bus.ConnectAndPublish)
}

// extended frames never belong to the protocol.
func fromCAN(frame can.Frame) (cancomm.Frame, bool) {
	var f cancomm.Frame
	if frame.ID&canEffFlag != 0 {
		return f, false
	}
	f.ID = uint16(frame.ID & 0x7FF)
	f.Len = frame.Length
	if f.Len > 8 {
		f.Len = 8
	}
	copy(f.Data[:], frame.Data[:f.Len])
	return f, true
}

func toCAN(f cancomm.Frame) can.Frame {
	frame := can.Frame{ID: uint32(f.ID), Length: f.Len, Data: f.Data}
	if f.Extended {
		frame.ID = (frame.ID & canEffMask) | canEffFlag
	}
	return frame
}
