package cancomm

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/subbus/pkg/framework"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Transport error codes reported by PacketTransport.
const (
	PacketCodeRxOverrun = 8
	PacketCodeWrite     = 9
	PacketCodeDecode    = 10
)

// Default queue depths of PacketTransport.
const (
	DefaultPacketRxQueue = 32
	DefaultPacketTxQueue = 8
)

// PacketTransport tunnels frames over a blocking packet connection,
// one frame in the SocketCAN layout per packet. Background goroutines
// move packets between the connection and bounded queues.
type PacketTransport struct {
	ReadWriter PacketReadWriter

	rxCh chan Frame
	txCh chan []byte

	lock    sync.Mutex
	notify  func()
	rxFault error
	txFault error
	closed  bool
}

// NewPacketTransport creates a PacketTransport with default queue depths.
func NewPacketTransport(rw PacketReadWriter) *PacketTransport {
	return NewPacketTransportSize(rw, DefaultPacketRxQueue, DefaultPacketTxQueue)
}

// NewPacketTransportSize creates a PacketTransport with the given queue depths.
func NewPacketTransportSize(rw PacketReadWriter, rxQueue, txQueue int) *PacketTransport {
	return &PacketTransport{
		ReadWriter: rw,
		rxCh:       make(chan Frame, rxQueue),
		txCh:       make(chan []byte, txQueue),
	}
}

// TrySend implements Transport.
func (p *PacketTransport) TrySend(f Frame) error {
	pkt, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	if err = p.takeFault(&p.txFault); err != nil {
		return err
	}
	select {
	case p.txCh <- pkt:
		return nil
	default:
		return ErrNoResource
	}
}

// TryReceive implements Transport.
func (p *PacketTransport) TryReceive() (Frame, error) {
	select {
	case f := <-p.rxCh:
		return f, nil
	default:
	}
	if err := p.takeFault(&p.rxFault); err != nil {
		return Frame{}, err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return Frame{}, ErrClosed
	}
	return Frame{}, ErrNoMessage
}

// SetNotify implements Notifier.
func (p *PacketTransport) SetNotify(fn func()) {
	p.lock.Lock()
	p.notify = fn
	p.lock.Unlock()
}

// setFault latches a background failure. Receive faults are reported
// by TryReceive and write faults by TrySend.
func (p *PacketTransport) setFault(slot *error, err error) {
	p.lock.Lock()
	if *slot == nil {
		*slot = err
	}
	p.lock.Unlock()
}

// takeFault reports a background failure once.
func (p *PacketTransport) takeFault(slot *error) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	err := *slot
	*slot = nil
	return err
}

// Run implements Runnable.
func (p *PacketTransport) Run(ctx context.Context) error {
	defer p.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.writeLoop(ctx)
	go func() {
		<-ctx.Done()
		// unblocks ReadPacket.
		p.Close()
	}()
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		p.received(pkt)
	}
}

func (p *PacketTransport) received(pkt []byte) {
	for len(pkt) >= WireSize {
		var f Frame
		if err := f.UnmarshalBinary(pkt[:WireSize]); err != nil {
			glog.V(1).Infof("packet: drop frame: %v", err)
			p.setFault(&p.rxFault, &TransportError{Code: PacketCodeDecode, Err: err})
		} else {
			select {
			case p.rxCh <- f:
			default:
				glog.V(1).Infof("packet: rx overrun, drop %s", f)
				p.setFault(&p.rxFault, &TransportError{Code: PacketCodeRxOverrun})
			}
		}
		pkt = pkt[WireSize:]
	}
	p.lock.Lock()
	notify := p.notify
	p.lock.Unlock()
	if notify != nil {
		notify()
	}
}

func (p *PacketTransport) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-p.txCh:
			if err := p.ReadWriter.WritePacket(pkt); err != nil {
				glog.Warningf("packet: write error: %v", err)
				p.setFault(&p.txFault, &TransportError{Code: PacketCodeWrite, Err: err})
			}
		}
	}
}

// Close implements io.Closer.
func (p *PacketTransport) Close() error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil
	}
	p.closed = true
	p.lock.Unlock()
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *PacketTransport) AddToLoop(loop *fx.Loop) {
	if adder, ok := p.ReadWriter.(fx.LoopAdder); ok {
		loop.Add(adder)
	} else if runnable, ok := p.ReadWriter.(fx.Runnable); ok {
		loop.AddRunnable(fx.NamedRun("packet-io", runnable))
	}
	loop.AddRunnable(fx.NamedRun("packet", p))
}
