package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/subbus/pkg/cancomm"
	fx "github.com/robotalks/subbus/pkg/framework"
)

// Hub serves websocket peers as if they shared one bus: packets from
// any peer are read by the hub, packets written by the hub go to all
// peers. It implements cancomm.PacketReadWriter.
type Hub struct {
	Addr string
	Path string

	packetCh chan []byte
	done     chan struct{}

	lock  sync.Mutex
	peers map[*websocket.Conn]struct{}
}

// NewHub creates a Hub listening on addr, serving path.
func NewHub(addr, path string) *Hub {
	if path == "" {
		path = "/"
	}
	return &Hub{
		Addr:     addr,
		Path:     path,
		packetCh: make(chan []byte, cancomm.DefaultPacketRxQueue),
		done:     make(chan struct{}),
		peers:    make(map[*websocket.Conn]struct{}),
	}
}

// ListenTransport creates a Hub as a frame transport.
func ListenTransport(addr, path string) (*cancomm.PacketTransport, *Hub) {
	hub := NewHub(addr, path)
	return cancomm.NewPacketTransport(hub), hub
}

// Handler serves one peer connection.
func (h *Hub) Handler() websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		h.lock.Lock()
		h.peers[conn] = struct{}{}
		h.lock.Unlock()
		glog.Infof("websocket: peer %s connected", conn.Request().RemoteAddr)
		defer func() {
			h.lock.Lock()
			delete(h.peers, conn)
			h.lock.Unlock()
			glog.Infof("websocket: peer %s disconnected", conn.Request().RemoteAddr)
		}()
		for {
			var pkt []byte
			if err := websocket.Message.Receive(conn, &pkt); err != nil {
				if err != io.EOF {
					glog.V(1).Infof("websocket: receive error: %v", err)
				}
				return
			}
			select {
			case h.packetCh <- pkt:
			case <-h.done:
				return
			}
		}
	}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.peers)
}

// ReadPacket implements PacketReader.
func (h *Hub) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-h.packetCh:
		return pkt, nil
	case <-h.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter. With no peer the packet is lost
// like a frame on an empty bus.
func (h *Hub) WritePacket(pkt []byte) error {
	h.lock.Lock()
	peers := make([]*websocket.Conn, 0, len(h.peers))
	for conn := range h.peers {
		peers = append(peers, conn)
	}
	h.lock.Unlock()
	var failure error
	for _, conn := range peers {
		if err := websocket.Message.Send(conn, pkt); err != nil && failure == nil {
			failure = err
		}
	}
	return failure
}

func (h *Hub) closePeers() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for conn := range h.peers {
		conn.Close()
	}
}

// Serve serves peers on an existing listener until ctx is done.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	defer close(h.done)
	defer h.closePeers()
	mux := http.NewServeMux()
	mux.Handle(h.Path, h.Handler())
	server := &http.Server{Handler: mux}
	return fx.RunWithContextCloser(ctx, server, func() error {
		return server.Serve(ln)
	})
}

// Run implements Runnable.
func (h *Hub) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.Addr)
	if err != nil {
		close(h.done)
		return err
	}
	glog.Infof("websocket: listening on %s%s", ln.Addr(), h.Path)
	return h.Serve(ctx, ln)
}
