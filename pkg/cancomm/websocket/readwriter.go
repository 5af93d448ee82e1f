// Package websocket tunnels CAN frames over websocket binary messages.
package websocket

import (
	"net/url"

	"golang.org/x/net/websocket"

	"github.com/robotalks/subbus/pkg/cancomm"
)

// ReadWriter implements cancomm.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket server, e.g. ws://host:8080/can.
func Dial(wsURL string) (*ReadWriter, error) {
	conn, err := websocket.Dial(wsURL, "", originOf(wsURL))
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return New(conn), nil
}

// DialTransport connects to a websocket server as a frame transport.
func DialTransport(wsURL string) (*cancomm.PacketTransport, error) {
	rw, err := Dial(wsURL)
	if err != nil {
		return nil, err
	}
	return cancomm.NewPacketTransport(rw), nil
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

func originOf(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://localhost/"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/"
}
