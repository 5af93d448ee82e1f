// Package env creates transports and connections from configuration.
package env

import (
	"fmt"
	"net/url"

	"github.com/robotalks/subbus/pkg/board"
	"github.com/robotalks/subbus/pkg/cancomm"
	"github.com/robotalks/subbus/pkg/cancomm/mqtt"
	"github.com/robotalks/subbus/pkg/cancomm/socketcan"
	"github.com/robotalks/subbus/pkg/cancomm/stream"
	"github.com/robotalks/subbus/pkg/cancomm/websocket"
	fx "github.com/robotalks/subbus/pkg/framework"
)

// Side selects which end of the exchange a transport serves.
type Side int

// Sides.
const (
	BoardSide Side = iota
	HostSide
)

func (s Side) String() string {
	if s == BoardSide {
		return "board"
	}
	return "host"
}

// NewTransport creates a transport from URL:
//   mqtt://host:port/prefix/  frames tunnelled through an MQTT broker
//   socketcan://can0          Linux SocketCAN interface
//   ws://host:port/path       websocket client
//   ws-listen://:port/path    websocket server, peers share the bus
//   stream://host:port        raw frames over TCP, e.g. a serial bridge
//   loopback:                 host side only, talks to a simulated board
func NewTransport(rawURL string, side Side, boardNum uint8) (cancomm.Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL: %v", err)
	}
	switch u.Scheme {
	case "mqtt", "tcp", "ssl":
		t, rw, err := mqtt.NewTransport(rawURL, ClientID(side.String()))
		if err != nil {
			return nil, err
		}
		if side == BoardSide {
			rw.ForBoard(boardNum)
		} else {
			rw.ForHost(boardNum)
		}
		return t, nil
	case "socketcan":
		iface := u.Host
		if iface == "" {
			iface = u.Opaque
		}
		return socketcan.NewTransport(iface)
	case "ws", "wss":
		return websocket.DialTransport(rawURL)
	case "ws-listen":
		t, _ := websocket.ListenTransport(u.Host, u.Path)
		return t, nil
	case "stream":
		return stream.DialTransport("tcp", u.Host)
	case "loopback":
		if side != HostSide {
			return nil, fmt.Errorf("loopback transport is only available to hosts")
		}
		return NewSimulated(boardNum)
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
}

// Simulated is the host end of a loopback link with a simulated board
// at the other end. The board runs in the loop the transport is added to.
type Simulated struct {
	*cancomm.Loopback
	Board *board.Board
}

// NewSimulated creates a simulated board with default config.
func NewSimulated(boardNum uint8) (*Simulated, error) {
	host, dev := cancomm.NewLoopback(0)
	conf := board.NewConfig()
	conf.CANBoard = uint(boardNum)
	b, err := conf.NewBoard(dev)
	if err != nil {
		return nil, err
	}
	return &Simulated{Loopback: host, Board: b}, nil
}

// AddToLoop implements LoopAdder.
func (s *Simulated) AddToLoop(loop *fx.Loop) {
	loop.Add(s.Board)
}
