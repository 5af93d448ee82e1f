package env

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/subbus/pkg/cancomm"
	fx "github.com/robotalks/subbus/pkg/framework"
)

// Config provides common options for hosts talking to a board.
type Config struct {
	// Board is the CAN board number to talk to.
	Board uint
	// TransportURL specifies the CAN transport.
	// e.g. mqtt://host:port/topic-prefix/
	TransportURL string
	// Timeout limits each request.
	Timeout time.Duration
}

var defaultConfig = Config{
	Board:        1,
	TransportURL: "mqtt://localhost:1883/subbus/",
	Timeout:      time.Second,
}

func init() {
	if val := os.Getenv("SUBBUS_TRANSPORT_URL"); val != "" {
		defaultConfig.TransportURL = val
	}
	if val := os.Getenv("SUBBUS_BOARD"); val != "" {
		if n, err := strconv.ParseUint(val, 0, 8); err == nil {
			defaultConfig.Board = uint(n)
		}
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.UintVar(&defaultConfig.Board, "board", defaultConfig.Board, "CAN board number to talk to.")
	flag.StringVar(&defaultConfig.TransportURL, "transport", defaultConfig.TransportURL, "CAN transport URL.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Request timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Conn is a host connection to a board with the loop driving its
// transport.
type Conn struct {
	Client *cancomm.Client
	Loop   *fx.Loop
	Board  uint8

	cancel func()
}

// Connect creates the transport and starts its loop.
func (c *Config) Connect() (*Conn, error) {
	if c.Board > 15 {
		return nil, fmt.Errorf("CAN board number %d out of range 0-15", c.Board)
	}
	board := uint8(c.Board)
	t, err := NewTransport(c.TransportURL, HostSide, board)
	if err != nil {
		return nil, err
	}
	conn := &Conn{
		Client: cancomm.NewClient(board, t),
		Loop:   fx.NewLoop(),
		Board:  board,
	}
	if adder, ok := t.(fx.LoopAdder); ok {
		conn.Loop.Add(adder)
	} else if runnable, ok := t.(fx.Runnable); ok {
		conn.Loop.AddRunnable(runnable)
	}
	var ctx context.Context
	ctx, conn.cancel = context.WithCancel(context.Background())
	go func() {
		if err := conn.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("connection to board %d stopped: %v", board, err)
		}
	}()
	return conn, nil
}

// MustConnect connects and fails on error.
func (c *Config) MustConnect() *Conn {
	conn, err := c.Connect()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Close stops the loop.
func (c *Conn) Close() error {
	c.cancel()
	return nil
}
