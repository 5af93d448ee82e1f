package board

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/subbus/pkg/cancomm"
	"github.com/robotalks/subbus/pkg/subbus"
)

// Config provides the options of a board.
type Config struct {
	// CANBoard is the board number in CAN identifiers (0-15).
	CANBoard uint
	// BoardID is the subbus board type identification.
	BoardID uint
	// BuildNum is the firmware build number.
	BuildNum uint
	// Description is served through the description FIFO.
	Description string
	// Switches is the value of the switches register.
	Switches uint
	// MaxTransfer limits request and reply payloads.
	MaxTransfer int
	// PollInterval is the maximum idle time of the poll loop.
	PollInterval time.Duration
	// TransportURL specifies the CAN transport.
	// e.g. mqtt://host:port/topic-prefix/, socketcan://can0
	TransportURL string
}

var defaultConfig = Config{
	CANBoard:     1,
	BoardID:      13,
	BuildNum:     1,
	Description:  "V7:178:Plant Chamber FCC Rev A V1.2",
	MaxTransfer:  cancomm.MaxTransferLimit,
	PollInterval: time.Millisecond,
	TransportURL: "mqtt://localhost:1883/subbus/",
}

func init() {
	if val := os.Getenv("SUBBUS_TRANSPORT_URL"); val != "" {
		defaultConfig.TransportURL = val
	}
	if val := os.Getenv("SUBBUS_BOARD"); val != "" {
		if n, err := strconv.ParseUint(val, 0, 8); err == nil {
			defaultConfig.CANBoard = uint(n)
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.UintVar(&defaultConfig.CANBoard, "board", defaultConfig.CANBoard, "CAN board number")
	flag.UintVar(&defaultConfig.BoardID, "board-id", defaultConfig.BoardID, "Subbus board ID")
	flag.UintVar(&defaultConfig.BuildNum, "build", defaultConfig.BuildNum, "Build number")
	flag.StringVar(&defaultConfig.Description, "desc", defaultConfig.Description, "Board description")
	flag.UintVar(&defaultConfig.Switches, "switches", defaultConfig.Switches, "Switches register value")
	flag.IntVar(&defaultConfig.MaxTransfer, "max-transfer", defaultConfig.MaxTransfer, "Max transfer size in bytes")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Poll interval")
	flag.StringVar(&defaultConfig.TransportURL, "transport", defaultConfig.TransportURL, "CAN transport URL")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the options.
func (c *Config) Validate() error {
	if c.CANBoard > 15 {
		return fmt.Errorf("CAN board number %d out of range 0-15", c.CANBoard)
	}
	if c.BoardID > 0xffff || c.BuildNum > 0xffff || c.Switches > 0xffff {
		return fmt.Errorf("board id, build number and switches must fit 16 bits")
	}
	if c.MaxTransfer <= 0 || c.MaxTransfer > cancomm.MaxTransferLimit {
		return fmt.Errorf("max transfer must be 1-%d", cancomm.MaxTransferLimit)
	}
	return nil
}

// NewBoard creates a Board serving over t.
func (c *Config) NewBoard(t cancomm.Transport) (*Board, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b := &Board{Config: *c, Bus: subbus.New()}
	b.Engine = cancomm.NewEngine(uint8(c.CANBoard), t, b.Bus,
		cancomm.WithMaxTransfer(c.MaxTransfer))
	err := b.Bus.Add(
		subbus.NewBaseDriver(uint16(c.BuildNum), uint16(c.BoardID)),
		subbus.NewFailSwitchesDriver(uint16(c.Switches)),
		NewDescDriver(c.Description),
		NewCommandDriver(CmdAddr, &b.Outputs),
		b.Engine.Driver(),
	)
	if err != nil {
		return nil, err
	}
	b.Bus.Reset()
	return b, nil
}

// MustNewBoard creates Board and fails on error.
func (c *Config) MustNewBoard(t cancomm.Transport) *Board {
	b, err := c.NewBoard(t)
	if err != nil {
		log.Fatalln(err)
	}
	return b
}
