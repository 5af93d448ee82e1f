package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/subbus/pkg/cancomm"
	fx "github.com/robotalks/subbus/pkg/framework"
	"github.com/robotalks/subbus/pkg/subbus"
)

func TestDescDriver(t *testing.T) {
	bus := subbus.New().MustAdd(NewDescDriver("abc"))
	v, ok := bus.Read(DescCountAddr)
	require.True(t, ok)
	require.Equal(t, uint16(2), v)
	v, _ = bus.Read(DescDataAddr)
	require.Equal(t, uint16('a')|uint16('b')<<8, v)
	v, _ = bus.Read(DescDataAddr)
	require.Equal(t, uint16('c'), v)
	v, _ = bus.Read(DescCountAddr)
	require.Zero(t, v)
	v, _ = bus.Read(DescDataAddr)
	require.Zero(t, v)

	bus.Reset()
	v, _ = bus.Read(DescCountAddr)
	require.Equal(t, uint16(2), v)
}

func TestCommandDriver(t *testing.T) {
	var outputs Outputs
	bus := subbus.New().MustAdd(NewCommandDriver(CmdAddr, &outputs))
	testCases := []struct {
		cmd    uint16
		status uint16
	}{
		{CmdStatusOn, StatusLEDBit},
		{CmdFaultOn, StatusLEDBit | FaultLEDBit},
		{CmdShutdownRelease, StatusLEDBit | FaultLEDBit | ShutdownNBit},
		{CmdStatusOff, FaultLEDBit | ShutdownNBit},
		{99, FaultLEDBit | ShutdownNBit},
		{CmdShutdownAssert, FaultLEDBit},
		{CmdFaultOff, 0},
	}
	for _, tc := range testCases {
		require.True(t, bus.Write(CmdAddr, tc.cmd))
		bus.Poll()
		v, ok := bus.Read(CmdAddr)
		require.True(t, ok)
		require.Equal(t, tc.status, v, "after command %d", tc.cmd)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"board out of range", func(c *Config) { c.CANBoard = 16 }, false},
		{"wide board id", func(c *Config) { c.BoardID = 0x10000 }, false},
		{"zero max transfer", func(c *Config) { c.MaxTransfer = 0 }, false},
		{"large max transfer", func(c *Config) { c.MaxTransfer = 256 }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			tc.modify(conf)
			if tc.valid {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
}

func TestBoardOverCAN(t *testing.T) {
	host, dev := cancomm.NewLoopback(0)
	conf := NewConfig()
	conf.CANBoard, conf.Description = 2, "FCC Rev A"
	b, err := conf.NewBoard(dev)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fx.NewLoop().Add(b).Run(ctx) }()

	c := cancomm.NewClient(2, host)
	vals, err := c.ReadInc(ctx, 2, byte(subbus.BuildNumAddr))
	require.NoError(t, err)
	require.Equal(t, []uint16{1, 13}, vals)

	var desc []byte
	for {
		words, err := c.ReadCountNoInc(ctx, 3, byte(DescCountAddr), byte(DescDataAddr))
		require.NoError(t, err)
		if len(words) == 0 {
			break
		}
		for _, w := range words {
			desc = append(desc, byte(w), byte(w>>8))
		}
	}
	require.Equal(t, "FCC Rev A\x00", string(desc))

	require.NoError(t, c.WriteInc(ctx, byte(CmdAddr), CmdFaultOn))
	require.Eventually(t, func() bool {
		vals, err := c.ReadList(ctx, byte(CmdAddr))
		return err == nil && vals[0] == FaultLEDBit
	}, time.Second, time.Millisecond)

	vals, err = c.ReadInc(ctx, 3, byte(cancomm.CANErr0Addr))
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 0, cancomm.MaxTransferLimit}, vals)

	cancel()
	require.True(t, errors.Is(<-done, context.Canceled))
	require.Equal(t, FaultLEDBit, b.Outputs.Status())
}
