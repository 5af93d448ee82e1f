package board

import (
	"github.com/golang/glog"

	"github.com/robotalks/subbus/pkg/subbus"
)

// Addresses of the board specific ranges.
const (
	DescCountAddr uint16 = 0x0006
	DescDataAddr  uint16 = 0x0007
	CmdAddr       uint16 = 0x0018
)

// NewDescDriver creates the description FIFO. DescCountAddr holds the
// number of words left, each read of DescDataAddr yields the next two
// characters, first one in the low byte. Reset rewinds.
func NewDescDriver(desc string) *subbus.Driver {
	data := []byte(desc)
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	var cursor int
	refresh := func(d *subbus.Driver) {
		d.Cache[0].Value = uint16((len(data) - cursor) / 2)
		if cursor < len(data) {
			d.Cache[1].Value = uint16(data[cursor]) | uint16(data[cursor+1])<<8
		} else {
			d.Cache[1].Value = 0
		}
	}
	drv := subbus.NewDriver("desc", DescCountAddr,
		subbus.RO(0),
		subbus.RO(0).AsDynamic(),
	).WithReset(func(d *subbus.Driver) {
		cursor = 0
		refresh(d)
	}).WithOnDemand(func(d *subbus.Driver, offset uint16) {
		if offset == 1 && cursor < len(data) {
			cursor += 2
		}
		refresh(d)
	})
	refresh(drv)
	return drv
}

// Commands accepted by the command register.
const (
	CmdStatusOff uint16 = iota
	CmdStatusOn
	CmdFaultOff
	CmdFaultOn
	CmdShutdownAssert
	CmdShutdownRelease
)

// Bits of the command status.
const (
	StatusLEDBit uint16 = 0x01
	FaultLEDBit  uint16 = 0x02
	ShutdownNBit uint16 = 0x04
)

// Outputs are the discrete outputs driven by the command register.
// ShutdownN is active low.
type Outputs struct {
	StatusLED bool
	FaultLED  bool
	ShutdownN bool
}

// Status encodes the outputs as read back from the command register.
func (o Outputs) Status() uint16 {
	var status uint16
	if o.StatusLED {
		status |= StatusLEDBit
	}
	if o.FaultLED {
		status |= FaultLEDBit
	}
	if o.ShutdownN {
		status |= ShutdownNBit
	}
	return status
}

// Apply executes a command, unknown ones are ignored.
func (o *Outputs) Apply(cmd uint16) bool {
	switch cmd {
	case CmdStatusOff, CmdStatusOn:
		o.StatusLED = cmd == CmdStatusOn
	case CmdFaultOff, CmdFaultOn:
		o.FaultLED = cmd == CmdFaultOn
	case CmdShutdownAssert, CmdShutdownRelease:
		o.ShutdownN = cmd == CmdShutdownRelease
	default:
		return false
	}
	return true
}

// NewCommandDriver creates the command register at addr. A write is
// applied to outputs on the next poll, a read returns the status.
func NewCommandDriver(addr uint16, outputs *Outputs) *subbus.Driver {
	return subbus.NewDriver("cmd", addr,
		subbus.RW(outputs.Status()),
	).WithPoll(func(d *subbus.Driver) {
		if cmd, ok := d.IsWritten(addr); ok {
			if !outputs.Apply(cmd) {
				glog.V(1).Infof("board: unknown command %d", cmd)
			}
		}
		d.Update(addr, outputs.Status())
	})
}
