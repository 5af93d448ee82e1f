package subbus

// Well-known addresses of the base ranges.
const (
	INTAAddr     uint16 = 0x0001
	BuildNumAddr uint16 = 0x0002
	BoardIDAddr  uint16 = 0x0003
	FailAddr     uint16 = 0x0004
	SwitchesAddr uint16 = 0x0005
)

// NewBaseDriver creates the driver of 0x00-0x03 carrying board
// identification. 0x00 is reserved and INTA is not implemented.
func NewBaseDriver(buildNum, boardID uint16) *Driver {
	return NewDriver("base", 0,
		Reserved(),
		Reserved(),
		RO(buildNum),
		RO(boardID),
	)
}

// NewFailSwitchesDriver creates the driver of the fail register and
// switches. A written fail value takes effect on the next poll, reset
// clears it.
func NewFailSwitchesDriver(switches uint16) *Driver {
	return NewDriver("fail_sw", FailAddr,
		RW(0),
		RO(switches),
	).WithReset(func(d *Driver) {
		d.Cache[0].Value = 0
	}).WithPoll(func(d *Driver) {
		if v, ok := d.IsWritten(FailAddr); ok {
			d.Cache[0].Value = v
		}
	})
}
