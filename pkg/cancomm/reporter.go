package cancomm

import (
	"github.com/golang/glog"

	"github.com/robotalks/subbus/pkg/subbus"
)

// Addresses of the CAN control registers.
const (
	CANBaseAddr        uint16 = 0x34
	CANErr0Addr               = CANBaseAddr
	CANErr1Addr               = CANBaseAddr + 1
	CANMaxTransferAddr        = CANBaseAddr + 2
)

// Reporter latches transport faults into two sticky registers and
// decides which protocol errors are worth an ERROR reply.
type Reporter struct {
	drv *subbus.Driver

	errID      uint16
	errSent    bool
	suppressed int
}

// NewReporter creates a Reporter with its register range at base.
// maxTransfer is published read-only after the two error registers.
func NewReporter(base uint16, maxTransfer int) *Reporter {
	r := &Reporter{}
	r.drv = subbus.NewDriver("can", base,
		subbus.RO(0), // CAN_Error_0
		subbus.RO(0), // CAN_Error_1
		subbus.RO(uint16(maxTransfer)),
	).WithReset(func(d *subbus.Driver) {
		d.Cache[0].Value, d.Cache[1].Value = 0, 0
	}).WithPoll(r.poll)
	return r
}

// Driver returns the register range of the reporter.
func (r *Reporter) Driver() *subbus.Driver {
	return r.drv
}

// Sticky returns the current error bitmasks.
func (r *Reporter) Sticky() (uint16, uint16) {
	return r.drv.Cache[0].Value, r.drv.Cache[1].Value
}

// a read clears the register.
func (r *Reporter) poll(d *subbus.Driver) {
	for i := 0; i < 2; i++ {
		if d.Cache[i].TakeRead() {
			d.Cache[i].Value = 0
		}
	}
}

// RecordTransport latches a transport failure: codes 1-15 set the bit
// of the same number in register 0, 16-31 the bit code-16 in register
// 1, anything else bit 0 of register 0.
func (r *Reporter) RecordTransport(err error) {
	code := WireTransportCode(err)
	switch {
	case code > 0 && code <= 15:
		r.drv.Cache[0].Value |= 1 << uint(code)
	case code >= 16 && code <= 31:
		r.drv.Cache[1].Value |= 1 << uint(code-16)
	default:
		r.drv.Cache[0].Value |= 1
	}
	glog.V(1).Infof("reporter: transport fault %v", err)
}

// Allow decides whether an error for frames from id should be sent.
// Once an error went to id, further ones are suppressed until Clear.
func (r *Reporter) Allow(id uint16) bool {
	if r.errSent && r.errID == id {
		r.suppressed++
		return false
	}
	r.errID, r.errSent = id, true
	return true
}

// Clear re-enables errors, called when a new request begins.
func (r *Reporter) Clear() {
	r.errSent = false
}

// Suppressed counts suppressed errors.
func (r *Reporter) Suppressed() int {
	return r.suppressed
}
