//go:build !linux

package socketcan

import "github.com/robotalks/subbus/pkg/cancomm"

// NewTransport is not supported on this platform.
func NewTransport(iface string) (*cancomm.PacketTransport, error) {
	return nil, ErrUnsupported
}
