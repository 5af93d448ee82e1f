// Package socketcan connects to a Linux SocketCAN interface like can0.
package socketcan

import "errors"

// ErrUnsupported is returned on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan is only supported on linux")
