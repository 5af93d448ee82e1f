package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "subbus"

// MachineID retrieves an ID identifying the machine, hashed with the
// application name so the raw ID isn't exposed. Falls back to the host
// name where no machine ID exists.
func MachineID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id
	}
	glog.Warningf("machine id unavailable: %v", err)
	if id, err = os.Hostname(); err == nil {
		return id
	}
	return "unknown"
}

// ClientID generates a client ID for a transport peer.
func ClientID(role string) string {
	id := MachineID()
	if len(id) > 12 {
		id = id[:12]
	}
	return appID + "-" + role + "-" + id
}
