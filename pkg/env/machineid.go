package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// ClientIDPrefix prefixes the default MQTT client id.
const ClientIDPrefix = "mcubridge-"

// maxIDLen keeps client ids within the 23 characters MQTT 3.1 brokers
// are required to accept.
const maxIDLen = 23

// MachineID retrieves an ID identifying the machine, hashed with the
// application name so the raw machine id isn't exposed on the broker.
func MachineID() string {
	id, err := machineid.ProtectedID("mcubridge")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return ""
	}
	return id
}

// DefaultClientID derives the MQTT client id from the machine id.
func DefaultClientID() string {
	return clientID(MachineID())
}

func clientID(machineID string) string {
	id := ClientIDPrefix + machineID
	if machineID == "" {
		id = "mcubridge"
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return id
}
