package singleinstance

import (
	"os"
	"strconv"
)

const (
	defaultPortStart = 49600
	defaultPortEnd   = 49650

	portStartEnv = "SINGLEINSTANCE_PORT_START"
	portEndEnv   = "SINGLEINSTANCE_PORT_END"
)

// getPortRange returns the inclusive TCP port range, overridable through
// SINGLEINSTANCE_PORT_START and SINGLEINSTANCE_PORT_END. Values are clamped
// to [1024, 65535]; invalid values fall back to defaults.
func getPortRange() (int, int) {
	start := envPort(portStartEnv, defaultPortStart)
	end := envPort(portEndEnv, defaultPortEnd)
	if end < start {
		start, end = end, start
	}
	return start, end
}

func envPort(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	switch {
	case n < 1024:
		return 1024
	case n > 65535:
		return 65535
	}
	return n
}

// PortRange exposes the effective port range for logging.
func PortRange() (int, int) { return getPortRange() }
