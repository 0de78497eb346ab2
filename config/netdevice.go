package config

import (
	"fmt"
	"net"

	"github.com/jsimonetti/rtnetlink/rtnl"
)

// ResolveNetworkDevice validates network_device at config load time
// against the live link table (spec.md §6), so a typo'd interface name
// is a ConfigError at startup rather than a silent no-op: existence (the
// link must resolve), a usable MTU, and an up operstate.
//
// Grounded on the teacher's rtnl.Dial-based interface lookups
// (responder/server/ip.go), generalized from its address-mutation calls
// to a read-only existence/MTU/state check.
func ResolveNetworkDevice(name string) (*net.Interface, error) {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("config: network_device: dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	iface, err := conn.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("config: network_device %q not found: %w", name, err)
	}
	if iface.MTU <= 0 {
		return nil, fmt.Errorf("config: network_device %q has no usable MTU", name)
	}
	if iface.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("config: network_device %q is down", name)
	}
	return iface, nil
}
