// Package nexthop packs forwarding actions into the single 64-bit value
// stored by the FIB.
//
// Layout of an encoded nexthop:
//
//	63          48 47                                    0
//	+-------------+---------------------------------------+
//	|  egress port|        destination MAC (EUI-48)        |
//	+-------------+---------------------------------------+
//
// The first MAC octet occupies bits [47:40].
package nexthop

import (
	"fmt"
)

const (
	portShift = 48
	macMask   = uint64(1)<<portShift - 1
)

// PortNone is the egress port of the default action. No configured port may
// use this index.
const PortNone = uint16(0xffff)

// DefaultNexthop is the encoded action returned for addresses no route
// covers: port PortNone and the broadcast MAC.
const DefaultNexthop = uint64(PortNone)<<portShift | macMask

// Action is a decoded forwarding decision.
type Action struct {
	// Port is the egress port index.
	Port uint16
	// MAC is the next-hop link-layer address.
	MAC MAC
}

// Encode packs an egress port and a next-hop MAC into a nexthop value.
func Encode(port uint16, mac MAC) uint64 {
	return uint64(port)<<portShift | mac.Uint64()
}

// Decode unpacks a nexthop value produced by Encode.
func Decode(v uint64) (uint16, MAC) {
	return uint16(v >> portShift), MACFromUint64(v & macMask)
}

// Encode packs the action.
func (m Action) Encode() uint64 {
	return Encode(m.Port, m.MAC)
}

// IsNone reports whether the action is the no-route action.
func (m Action) IsNone() bool {
	return m.Port == PortNone
}

func (m Action) String() string {
	if m.IsNone() {
		return "none"
	}
	return fmt.Sprintf("port %d via %s", m.Port, m.MAC)
}

// DecodeAction unpacks a nexthop value into an Action.
func DecodeAction(v uint64) Action {
	port, mac := Decode(v)
	return Action{Port: port, MAC: mac}
}
