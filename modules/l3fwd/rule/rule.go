// Package rule turns forwarding rule descriptions into routes.
//
// A text rule has the form
//
//	A.B.C.D/depth,MM:MM:MM:MM:MM:MM,port
//
// for example "198.18.0.0/24,02:00:01:02:03:04,1" sends 198.18.0.0/24 out of
// port 1 towards 02:00:01:02:03:04.
package rule

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/yanet-platform/l3fwd/common/go/xnetip"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/port"
)

// Raw is a rule split into its three text fields but not yet validated.
type Raw struct {
	// Prefix is the "A.B.C.D/depth" field.
	Prefix string
	// MAC is the next-hop MAC field.
	MAC string
	// Port is the egress port index field.
	Port string
}

// Rule is a structured, validated rule whose egress port is not yet
// resolved.
type Rule struct {
	Addr      netip.Addr
	Depth     uint8
	MAC       nexthop.MAC
	PortIndex uint16
	// Origin tells where the rule came from, for error messages.
	Origin string
}

func (m Rule) String() string {
	return fmt.Sprintf("%s/%d,%s,%d", m.Addr, m.Depth, m.MAC, m.PortIndex)
}

// Route is a rule bound to an existing local port, ready to be inserted
// into the FIB.
type Route struct {
	// Prefix is the IPv4 prefix in host byte order.
	Prefix uint32
	Depth  uint8
	Action nexthop.Action
}

// Nexthop returns the encoded action.
func (m Route) Nexthop() uint64 {
	return m.Action.Encode()
}

func (m Route) String() string {
	return fmt.Sprintf("%s/%d -> %s", xnetip.AddrFromUint32(m.Prefix), m.Depth, m.Action)
}

// Split splits a text rule into its fields.
func Split(line string) (Raw, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return Raw{}, fmt.Errorf("%w: expected 3 comma-separated fields, got %d", ErrMalformedRule, len(fields))
	}

	return Raw{
		Prefix: strings.TrimSpace(fields[0]),
		MAC:    strings.TrimSpace(fields[1]),
		Port:   strings.TrimSpace(fields[2]),
	}, nil
}

// Parse validates the fields.
//
// Fields are checked in order: prefix shape, address, depth, MAC, port.
func (m Raw) Parse() (Rule, error) {
	addrDepth := strings.Split(m.Prefix, "/")
	if len(addrDepth) != 2 {
		return Rule{}, fmt.Errorf("%w: expected address/depth, got %q", ErrMalformedRule, m.Prefix)
	}

	addr, err := parseAddr(addrDepth[0])
	if err != nil {
		return Rule{}, err
	}

	depth, err := strconv.ParseUint(addrDepth[1], 10, 8)
	if err != nil || depth > 32 {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidDepth, addrDepth[1])
	}

	mac, err := nexthop.ParseMAC(m.MAC)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidMACAddress, err)
	}

	portIdx, err := parsePort(m.Port)
	if err != nil {
		return Rule{}, err
	}

	return Rule{
		Addr:      addr,
		Depth:     uint8(depth),
		MAC:       mac,
		PortIndex: portIdx,
	}, nil
}

// ParseLine splits and parses a text rule.
func ParseLine(line string) (Rule, error) {
	raw, err := Split(line)
	if err != nil {
		return Rule{}, err
	}
	return raw.Parse()
}

// Resolve checks the rule and binds it to a local port.
func (m Rule) Resolve(ports port.Registry) (Route, error) {
	prefix, ok := xnetip.AddrToUint32(m.Addr)
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrInvalidAddress, m.Addr)
	}
	if m.Depth > 32 {
		return Route{}, fmt.Errorf("%w: %d", ErrInvalidDepth, m.Depth)
	}
	if m.PortIndex == nexthop.PortNone {
		return Route{}, fmt.Errorf("%w: %d is reserved", ErrInvalidPort, m.PortIndex)
	}
	if _, ok := ports.PortByIndex(m.PortIndex); !ok {
		return Route{}, fmt.Errorf("%w: no local port with index %d", ErrUnknownPort, m.PortIndex)
	}

	return Route{
		Prefix: prefix,
		Depth:  m.Depth,
		Action: nexthop.Action{Port: m.PortIndex, MAC: m.MAC},
	}, nil
}

// parseAddr parses exactly four decimal octets.
//
// netip.ParseAddr is not used because it also accepts IPv6 forms.
func parseAddr(s string) (netip.Addr, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var b [4]byte
	for idx, octet := range octets {
		v, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %q: bad octet %q", ErrInvalidAddress, s, octet)
		}
		b[idx] = uint8(v)
	}

	return netip.AddrFrom4(b), nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if uint16(v) == nexthop.PortNone {
		return 0, fmt.Errorf("%w: %d is reserved", ErrInvalidPort, v)
	}
	return uint16(v), nil
}
