package nexthop

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidMAC is returned when a MAC address is not six colon-separated
// hexadecimal octets.
var ErrInvalidMAC = errors.New("invalid MAC address")

// MAC is an EUI-48 hardware address in transmission order.
type MAC [6]byte

// BroadcastMAC is ff:ff:ff:ff:ff:ff.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses a MAC address in "aa:bb:cc:dd:ee:ff" notation.
//
// Unlike net.ParseMAC, only the colon-separated EUI-48 form is accepted,
// but octets may omit their leading zero ("2:0:1:2:3:4").
func ParseMAC(s string) (MAC, error) {
	var mac MAC

	octets := strings.Split(s, ":")
	if len(octets) != len(mac) {
		return MAC{}, fmt.Errorf("%w %q: expected %d octets, got %d", ErrInvalidMAC, s, len(mac), len(octets))
	}

	for idx, octet := range octets {
		if len(octet) == 0 || len(octet) > 2 {
			return MAC{}, fmt.Errorf("%w %q: bad octet %q", ErrInvalidMAC, s, octet)
		}
		v, err := strconv.ParseUint(octet, 16, 8)
		if err != nil {
			return MAC{}, fmt.Errorf("%w %q: bad octet %q", ErrInvalidMAC, s, octet)
		}
		mac[idx] = uint8(v)
	}

	return mac, nil
}

// MACFromHardwareAddr converts a 6-byte net.HardwareAddr.
func MACFromHardwareAddr(addr net.HardwareAddr) (MAC, bool) {
	var mac MAC
	if len(addr) != len(mac) {
		return MAC{}, false
	}
	copy(mac[:], addr)
	return mac, true
}

// Uint64 packs the address into the low 48 bits, first octet most
// significant.
func (m MAC) Uint64() uint64 {
	return uint64(m[0])<<40 |
		uint64(m[1])<<32 |
		uint64(m[2])<<24 |
		uint64(m[3])<<16 |
		uint64(m[4])<<8 |
		uint64(m[5])
}

// MACFromUint64 is the inverse of MAC.Uint64. Bits above 48 are ignored.
func MACFromUint64(v uint64) MAC {
	return MAC{
		uint8(v >> 40),
		uint8(v >> 32),
		uint8(v >> 24),
		uint8(v >> 16),
		uint8(v >> 8),
		uint8(v),
	}
}

func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m MAC) String() string {
	return m.HardwareAddr().String()
}

// MarshalText implements encoding.TextMarshaler.
func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so MAC addresses can be
// used directly in YAML configuration.
func (m *MAC) UnmarshalText(text []byte) error {
	mac, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = mac
	return nil
}
