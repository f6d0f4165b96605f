package xnetip

import (
	"encoding/binary"
	"net/netip"
)

// AddrFromUint32 converts an IPv4 address in host byte order.
func AddrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// AddrToUint32 converts an IPv4 (or IPv4-mapped IPv6) address into host
// byte order.
//
// The second return value is false for IPv6 addresses.
func AddrToUint32(addr netip.Addr) (uint32, bool) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}

// PrefixFromUint32 builds an IPv4 prefix, masking bits beyond depth.
func PrefixFromUint32(v uint32, depth int) (netip.Prefix, error) {
	return AddrFromUint32(v).Prefix(depth)
}

// LastAddr returns the last (broadcast) address of an IPv4 prefix.
func LastAddr(prefix netip.Prefix) netip.Addr {
	addrBits, _ := AddrToUint32(prefix.Masked().Addr())
	wildcardBits := uint32(uint64(1)<<(32-prefix.Bits()) - 1)

	return AddrFromUint32(addrBits | wildcardBits)
}
