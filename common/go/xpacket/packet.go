// Package xpacket contains helpers to build and parse Ethernet frames in
// tests.
package xpacket

import (
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var serializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// LayersToFrame serializes layers into a frame, fixing lengths and
// checksums.
func LayersToFrame(t testing.TB, lyrs ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOptions, lyrs...))

	return buf.Bytes()
}

// LayersToPacket serializes layers and decodes the result back, failing the
// test if the frame does not decode cleanly.
func LayersToPacket(t testing.TB, lyrs ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()

	pkt := ParseEtherPacket(LayersToFrame(t, lyrs...))
	require.Empty(t, pkt.ErrorLayer(), "%#+v", lyrs)
	return pkt
}

// UDP4 describes an Ethernet/IPv4/UDP test frame.
type UDP4 struct {
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
	SrcIP  netip.Addr
	DstIP  netip.Addr
	TTL    uint8
	// Payload defaults to a short fixed string.
	Payload []byte
}

// Layers returns the serializable layers of the frame.
func (m UDP4) Layers() []gopacket.SerializableLayer {
	eth := &layers.Ethernet{
		SrcMAC:       m.SrcMAC,
		DstMAC:       m.DstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      m.TTL,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    m.SrcIP.AsSlice(),
		DstIP:    m.DstIP.AsSlice(),
	}
	udp := &layers.UDP{
		SrcPort: 1024,
		DstPort: 9,
	}
	_ = udp.SetNetworkLayerForChecksum(ip4)

	payload := m.Payload
	if payload == nil {
		payload = []byte("l3fwd test payload")
	}

	return []gopacket.SerializableLayer{eth, ip4, udp, gopacket.Payload(payload)}
}

// Frame serializes the frame.
func (m UDP4) Frame(t testing.TB) []byte {
	return LayersToFrame(t, m.Layers()...)
}

// ParseEtherPacket decodes a frame starting at the Ethernet layer.
func ParseEtherPacket(data []byte) gopacket.Packet {
	// Pad the packet with zero bytes to align its size at 60 bytes
	// https://github.com/google/gopacket/issues/361
	if len(data) < 60 {
		var zeros [60]byte
		data = append(data, zeros[:60-len(data)]...)
	}

	return gopacket.NewPacket(
		data,
		layers.LayerTypeEthernet,
		gopacket.Default,
	)
}
