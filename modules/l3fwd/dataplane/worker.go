// Package dataplane is the packet loop side of the forwarder: it takes
// batches of Ethernet frames, resolves their IPv4 destinations and rewrites
// them for their egress port.
package dataplane

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/port"
)

const (
	ipv4TTLOffset      = 8
	ipv4ChecksumOffset = 10
)

// Lookuper resolves destination addresses in bulk.
type Lookuper interface {
	LookupBulk(addrs []uint32, out []nexthop.Action) ([]nexthop.Action, error)
}

// Verdict is the forwarding decision for one frame.
type Verdict struct {
	// Port is the egress port, valid unless Drop is set.
	Port uint16
	// Drop reports that the frame must not be sent.
	Drop bool
	// Reason explains a drop.
	Reason DropReason
}

// Worker processes frame batches. A worker is not safe for concurrent use;
// run one worker per forwarding goroutine, sharing the Lookuper.
type Worker struct {
	fwd   Lookuper
	ports port.Registry
	stats *Stats

	parser  *gopacket.DecodingLayerParser
	eth     layers.Ethernet
	ip4     layers.IPv4
	decoded []gopacket.LayerType

	addrs   []uint32
	pending []int
	actions []nexthop.Action
	tx      map[uint16]txPort
}

type txPort struct {
	port port.Port
	sent prometheus.Counter
}

// NewWorker creates a worker.
func NewWorker(fwd Lookuper, ports port.Registry, stats *Stats) *Worker {
	m := &Worker{
		fwd:   fwd,
		ports: ports,
		stats: stats,
		tx:    map[uint16]txPort{},
	}

	m.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &m.eth, &m.ip4)
	// Transport layers are not decoded.
	m.parser.IgnoreUnsupported = true

	return m
}

// Process decides the fate of every frame in the batch and rewrites
// forwarded frames in place: destination MAC to the next hop, source MAC to
// the egress port, TTL decremented.
//
// Verdicts are written into verdicts, in frame order; its capacity is
// reused.
func (m *Worker) Process(frames [][]byte, verdicts []Verdict) ([]Verdict, error) {
	verdicts = slices.Grow(verdicts[:0], len(frames))
	m.addrs = m.addrs[:0]
	m.pending = m.pending[:0]

	m.stats.rx.Add(float64(len(frames)))

	for idx, frame := range frames {
		verdict := m.classify(frame)
		if !verdict.Drop {
			m.addrs = append(m.addrs, binary.BigEndian.Uint32(m.ip4.DstIP.To4()))
			m.pending = append(m.pending, idx)
		}
		verdicts = append(verdicts, verdict)
	}

	if len(m.addrs) == 0 {
		return verdicts, nil
	}

	actions, err := m.fwd.LookupBulk(m.addrs, m.actions)
	if err != nil {
		return verdicts[:0], fmt.Errorf("failed to lookup destinations: %w", err)
	}
	m.actions = actions

	for k, idx := range m.pending {
		verdicts[idx] = m.forward(frames[idx], actions[k])
	}

	return verdicts, nil
}

func (m *Worker) classify(frame []byte) Verdict {
	if err := m.parser.DecodeLayers(frame, &m.decoded); err != nil {
		return m.drop(DropNotIPv4)
	}
	if !slices.Contains(m.decoded, layers.LayerTypeIPv4) {
		return m.drop(DropNotIPv4)
	}
	if m.ip4.TTL <= 1 {
		return m.drop(DropTTLExceeded)
	}
	return Verdict{}
}

func (m *Worker) forward(frame []byte, action nexthop.Action) Verdict {
	if action.IsNone() {
		return m.drop(DropNoRoute)
	}

	tx, ok := m.txPort(action.Port)
	if !ok {
		return m.drop(DropUnknownPort)
	}

	copy(frame[0:6], action.MAC[:])
	copy(frame[6:12], tx.port.MAC[:])

	// Frames reaching here were decoded as untagged Ethernet + IPv4.
	hdrLen := int(frame[14]&0x0f) * 4
	hdr := frame[14 : 14+hdrLen]
	hdr[ipv4TTLOffset]--
	binary.BigEndian.PutUint16(hdr[ipv4ChecksumOffset:], 0)
	binary.BigEndian.PutUint16(hdr[ipv4ChecksumOffset:], ipv4Checksum(hdr))

	tx.sent.Inc()

	return Verdict{Port: action.Port}
}

func (m *Worker) txPort(idx uint16) (txPort, bool) {
	if tx, ok := m.tx[idx]; ok {
		return tx, true
	}

	p, ok := m.ports.PortByIndex(idx)
	if !ok {
		return txPort{}, false
	}

	tx := txPort{port: p, sent: m.stats.txCounter(idx)}
	m.tx[idx] = tx
	return tx, true
}

func (m *Worker) drop(reason DropReason) Verdict {
	m.stats.dropCounter(reason).Inc()
	return Verdict{Drop: true, Reason: reason}
}

// ipv4Checksum computes the header checksum over hdr, whose checksum field
// must be zero.
func ipv4Checksum(hdr []byte) uint16 {
	var sum uint32
	for idx := 0; idx+1 < len(hdr); idx += 2 {
		sum += uint32(binary.BigEndian.Uint16(hdr[idx:]))
	}
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return ^uint16(sum)
}
