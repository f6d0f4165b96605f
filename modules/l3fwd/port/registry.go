// Package port resolves egress port indices used by forwarding rules into
// local ports.
package port

import (
	"fmt"
	"slices"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

// Port is a local egress port.
type Port struct {
	// Index is the egress port index rules refer to.
	Index uint16
	// Name is the interface name.
	Name string
	// MAC is the port's own hardware address, used as the source address
	// of forwarded frames.
	MAC nexthop.MAC
	// LinkIndex is the kernel interface index, zero when unknown.
	LinkIndex int
}

func (m Port) String() string {
	return fmt.Sprintf("%d(%s)", m.Index, m.Name)
}

// Registry looks up configured local ports by index.
type Registry interface {
	// PortByIndex returns the port with the given index.
	PortByIndex(idx uint16) (Port, bool)
}

// StaticRegistry is a fixed set of ports.
type StaticRegistry struct {
	ports map[uint16]Port
}

// NewStaticRegistry builds a registry from a list of ports.
//
// Indices must be unique and must not be nexthop.PortNone.
func NewStaticRegistry(ports []Port) (*StaticRegistry, error) {
	m := &StaticRegistry{ports: make(map[uint16]Port, len(ports))}

	for _, p := range ports {
		if p.Index == nexthop.PortNone {
			return nil, fmt.Errorf("port %q: index %d is reserved", p.Name, p.Index)
		}
		if prev, ok := m.ports[p.Index]; ok {
			return nil, fmt.Errorf("port %q: index %d is already used by %q", p.Name, p.Index, prev.Name)
		}
		m.ports[p.Index] = p
	}

	return m, nil
}

// PortByIndex implements Registry.
func (m *StaticRegistry) PortByIndex(idx uint16) (Port, bool) {
	p, ok := m.ports[idx]
	return p, ok
}

// Ports returns all ports ordered by index.
func (m *StaticRegistry) Ports() []Port {
	ports := make([]Port, 0, len(m.ports))
	for _, p := range m.ports {
		ports = append(ports, p)
	}
	slices.SortFunc(ports, func(a, b Port) int {
		return int(a.Index) - int(b.Index)
	})
	return ports
}

// Len returns the number of ports.
func (m *StaticRegistry) Len() int {
	return len(m.ports)
}
