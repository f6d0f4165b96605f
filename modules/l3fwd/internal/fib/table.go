// Package fib implements the IPv4 forwarding table: a longest-prefix-match
// structure mapping prefixes to encoded nexthops.
//
// A Table is populated once and then only read. Reads need no
// synchronization as long as population happened-before them.
package fib

import (
	"cmp"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"github.com/yanet-platform/l3fwd/common/go/xnetip"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

var (
	// ErrTableFull is returned when inserting a new prefix into a table that
	// already holds MaxRoutes prefixes.
	ErrTableFull = errors.New("FIB table is full")
	// ErrInvalidDepth is returned for prefix lengths above 32.
	ErrInvalidDepth = errors.New("invalid prefix depth")
)

// DefaultMaxRoutes is the capacity of the forwarding table.
const DefaultMaxRoutes = 1 << 16

// Config describes the forwarding table.
type Config struct {
	// MaxRoutes is the maximum number of distinct prefixes.
	MaxRoutes uint32 `yaml:"max_routes"`
	// DefaultNexthop is returned for addresses no route covers.
	DefaultNexthop uint64 `yaml:"default_nexthop"`
	// Backend selects the LPM implementation.
	Backend Backend `yaml:"backend"`
}

// DefaultConfig returns the default table configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRoutes:      DefaultMaxRoutes,
		DefaultNexthop: nexthop.DefaultNexthop,
		Backend:        BackendMapTrie,
	}
}

// Entry is a single stored route.
type Entry struct {
	Prefix  netip.Prefix
	Nexthop uint64
}

// Table is an IPv4 longest-prefix-match table of encoded nexthops.
type Table struct {
	lpm            lpm
	backend        Backend
	len            uint32
	maxRoutes      uint32
	defaultNexthop uint64
}

// New creates an empty table. Every address resolves to the default nexthop
// until routes are inserted.
func New(cfg *Config) (*Table, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendMapTrie
	}

	lpm, err := newLPM(backend, int(cfg.MaxRoutes))
	if err != nil {
		return nil, err
	}

	return &Table{
		lpm:            lpm,
		backend:        backend,
		maxRoutes:      cfg.MaxRoutes,
		defaultNexthop: cfg.DefaultNexthop,
	}, nil
}

// Insert adds the route prefix/depth, or replaces the nexthop of an existing
// route with the same prefix and depth.
//
// Bits of prefix beyond depth are ignored.
func (m *Table) Insert(prefix uint32, depth uint8, nh uint64) error {
	if depth > maxBits {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}

	pfx, err := xnetip.PrefixFromUint32(prefix, int(depth))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDepth, err)
	}

	if !m.lpm.has(pfx) {
		if m.len >= m.maxRoutes {
			return fmt.Errorf("%w: cannot add %s, capacity is %d routes", ErrTableFull, pfx, m.maxRoutes)
		}
		m.len++
	}
	m.lpm.insert(pfx, nh)

	return nil
}

// Lookup returns the nexthop of the longest prefix covering addr, or the
// default nexthop.
func (m *Table) Lookup(addr uint32) uint64 {
	if nh, ok := m.lpm.lookup(xnetip.AddrFromUint32(addr)); ok {
		return nh
	}
	return m.defaultNexthop
}

// LookupBulk resolves every address in addrs, in order.
//
// Results are written into out, which is grown only when its capacity is
// smaller than len(addrs).
func (m *Table) LookupBulk(addrs []uint32, out []uint64) []uint64 {
	out = slices.Grow(out[:0], len(addrs))
	for _, addr := range addrs {
		out = append(out, m.Lookup(addr))
	}
	return out
}

// Len returns the number of stored routes.
func (m *Table) Len() int {
	return int(m.len)
}

// Capacity returns the maximum number of routes.
func (m *Table) Capacity() int {
	return int(m.maxRoutes)
}

// Default returns the nexthop used when no route matches.
func (m *Table) Default() uint64 {
	return m.defaultNexthop
}

// Backend returns the LPM implementation in use.
func (m *Table) Backend() Backend {
	return m.backend
}

// Entries returns all routes ordered by address, then by depth.
func (m *Table) Entries() []Entry {
	entries := make([]Entry, 0, m.len)
	for prefix, nh := range m.lpm.all() {
		entries = append(entries, Entry{Prefix: prefix, Nexthop: nh})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.Prefix.Addr().Compare(b.Prefix.Addr()); c != 0 {
			return c
		}
		return cmp.Compare(a.Prefix.Bits(), b.Prefix.Bits())
	})

	return entries
}
