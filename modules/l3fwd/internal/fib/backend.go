package fib

import (
	"fmt"
	"iter"
	"net/netip"

	"github.com/gaissmai/bart"
)

// Backend names an LPM implementation behind the table.
type Backend string

const (
	// BackendMapTrie stores one hash map per prefix length.
	BackendMapTrie Backend = "maptrie"
	// BackendBART uses a balanced routing table (ART with popcount
	// compressed nodes).
	BackendBART Backend = "bart"
)

// UnmarshalText validates backend names coming from configuration.
func (m *Backend) UnmarshalText(text []byte) error {
	backend := Backend(text)
	switch backend {
	case BackendMapTrie, BackendBART:
		*m = backend
		return nil
	default:
		return fmt.Errorf("unknown FIB backend %q", backend)
	}
}

// lpm is the storage contract shared by the backends.
//
// Prefixes passed to insert and has are already masked.
type lpm interface {
	insert(prefix netip.Prefix, nexthop uint64)
	has(prefix netip.Prefix) bool
	lookup(addr netip.Addr) (uint64, bool)
	all() iter.Seq2[netip.Prefix, uint64]
}

func newLPM(backend Backend, capacity int) (lpm, error) {
	switch backend {
	case BackendMapTrie, "":
		return &mapTrieLPM{
			trie: NewMapTrie[netip.Prefix, netip.Addr, uint64](capacity),
		}, nil
	case BackendBART:
		return &bartLPM{table: new(bart.Table[uint64])}, nil
	default:
		return nil, fmt.Errorf("unknown FIB backend %q", backend)
	}
}

type mapTrieLPM struct {
	trie *MapTrie[netip.Prefix, netip.Addr, uint64]
}

func (m *mapTrieLPM) insert(prefix netip.Prefix, nexthop uint64) {
	m.trie.Insert(prefix, nexthop)
}

func (m *mapTrieLPM) has(prefix netip.Prefix) bool {
	_, ok := m.trie.Get(prefix)
	return ok
}

func (m *mapTrieLPM) lookup(addr netip.Addr) (uint64, bool) {
	_, nexthop, ok := m.trie.Lookup(addr)
	return nexthop, ok
}

func (m *mapTrieLPM) all() iter.Seq2[netip.Prefix, uint64] {
	return m.trie.All()
}

type bartLPM struct {
	table *bart.Table[uint64]
}

func (m *bartLPM) insert(prefix netip.Prefix, nexthop uint64) {
	m.table.Insert(prefix, nexthop)
}

func (m *bartLPM) has(prefix netip.Prefix) bool {
	_, ok := m.table.Get(prefix)
	return ok
}

func (m *bartLPM) lookup(addr netip.Addr) (uint64, bool) {
	return m.table.Lookup(addr)
}

func (m *bartLPM) all() iter.Seq2[netip.Prefix, uint64] {
	return m.table.All4()
}
