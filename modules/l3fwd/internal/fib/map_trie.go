package fib

import (
	"iter"
	"math/bits"
)

// maxBits is the widest prefix the trie holds (IPv4).
const maxBits = 32

// MapTrieKey defines requirements for keys used in the MapTrie data structure.
//
// The type parameter T represents the concrete type implementing this
// interface.
type MapTrieKey[T any] interface {
	comparable
	// Masked returns a normalized version of the key with only significant
	// bits.
	Masked() T
	// Bits returns the number of significant bits in this key.
	Bits() int
}

// MapTrieQuery defines the interface for objects that can be used for querying
// the MapTrie.
type MapTrieQuery[K MapTrieKey[K]] interface {
	// BitLen returns the maximum number of significant bits in this query.
	BitLen() int
	// Prefix generates a key of the specified bit length from this query.
	Prefix(int) (K, error)
}

// MapTrie is a prefix trie implemented as one hash map per prefix length.
//
// A lookup probes the maps from the longest populated length down to the
// shortest, so its cost is bounded by the number of distinct prefix lengths
// present rather than by the number of prefixes.
type MapTrie[K MapTrieKey[K], Q MapTrieQuery[K], V any] struct {
	levels [maxBits + 1]map[K]V
	// depths has bit N set when levels[N] is not empty.
	depths uint64
	len    int
}

// NewMapTrie returns an empty MapTrie.
//
// The capacity hint is spread over the lengths that dominate real tables
// (/16 to /24); other lengths grow on demand.
func NewMapTrie[K MapTrieKey[K], Q MapTrieQuery[K], V any](capacity int) *MapTrie[K, Q, V] {
	trie := &MapTrie[K, Q, V]{}

	perLevel := capacity / 9
	for idx := 16; idx <= 24; idx++ {
		trie.levels[idx] = make(map[K]V, perLevel)
	}

	return trie
}

// Lookup searches the MapTrie for a value that matches the longest
// possible prefix for the given query.
//
// If no match is found, the function returns the zero value and false.
func (m *MapTrie[K, Q, V]) Lookup(query Q) (K, V, bool) {
	depths := m.depths & (uint64(1)<<(query.BitLen()+1) - 1)

	for depths != 0 {
		depth := bits.Len64(depths) - 1
		depths &^= 1 << depth

		prefix, err := query.Prefix(depth)
		if err != nil {
			continue
		}
		if value, ok := m.levels[depth][prefix]; ok {
			return prefix, value, true
		}
	}

	var zeroPrefix K
	var zeroValue V
	return zeroPrefix, zeroValue, false
}

// Get returns the value stored for exactly this prefix.
func (m *MapTrie[K, Q, V]) Get(prefix K) (V, bool) {
	prefix = prefix.Masked()
	value, ok := m.levels[prefix.Bits()][prefix]
	return value, ok
}

// Insert stores the value for the prefix, replacing any previous value.
//
// Returns true if a value was replaced.
func (m *MapTrie[K, Q, V]) Insert(prefix K, value V) bool {
	prefix = prefix.Masked()
	depth := prefix.Bits()

	level := m.levels[depth]
	if level == nil {
		level = map[K]V{}
		m.levels[depth] = level
	}

	_, replaced := level[prefix]
	level[prefix] = value
	if !replaced {
		m.len++
	}
	m.depths |= 1 << depth

	return replaced
}

// Len returns the total number of prefixes stored in the MapTrie.
func (m *MapTrie[K, Q, V]) Len() int {
	return m.len
}

// All iterates over every stored prefix, longest prefixes first. The order
// within one prefix length is unspecified.
func (m *MapTrie[K, Q, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for depth := maxBits; depth >= 0; depth-- {
			for prefix, value := range m.levels[depth] {
				if !yield(prefix, value) {
					return
				}
			}
		}
	}
}
