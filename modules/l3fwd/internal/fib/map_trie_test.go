package fib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapTrieLookup(t *testing.T) {
	trie := NewMapTrie[netip.Prefix, netip.Addr, string](16)

	_, _, ok := trie.Lookup(netip.MustParseAddr("10.0.0.1"))
	require.False(t, ok)

	require.False(t, trie.Insert(netip.MustParsePrefix("10.0.0.0/8"), "a"))
	require.False(t, trie.Insert(netip.MustParsePrefix("10.1.0.0/16"), "b"))
	require.False(t, trie.Insert(netip.MustParsePrefix("0.0.0.0/0"), "default"))
	require.True(t, trie.Insert(netip.MustParsePrefix("10.1.2.3/16"), "c"))
	require.Equal(t, 3, trie.Len())

	prefix, value, ok := trie.Lookup(netip.MustParseAddr("10.1.9.9"))
	require.True(t, ok)
	require.Equal(t, "10.1.0.0/16", prefix.String())
	require.Equal(t, "c", value)

	prefix, value, ok = trie.Lookup(netip.MustParseAddr("10.2.0.1"))
	require.True(t, ok)
	require.Equal(t, "10.0.0.0/8", prefix.String())
	require.Equal(t, "a", value)

	_, value, ok = trie.Lookup(netip.MustParseAddr("192.0.2.1"))
	require.True(t, ok)
	require.Equal(t, "default", value)

	value, ok = trie.Get(netip.MustParsePrefix("10.1.0.0/16"))
	require.True(t, ok)
	require.Equal(t, "c", value)

	_, ok = trie.Get(netip.MustParsePrefix("10.1.0.0/17"))
	require.False(t, ok)
}

func TestMapTrieAllLongestFirst(t *testing.T) {
	trie := NewMapTrie[netip.Prefix, netip.Addr, int](0)
	trie.Insert(netip.MustParsePrefix("10.0.0.0/8"), 8)
	trie.Insert(netip.MustParsePrefix("10.0.0.1/32"), 32)
	trie.Insert(netip.MustParsePrefix("10.0.0.0/24"), 24)

	var depths []int
	for prefix, value := range trie.All() {
		require.Equal(t, prefix.Bits(), value)
		depths = append(depths, value)
	}
	require.Equal(t, []int{32, 24, 8}, depths)

	// Early termination is honored.
	count := 0
	for range trie.All() {
		count++
		break
	}
	require.Equal(t, 1, count)
}
