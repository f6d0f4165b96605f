package fib

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yanet-platform/l3fwd/common/go/xnetip"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

var backends = []Backend{BackendMapTrie, BackendBART}

func ip(s string) uint32 {
	v, ok := xnetip.AddrToUint32(netip.MustParseAddr(s))
	if !ok {
		panic(s)
	}
	return v
}

func newTable(t *testing.T, backend Backend) *Table {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Backend = backend
	table, err := New(cfg)
	require.NoError(t, err)
	return table
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend Backend)) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			fn(t, backend)
		})
	}
}

func TestDefaultFallback(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		for _, addr := range []uint32{0, 1, ip("198.18.0.5"), ip("255.255.255.255")} {
			nh := table.Lookup(addr)
			require.Equal(t, nexthop.DefaultNexthop, nh)

			port, mac := nexthop.Decode(nh)
			require.Equal(t, uint16(0xffff), port)
			require.Equal(t, nexthop.BroadcastMAC, mac)
		}
		require.Equal(t, 0, table.Len())
		require.Equal(t, nexthop.DefaultNexthop, table.Default())
	})
}

func TestCustomDefault(t *testing.T) {
	table, err := New(&Config{MaxRoutes: 4, DefaultNexthop: 42})
	require.NoError(t, err)
	require.Equal(t, BackendMapTrie, table.Backend())
	require.Equal(t, uint64(42), table.Lookup(ip("10.0.0.1")))
}

func TestExactMatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		p := ip("203.0.113.7")
		require.NoError(t, table.Insert(p, 32, 7))
		require.Equal(t, uint64(7), table.Lookup(p))
		require.Equal(t, nexthop.DefaultNexthop, table.Lookup(p+1))
		require.Equal(t, nexthop.DefaultNexthop, table.Lookup(p-1))
	})
}

func TestLongestPrefixWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		require.NoError(t, table.Insert(ip("198.18.0.0"), 16, 1))
		require.NoError(t, table.Insert(ip("198.18.0.0"), 24, 2))

		require.Equal(t, uint64(2), table.Lookup(ip("198.18.0.5")))
		require.Equal(t, uint64(1), table.Lookup(ip("198.18.1.5")))
		require.Equal(t, nexthop.DefaultNexthop, table.Lookup(ip("198.19.0.5")))
	})
}

func TestInsertionOrderIsIrrelevant(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		require.NoError(t, table.Insert(ip("198.18.0.0"), 24, 2))
		require.NoError(t, table.Insert(ip("198.18.0.0"), 16, 1))
		require.NoError(t, table.Insert(0, 0, 9))

		require.Equal(t, uint64(2), table.Lookup(ip("198.18.0.5")))
		require.Equal(t, uint64(1), table.Lookup(ip("198.18.1.5")))
		require.Equal(t, uint64(9), table.Lookup(ip("8.8.8.8")))
	})
}

func TestOverwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		require.NoError(t, table.Insert(ip("10.0.0.0"), 8, 1))
		require.NoError(t, table.Insert(ip("10.0.0.0"), 8, 2))
		// Host bits beyond depth address the same route.
		require.NoError(t, table.Insert(ip("10.1.2.3"), 8, 3))

		require.Equal(t, 1, table.Len())
		require.Equal(t, uint64(3), table.Lookup(ip("10.200.0.1")))
	})
}

func TestTableFull(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table, err := New(&Config{MaxRoutes: 2, DefaultNexthop: 0, Backend: backend})
		require.NoError(t, err)

		require.NoError(t, table.Insert(ip("10.0.0.0"), 8, 1))
		require.NoError(t, table.Insert(ip("11.0.0.0"), 8, 2))

		err = table.Insert(ip("12.0.0.0"), 8, 3)
		require.ErrorIs(t, err, ErrTableFull)
		require.Equal(t, 2, table.Len())
		require.Equal(t, uint64(0), table.Lookup(ip("12.0.0.1")))

		// Replacing an existing route never needs extra room.
		require.NoError(t, table.Insert(ip("11.0.0.0"), 8, 5))
		require.Equal(t, uint64(5), table.Lookup(ip("11.0.0.1")))
	})
}

func TestInvalidDepth(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)

		err := table.Insert(ip("10.0.0.0"), 33, 1)
		require.ErrorIs(t, err, ErrInvalidDepth)
		require.Equal(t, 0, table.Len())
	})
}

func TestUnknownBackend(t *testing.T) {
	_, err := New(&Config{MaxRoutes: 1, Backend: "dir-24-8"})
	require.Error(t, err)

	var backend Backend
	require.Error(t, backend.UnmarshalText([]byte("dir-24-8")))
	require.NoError(t, backend.UnmarshalText([]byte("bart")))
	require.Equal(t, BackendBART, backend)
}

func TestLookupBulk(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)
		require.NoError(t, table.Insert(ip("198.18.0.0"), 16, 1))
		require.NoError(t, table.Insert(ip("198.18.0.0"), 24, 2))

		require.Empty(t, table.LookupBulk(nil, nil))
		require.Empty(t, table.LookupBulk([]uint32{}, make([]uint64, 4)))

		addrs := []uint32{
			ip("198.18.1.5"),
			ip("198.18.0.5"),
			ip("1.1.1.1"),
			ip("198.18.0.255"),
		}
		expected := make([]uint64, 0, len(addrs))
		for _, addr := range addrs {
			expected = append(expected, table.Lookup(addr))
		}

		out := table.LookupBulk(addrs, nil)
		require.Equal(t, expected, out)
		require.Equal(t, []uint64{1, 2, nexthop.DefaultNexthop, 2}, out)

		// Stale content of a reused buffer must not leak through.
		buf := []uint64{99, 99, 99, 99, 99, 99}
		out = table.LookupBulk(addrs[:2], buf)
		require.Equal(t, []uint64{1, 2}, out)
	})
}

func TestEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		table := newTable(t, backend)
		require.NoError(t, table.Insert(ip("198.18.0.0"), 24, 2))
		require.NoError(t, table.Insert(ip("10.0.0.0"), 8, 3))
		require.NoError(t, table.Insert(ip("198.18.0.0"), 16, 1))

		expected := []Entry{
			{Prefix: netip.MustParsePrefix("10.0.0.0/8"), Nexthop: 3},
			{Prefix: netip.MustParsePrefix("198.18.0.0/16"), Nexthop: 1},
			{Prefix: netip.MustParsePrefix("198.18.0.0/24"), Nexthop: 2},
		}
		diff := cmp.Diff(expected, table.Entries(), cmp.Comparer(func(a, b netip.Prefix) bool {
			return a == b
		}))
		require.Empty(t, diff)
	})
}

type oracleRoute struct {
	prefix netip.Prefix
	nh     uint64
}

// oracleLookup is a linear scan over all routes.
func oracleLookup(routes []oracleRoute, addr netip.Addr, def uint64) uint64 {
	best := -1
	nh := def
	for _, r := range routes {
		if r.prefix.Contains(addr) && r.prefix.Bits() > best {
			best = r.prefix.Bits()
			nh = r.nh
		}
	}
	return nh
}

func TestBackendsAgreeWithOracle(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	tables := map[Backend]*Table{}
	for _, backend := range backends {
		tables[backend] = newTable(t, backend)
	}

	routes := map[netip.Prefix]uint64{}
	for range 2000 {
		depth := rng.IntN(33)
		addr := rng.Uint32()
		nh := rng.Uint64()

		prefix, err := xnetip.PrefixFromUint32(addr, depth)
		require.NoError(t, err)
		routes[prefix] = nh

		for _, table := range tables {
			require.NoError(t, table.Insert(addr, uint8(depth), nh))
		}
	}

	oracle := make([]oracleRoute, 0, len(routes))
	for prefix, nh := range routes {
		oracle = append(oracle, oracleRoute{prefix: prefix, nh: nh})
	}

	probe := func(addr uint32) {
		expected := oracleLookup(oracle, xnetip.AddrFromUint32(addr), nexthop.DefaultNexthop)
		for backend, table := range tables {
			require.Equal(t, expected, table.Lookup(addr), "backend %s addr %s", backend, xnetip.AddrFromUint32(addr))
		}
	}

	for _, r := range oracle {
		first, _ := xnetip.AddrToUint32(r.prefix.Addr())
		last, _ := xnetip.AddrToUint32(xnetip.LastAddr(r.prefix))
		probe(first)
		probe(last)
	}
	for range 2000 {
		probe(rng.Uint32())
	}

	for _, table := range tables {
		require.Equal(t, len(routes), table.Len())
	}
}

func BenchmarkLookup(b *testing.B) {
	for _, backend := range backends {
		b.Run(string(backend), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Backend = backend
			table, err := New(cfg)
			require.NoError(b, err)

			rng := rand.New(rand.NewPCG(1, 1))
			for range 10000 {
				require.NoError(b, table.Insert(rng.Uint32(), uint8(8+rng.IntN(25)), rng.Uint64()))
			}

			addrs := make([]uint32, 256)
			for idx := range addrs {
				addrs[idx] = rng.Uint32()
			}
			out := make([]uint64, 0, len(addrs))

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				out = table.LookupBulk(addrs, out)
			}
		})
	}
}
