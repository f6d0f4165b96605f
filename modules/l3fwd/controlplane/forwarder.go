// Package controlplane owns the forwarding table of the process: it builds
// the table from a rule source and publishes it to the packet loop.
package controlplane

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yanet-platform/l3fwd/common/go/xnetip"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/internal/fib"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/port"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/rule"
)

var (
	// ErrNotInitialized is returned by lookups on a forwarder that has no
	// table, either because Init was not called or because it failed.
	ErrNotInitialized = errors.New("forwarder is not initialized")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("forwarder is already initialized")
)

// State is the lifecycle state of a Forwarder.
type State uint32

const (
	// StateUninitialized is the state before Init.
	StateUninitialized State = iota
	// StateReady means the table is built and lookups are served.
	StateReady
	// StateFailed means Init failed. The forwarder never becomes ready.
	StateFailed
)

func (m State) String() string {
	switch m {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint32(m))
	}
}

type options struct {
	Log *zap.SugaredLogger
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
	}
}

// ForwarderOption is a function that configures the forwarder.
type ForwarderOption func(*options)

// WithLog sets the logger for the forwarder.
func WithLog(log *zap.SugaredLogger) ForwarderOption {
	return func(o *options) {
		o.Log = log
	}
}

// Forwarder resolves destination addresses into forwarding actions.
//
// Lookups are lock-free and may run on any number of goroutines once Init
// has returned successfully.
type Forwarder struct {
	cfg   fib.Config
	mu    sync.Mutex
	state atomic.Uint32
	table atomic.Pointer[fib.Table]
	log   *zap.SugaredLogger
}

// NewForwarder creates an uninitialized forwarder.
//
// A nil config means fib.DefaultConfig.
func NewForwarder(cfg *fib.Config, options ...ForwarderOption) *Forwarder {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	if cfg == nil {
		cfg = fib.DefaultConfig()
	}

	return &Forwarder{
		cfg: *cfg,
		log: opts.Log,
	}
}

// Init builds the forwarding table from every rule of src, binding egress
// ports through ports.
//
// Any error aborts the whole initialization: no table is published and the
// forwarder moves to StateFailed. Init may be called once.
func (m *Forwarder) Init(src rule.Source, ports port.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state := m.State(); state != StateUninitialized {
		return fmt.Errorf("%w: state is %s", ErrAlreadyInitialized, state)
	}

	startedAt := time.Now()
	table, err := Build(&m.cfg, src, ports, m.log)
	if err != nil {
		m.state.Store(uint32(StateFailed))
		m.log.Errorw("failed to initialize FIB", zap.Error(err))
		return err
	}

	// The table is complete before it becomes visible to readers.
	m.table.Store(table)
	m.state.Store(uint32(StateReady))

	m.log.Infow("initialized FIB",
		zap.Int("routes", table.Len()),
		zap.Int("capacity", table.Capacity()),
		zap.String("backend", string(table.Backend())),
		zap.Duration("took", time.Since(startedAt)),
	)

	return nil
}

// Build creates a fresh table holding every rule of src.
//
// The table is returned only if every rule was inserted.
func Build(cfg *fib.Config, src rule.Source, ports port.Registry, log *zap.SugaredLogger) (*fib.Table, error) {
	table, err := fib.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create FIB: %w", err)
	}

	for r, err := range src.Rules() {
		if err != nil {
			return nil, fmt.Errorf("failed to parse rule: %w", err)
		}

		route, err := r.Resolve(ports)
		if err != nil {
			return nil, fmt.Errorf("%s: rule %s: %w", r.Origin, r, err)
		}

		if err := table.Insert(route.Prefix, route.Depth, route.Nexthop()); err != nil {
			return nil, fmt.Errorf("%s: failed to insert route %s: %w", r.Origin, route, err)
		}

		log.Debugw("added route",
			zap.Stringer("route", route),
			zap.String("origin", r.Origin),
		)
	}

	return table, nil
}

// State returns the current lifecycle state.
func (m *Forwarder) State() State {
	return State(m.state.Load())
}

// Lookup returns the forwarding action for a destination address in host
// byte order.
func (m *Forwarder) Lookup(addr uint32) (nexthop.Action, error) {
	table := m.table.Load()
	if table == nil {
		return nexthop.Action{}, ErrNotInitialized
	}

	return nexthop.DecodeAction(table.Lookup(addr)), nil
}

// LookupBulk resolves a batch of addresses, writing actions into out in
// input order. The capacity of out is reused.
func (m *Forwarder) LookupBulk(addrs []uint32, out []nexthop.Action) ([]nexthop.Action, error) {
	table := m.table.Load()
	if table == nil {
		return out[:0], ErrNotInitialized
	}

	out = out[:0]
	for _, addr := range addrs {
		out = append(out, nexthop.DecodeAction(table.Lookup(addr)))
	}

	return out, nil
}

// LookupAddr is Lookup for netip addresses. IPv6 addresses are rejected.
func (m *Forwarder) LookupAddr(addr netip.Addr) (nexthop.Action, error) {
	v, ok := xnetip.AddrToUint32(addr)
	if !ok {
		return nexthop.Action{}, fmt.Errorf("not an IPv4 address: %s", addr)
	}
	return m.Lookup(v)
}

// Routes returns a snapshot of the installed routes.
func (m *Forwarder) Routes() ([]fib.Entry, error) {
	table := m.table.Load()
	if table == nil {
		return nil, ErrNotInitialized
	}
	return table.Entries(), nil
}

// Len returns the number of installed routes, zero until ready.
func (m *Forwarder) Len() int {
	table := m.table.Load()
	if table == nil {
		return 0
	}
	return table.Len()
}
