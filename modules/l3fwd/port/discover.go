package port

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gobwas/glob"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

var errNoLinks = errors.New("no links match")

type discoverOptions struct {
	listLinks func() ([]netlink.Link, error)
	timeout   time.Duration
	log       *zap.SugaredLogger
}

// DiscoverOption configures Discover.
type DiscoverOption func(*discoverOptions)

// WithLinkLister replaces netlink.LinkList, used by tests.
func WithLinkLister(fn func() ([]netlink.Link, error)) DiscoverOption {
	return func(o *discoverOptions) {
		o.listLinks = fn
	}
}

// WithTimeout bounds the total time spent waiting for matching links.
func WithTimeout(timeout time.Duration) DiscoverOption {
	return func(o *discoverOptions) {
		o.timeout = timeout
	}
}

// WithLog sets the logger.
func WithLog(log *zap.SugaredLogger) DiscoverOption {
	return func(o *discoverOptions) {
		o.log = log
	}
}

// Discover builds a registry from host network interfaces whose names match
// any of the glob patterns.
//
// Matching links are sorted by name and numbered from zero, so "eth*" over
// eth0..eth3 yields ports 0..3. Interfaces may appear late during boot, so
// listing is retried with exponential backoff until something matches or
// the timeout expires.
func Discover(ctx context.Context, patterns []string, options ...DiscoverOption) (*StaticRegistry, error) {
	opts := discoverOptions{
		listLinks: netlink.LinkList,
		timeout:   10 * time.Second,
		log:       zap.NewNop().Sugar(),
	}
	for _, o := range options {
		o(&opts)
	}

	if opts.timeout <= 0 {
		opts.timeout = 10 * time.Second
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no interface patterns specified")
	}

	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid interface pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	operation := func() ([]netlink.LinkAttrs, error) {
		links, err := opts.listLinks()
		if err != nil {
			return nil, fmt.Errorf("failed to list links: %w", err)
		}

		matched := matchLinks(links, globs)
		if len(matched) == 0 {
			opts.log.Debugw("no links match yet", zap.Strings("patterns", patterns))
			return nil, fmt.Errorf("%w %s", errNoLinks, strings.Join(patterns, ", "))
		}
		return matched, nil
	}

	attrs, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     100 * time.Millisecond,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         2 * time.Second,
		}),
		backoff.WithMaxElapsedTime(opts.timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to discover ports: %w", err)
	}

	if len(attrs) >= int(nexthop.PortNone) {
		return nil, fmt.Errorf("too many ports discovered: %d", len(attrs))
	}

	ports := make([]Port, 0, len(attrs))
	for idx, attr := range attrs {
		p := Port{
			Index:     uint16(idx),
			Name:      attr.Name,
			LinkIndex: attr.Index,
		}
		if mac, ok := nexthop.MACFromHardwareAddr(attr.HardwareAddr); ok {
			p.MAC = mac
		}
		ports = append(ports, p)

		opts.log.Infow("discovered port",
			zap.Uint16("index", p.Index),
			zap.String("name", p.Name),
			zap.Stringer("mac", p.MAC),
			zap.Int("link_index", p.LinkIndex),
		)
	}

	return NewStaticRegistry(ports)
}

func matchLinks(links []netlink.Link, globs []glob.Glob) []netlink.LinkAttrs {
	matched := []netlink.LinkAttrs{}
	for _, link := range links {
		attrs := link.Attrs()
		for _, g := range globs {
			if g.Match(attrs.Name) {
				matched = append(matched, *attrs)
				break
			}
		}
	}

	slices.SortFunc(matched, func(a, b netlink.LinkAttrs) int {
		return strings.Compare(a.Name, b.Name)
	})

	return matched
}
