package controlplane

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yanet-platform/l3fwd/common/go/logging"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/internal/fib"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/port"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/rule"
)

// Config represents the l3fwd configuration file.
type Config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// FIB configures the forwarding table.
	FIB fib.Config `yaml:"fib"`
	// Rules configures where forwarding rules come from.
	Rules RulesConfig `yaml:"rules"`
	// Ports configures local egress ports.
	Ports PortsConfig `yaml:"ports"`
}

// RulesConfig lists rule sources. Enabled sources are chained in the order:
// builtin, inline, file.
type RulesConfig struct {
	// Path is a rules file with one "ip/depth,mac,port" rule per line.
	Path string `yaml:"path"`
	// MaxFileSize bounds the size of the rules file.
	MaxFileSize datasize.ByteSize `yaml:"max_file_size"`
	// Inline rules in the same text format.
	Inline []string `yaml:"inline"`
	// Builtin enables the compiled-in rule set.
	Builtin bool `yaml:"builtin"`
}

// PortConfig describes a statically configured port.
type PortConfig struct {
	// Index is the egress port index rules refer to.
	Index uint16 `yaml:"index"`
	// Name is the interface name.
	Name string `yaml:"name"`
	// MAC is the port's own address.
	MAC nexthop.MAC `yaml:"mac"`
}

// PortsConfig selects local ports either statically or by discovering host
// interfaces.
type PortsConfig struct {
	// Static ports.
	Static []PortConfig `yaml:"static"`
	// Discover lists interface name glob patterns. Matching interfaces
	// are numbered in name order.
	Discover []string `yaml:"discover"`
	// DiscoverTimeout bounds waiting for discovered interfaces.
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		FIB:     *fib.DefaultConfig(),
		Rules: RulesConfig{
			MaxFileSize: 64 * datasize.MB,
		},
		Ports: PortsConfig{
			DiscoverTimeout: 10 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file at the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration over the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks settings that cannot be checked while decoding.
func (m *Config) Validate() error {
	if m.FIB.MaxRoutes == 0 {
		return fmt.Errorf("fib.max_routes must be positive")
	}
	if len(m.Ports.Static) > 0 && len(m.Ports.Discover) > 0 {
		return fmt.Errorf("ports.static and ports.discover are mutually exclusive")
	}
	if len(m.Ports.Static) == 0 && len(m.Ports.Discover) == 0 {
		return fmt.Errorf("no ports configured")
	}
	return nil
}

// RuleSource returns the configured rule sources chained together.
func (m *Config) RuleSource() (rule.Source, error) {
	sources := []rule.Source{}

	if m.Rules.Builtin {
		sources = append(sources, rule.Builtin())
	}
	if len(m.Rules.Inline) > 0 {
		sources = append(sources, rule.NewTextSource("inline", m.Rules.Inline))
	}
	if m.Rules.Path != "" {
		src, err := rule.LoadFile(m.Rules.Path, m.Rules.MaxFileSize)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return rule.Concat(sources...), nil
}

// PortRegistry builds the configured port registry, discovering host
// interfaces if requested.
func (m *Config) PortRegistry(ctx context.Context, log *zap.SugaredLogger) (*port.StaticRegistry, error) {
	if len(m.Ports.Discover) > 0 {
		return port.Discover(ctx, m.Ports.Discover,
			port.WithTimeout(m.Ports.DiscoverTimeout),
			port.WithLog(log),
		)
	}

	ports := make([]port.Port, 0, len(m.Ports.Static))
	for _, p := range m.Ports.Static {
		ports = append(ports, port.Port{
			Index: p.Index,
			Name:  p.Name,
			MAC:   p.MAC,
		})
	}

	return port.NewStaticRegistry(ports)
}
