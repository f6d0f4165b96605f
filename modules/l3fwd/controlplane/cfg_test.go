package controlplane

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/internal/fib"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

func TestParseConfig(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "fib.rules")
	require.NoError(t, os.WriteFile(rulesPath, []byte("198.18.0.0/24,02:00:01:02:03:04,1\n"), 0o644))

	cfg, err := ParseConfig([]byte(`
logging:
  level: debug
fib:
  max_routes: 1024
  backend: bart
rules:
  path: ` + rulesPath + `
  max_file_size: 1MB
  inline:
    - "10.0.0.0/8,02:00:00:00:00:aa,0"
ports:
  static:
    - index: 0
      name: eth0
      mac: "02:00:00:00:00:10"
    - index: 1
      name: eth1
      mac: "02:00:00:00:00:11"
`))
	require.NoError(t, err)

	require.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Encoding)
	require.Equal(t, uint32(1024), cfg.FIB.MaxRoutes)
	require.Equal(t, fib.BackendBART, cfg.FIB.Backend)
	require.Equal(t, nexthop.DefaultNexthop, cfg.FIB.DefaultNexthop)
	require.Equal(t, datasize.MB, cfg.Rules.MaxFileSize)
	require.Equal(t, nexthop.MAC{0x02, 0, 0, 0, 0, 0x11}, cfg.Ports.Static[1].MAC)

	log := zaptest.NewLogger(t).Sugar()
	reg, err := cfg.PortRegistry(context.Background(), log)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	src, err := cfg.RuleSource()
	require.NoError(t, err)

	fwd := NewForwarder(&cfg.FIB, WithLog(log))
	require.NoError(t, fwd.Init(src, reg))
	require.Equal(t, 2, fwd.Len())
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte(`fib: {backend: dir-24-8}`))
	require.Error(t, err)

	_, err = ParseConfig([]byte(`ports: {static: [{index: 0, mac: "zz"}]}`))
	require.Error(t, err)

	_, err = ParseConfig([]byte(`rules: {builtin: true}`))
	require.ErrorContains(t, err, "no ports configured")

	_, err = ParseConfig([]byte(`
fib: {max_routes: 0}
ports: {static: [{index: 0}]}
`))
	require.ErrorContains(t, err, "max_routes")

	_, err = ParseConfig([]byte(`
ports:
  static: [{index: 0}]
  discover: ["eth*"]
`))
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l3fwd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fib:
  default_nexthop: 0x0001020304050607
rules:
  builtin: true
ports:
  discover: ["enp*"]
  discover_timeout: 2s
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0001020304050607), cfg.FIB.DefaultNexthop)
	require.Equal(t, fib.BackendMapTrie, cfg.FIB.Backend)
	require.Equal(t, 2*time.Second, cfg.Ports.DiscoverTimeout)
	require.True(t, cfg.Rules.Builtin)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRuleSourceMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.rules")

	_, err := cfg.RuleSource()
	require.Error(t, err)
}
