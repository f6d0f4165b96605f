package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanet-platform/l3fwd/common/go/logging"
	"github.com/yanet-platform/l3fwd/common/go/xcmd"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/controlplane"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/port"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:           "l3fwd",
	Short:         "IPv4 longest prefix match forwarder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(
		checkCmd,
		lookupCmd,
		routesCmd,
		replayCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, xcmd.Interrupted{}) {
			return
		}

		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

// app is the forwarder built from the configuration file.
type app struct {
	cfg   *controlplane.Config
	log   *zap.SugaredLogger
	ports *port.StaticRegistry
	fwd   *controlplane.Forwarder
}

func newApp(ctx context.Context, cmd Cmd) (*app, error) {
	cfg, err := controlplane.LoadConfig(cmd.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return buildApp(ctx, cfg, log)
}

func buildApp(ctx context.Context, cfg *controlplane.Config, log *zap.SugaredLogger) (*app, error) {
	src, err := cfg.RuleSource()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	ports, err := cfg.PortRegistry(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure ports: %w", err)
	}

	fwd := controlplane.NewForwarder(&cfg.FIB, controlplane.WithLog(log))
	if err := fwd.Init(src, ports); err != nil {
		return nil, fmt.Errorf("failed to initialize forwarder: %w", err)
	}

	return &app{
		cfg:   cfg,
		log:   log,
		ports: ports,
		fwd:   fwd,
	}, nil
}

func (m *app) Close() {
	_ = m.log.Sync()
}
