package main

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/controlplane"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup ADDR...",
	Short: "Resolve destination addresses into forwarding actions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(rawCmd *cobra.Command, args []string) error {
		app, err := newApp(rawCmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		return lookup(rawCmd.OutOrStdout(), app.fwd, args)
	},
}

func lookup(w io.Writer, fwd *controlplane.Forwarder, args []string) error {
	for _, arg := range args {
		addr, err := netip.ParseAddr(arg)
		if err != nil {
			return fmt.Errorf("failed to parse address: %w", err)
		}

		action, err := fwd.LookupAddr(addr)
		if err != nil {
			return fmt.Errorf("failed to lookup %s: %w", addr, err)
		}

		fmt.Fprintf(w, "%s -> %s\n", addr, action)
	}

	return nil
}
