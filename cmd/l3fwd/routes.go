package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yanet-platform/l3fwd/modules/l3fwd/controlplane"
	"github.com/yanet-platform/l3fwd/modules/l3fwd/nexthop"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the forwarding table",
	Args:  cobra.NoArgs,
	RunE: func(rawCmd *cobra.Command, _ []string) error {
		app, err := newApp(rawCmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		return printRoutes(rawCmd.OutOrStdout(), app.fwd)
	},
}

func printRoutes(w io.Writer, fwd *controlplane.Forwarder) error {
	entries, err := fwd.Routes()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tPORT\tNEXTHOP")
	for _, e := range entries {
		action := nexthop.DecodeAction(e.Nexthop)
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Prefix, action.Port, action.MAC)
	}

	return tw.Flush()
}
