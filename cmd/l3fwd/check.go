package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and build the forwarding table",
	Args:  cobra.NoArgs,
	RunE: func(rawCmd *cobra.Command, _ []string) error {
		app, err := newApp(rawCmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Fprintf(rawCmd.OutOrStdout(), "ok: %d routes, %d ports\n", app.fwd.Len(), app.ports.Len())
		return nil
	},
}
