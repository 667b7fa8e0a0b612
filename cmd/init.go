// File: cmd/init.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newInitCmd creates the `init` command, which bootstraps the graph and its
// schema. Running it against an initialized graph is a no-op.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the graph and define its schema if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openStore(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph %q is ready.\n", appConfig.Graph().GraphID)
			return nil
		},
	}
}
