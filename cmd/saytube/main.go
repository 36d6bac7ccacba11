// SPDX-License-Identifier: MIT

// Command saytube is the voice client: it records a spoken request, sends it
// to saytubed and plays the video that comes back.
package main

import (
	"fmt"
	"os"

	"github.com/ManuGH/saytube/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "saytube",
		Short:         "Say what you want to watch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to client config file (YAML)")
	root.AddCommand(newRunCmd(&configPath), newCheckCmd(&configPath), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "saytube", version.String())
		},
	}
}
