// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ManuGH/saytube/internal/apiclient"
	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/config"
	"github.com/spf13/cobra"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runCheck(ctx, cmd.OutOrStdout(), apiclient.New(apiclient.Config{BaseURL: cfg.ServerURL}), cfg.ServerURL)
		},
	}
}

type statusClient interface {
	Status(ctx context.Context) (apiclient.Status, error)
}

func runCheck(ctx context.Context, out io.Writer, client statusClient, serverURL string) error {
	st, err := client.Status(ctx)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConnectionFailed) {
			return fmt.Errorf("cannot reach backend at %s: %w", serverURL, err)
		}
		return err
	}
	gpu := "no"
	if st.GPUAvailable {
		gpu = "yes"
	}
	fmt.Fprintf(out, "Backend %s: %s (%s)\n", serverURL, st.Status, st.Service)
	fmt.Fprintf(out, "GPU available: %s\n", gpu)
	return nil
}
