// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/platform/httpx"
	"github.com/spf13/cobra"
)

func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running daemon (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runHealthcheck(cmd.Context(), baseURL, mode, timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "ready or live")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8000", "daemon base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}

var probePaths = map[string]string{
	"ready": "/readyz",
	"live":  "/healthz",
}

// runHealthcheck exits non-nil unless the probe for mode answers 200.
func runHealthcheck(ctx context.Context, baseURL, mode string, timeout time.Duration) error {
	path, ok := probePaths[mode]
	if !ok {
		return fmt.Errorf("unknown mode %q (want ready or live)", mode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpx.NewClient(timeout).Do(req)
	if err != nil {
		return fmt.Errorf("%s probe: %w", mode, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s probe: daemon answered %s", mode, resp.Status)
	}
	return nil
}
