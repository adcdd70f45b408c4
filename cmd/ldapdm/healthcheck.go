package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const (
	healthCheckTimeout  = 3 * time.Second
	healthCheckEndpoint = "http://localhost:3000/health/live"
)

// healthCheckCmd probes the local liveness endpoint over plain HTTP rather
// than through a shell script, so it can serve as a container health-check
// command without extra tooling installed.
var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the running server's liveness endpoint",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthCheckEndpoint, nil)
		if err != nil {
			return err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("healthcheck: unexpected status %d", resp.StatusCode)
		}

		return nil
	},
}
