package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up and how long it takes to answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()

			var result HealthResult
			if err := client.Get(apiPath("health"), &result); err != nil {
				return err
			}
			result.Server = strings.TrimSuffix(cfg.ServerURL, "/")
			result.Latency = time.Since(started).Round(time.Millisecond).String()

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
