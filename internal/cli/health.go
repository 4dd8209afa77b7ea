package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/lobbyd/internal/api/response"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := admin.Get(cmd.Context(), "/api/v1/health", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sessions, rooms, connections and process stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Status

			if err := admin.Get(cmd.Context(), "/api/v1/status", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
