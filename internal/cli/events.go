package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/lobbyd/internal/api/response"
)

func newEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent lobby events, newest first",
		Long: `Show the most recent entries of the server's audit trail.

Events include:
  - connected / disconnected: a client connection opened or closed
  - authenticated: a device logged in
  - room_created / room_deleted: a room was opened or removed
  - room_joined / room_left: a player entered or left a room
  - host_changed: a room was handed to another member
  - room_evicted: a host stopped sending heartbeats and was removed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Events
			if err := admin.Get(cmd.Context(), fmt.Sprintf("/api/v1/events?limit=%d", limit), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to show")

	return cmd
}
