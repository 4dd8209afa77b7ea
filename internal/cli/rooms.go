package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/lobbyd/internal/api/response"
)

func newRoomsCmd() *cobra.Command {
	var includePrivate bool

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List open rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/rooms"
			if includePrivate {
				path += "?includePrivate=true"
			}

			var result response.Rooms
			if err := admin.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&includePrivate, "private", false, "Include private rooms")

	return cmd
}

func newMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <roomId>",
		Short: "List the members of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Members
			if err := admin.Get(cmd.Context(), "/api/v1/rooms/"+url.PathEscape(args[0])+"/members", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
