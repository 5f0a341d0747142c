package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/spf13/cobra"
)

// calendarTokenEnv supplies the external calendar access token when --token
// is not given.
const calendarTokenEnv = "GROUPCAL_CALENDAR_TOKEN"

func newCalendarCmd(s *session) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Mirror events to your external calendar",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if err := s.requireAuth(); err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv(calendarTokenEnv)
			}
			if token == "" {
				return errors.New("a calendar access token is required: pass --token or set " + calendarTokenEnv)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&token, "token", "", "External calendar access token (or set "+calendarTokenEnv+")")

	sync := &cobra.Command{
		Use:   "sync <event-id>",
		Short: "Create or update the external copy of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.Response[api.SyncResult]
			body := map[string]string{"eventID": args[0], "accessToken": token}
			if err := s.client.Post(cmd.Context(), "/calendar/sync", body, &resp); err != nil {
				return fmt.Errorf("syncing event: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) {
				fmt.Fprintf(w, "Synced event %s as %s\n", resp.Data.Event.ID, resp.Data.Mirror.ExternalID)
				if resp.Data.Mirror.Link != "" {
					fmt.Fprintf(w, "Link: %s\n", resp.Data.Mirror.Link)
				}
			})
		},
	}

	var externalID string
	remove := &cobra.Command{
		Use:   "remove [event-id]",
		Short: "Delete the external copy of an event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"accessToken": token}
			switch {
			case len(args) == 1:
				body["eventID"] = args[0]
			case externalID != "":
				body["externalID"] = externalID
			default:
				return errors.New("an event id or --external-id is required")
			}
			if err := s.client.Post(cmd.Context(), "/calendar/remove", body, nil); err != nil {
				return fmt.Errorf("removing event: %w", err)
			}
			fmt.Fprintln(s.out, "Removed from calendar.")
			return nil
		},
	}
	remove.Flags().StringVar(&externalID, "external-id", "", "Remove by external calendar id")

	cmd.AddCommand(sync, remove)
	return cmd
}
