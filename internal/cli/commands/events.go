package commands

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/groupcal/backend/internal/cli/output"
	"github.com/spf13/cobra"
)

func newEventsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"ev"},
		Short:   "List, create and answer events",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return s.requireAuth()
		},
	}
	cmd.AddCommand(
		newEventsListCmd(s),
		newEventsShowCmd(s),
		newEventsCreateCmd(s),
		newEventsDeleteCmd(s),
		newEventsRespondCmd(s),
		newEventsResponsesCmd(s),
		newEventsExportCmd(s),
	)
	return cmd
}

func rangeParams(from, to string) url.Values {
	params := url.Values{}
	if from != "" {
		params.Set("start_date", from)
	}
	if to != "" {
		params.Set("end_date", to)
	}
	return params
}

func newEventsListCmd(s *session) *cobra.Command {
	var from, to, group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/events"
			if group != "" {
				path = "/groups/" + url.PathEscape(group) + "/events"
			}

			var resp api.Response[[]api.Event]
			if err := s.client.Get(cmd.Context(), path, rangeParams(from, to), &resp); err != nil {
				return fmt.Errorf("listing events: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.EventTable(w, resp.Data) })
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&group, "group", "", "Only events of this group id")
	return cmd
}

func newEventsShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.Response[api.Event]
			if err := s.client.Get(cmd.Context(), "/events/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return fmt.Errorf("loading event: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.EventDetail(w, resp.Data) })
		},
	}
}

func newEventsCreateCmd(s *session) *cobra.Command {
	var draft api.EventDraft
	var group string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a solo event, or a group event with --group",
		Example: `  groupcal events create --description Dentist --date 2026-05-21 --start 08:00 --end 09:00
  groupcal events create --group 7f3c... --description Standup --date 2026-05-20 --start 10:00 --end 10:15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if group != "" {
				draft.Type = "group"
				draft.GroupID = &group
			} else {
				var me api.Response[api.User]
				if err := s.client.Get(cmd.Context(), "/auth/me", nil, &me); err != nil {
					return fmt.Errorf("fetching user: %w", err)
				}
				draft.Type = "solo"
				draft.UserID = &me.Data.ID
			}

			var resp api.Response[api.Event]
			if err := s.client.Post(cmd.Context(), "/events", draft, &resp); err != nil {
				return fmt.Errorf("creating event: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) {
				fmt.Fprintf(w, "Created event %s\n", resp.Data.ID)
			})
		},
	}
	cmd.Flags().StringVar(&draft.Description, "description", "", "What the event is")
	cmd.Flags().StringVar(&draft.Date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.StartTime, "start", "", "Start time (HH:MM)")
	cmd.Flags().StringVar(&draft.EndTime, "end", "", "End time (HH:MM)")
	cmd.Flags().StringVar(&draft.Location, "location", "", "Where it happens")
	cmd.Flags().StringVar(&group, "group", "", "Group id for a group event")
	for _, name := range []string{"description", "date", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newEventsDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.Delete(cmd.Context(), "/events/"+url.PathEscape(args[0]), nil); err != nil {
				return fmt.Errorf("deleting event: %w", err)
			}
			fmt.Fprintf(s.out, "Deleted event %s\n", args[0])
			return nil
		},
	}
}

func newEventsRespondCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:       "respond <event-id> <yes|no|maybe>",
		Short:     "Answer a group event",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"yes", "no", "maybe"},
		RunE: func(cmd *cobra.Command, args []string) error {
			response := strings.ToLower(args[1])
			var resp api.Response[api.Participation]
			if err := s.client.Post(cmd.Context(), "/events/"+url.PathEscape(args[0])+"/respond", map[string]string{"response": response}, &resp); err != nil {
				return fmt.Errorf("responding: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) {
				fmt.Fprintf(w, "Responded %s\n", resp.Data.Response)
			})
		},
	}
}

func newEventsResponsesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "responses <event-id>",
		Short: "Show who is coming to a group event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.Response[[]api.Participation]
			if err := s.client.Get(cmd.Context(), "/events/"+url.PathEscape(args[0])+"/participations", nil, &resp); err != nil {
				return fmt.Errorf("listing responses: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.ParticipationTable(w, resp.Data) })
		},
	}
}

func newEventsExportCmd(s *session) *cobra.Command {
	var from, to, file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your events as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := s.out
			if file != "" && file != "-" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("creating %s: %w", file, err)
				}
				defer f.Close()
				w = f
			}
			if err := s.client.Download(cmd.Context(), "/events/calendar.ics", rangeParams(from, to), w); err != nil {
				return fmt.Errorf("exporting events: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
