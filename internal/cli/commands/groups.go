package commands

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/groupcal/backend/internal/cli/output"
	"github.com/spf13/cobra"
)

func newGroupsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"g"},
		Short:   "Manage your groups",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return s.requireAuth()
		},
	}
	cmd.AddCommand(
		newGroupsMineCmd(s),
		newGroupsSearchCmd(s),
		newGroupsCreateCmd(s),
		newGroupsJoinCmd(s),
		newGroupsLeaveCmd(s),
		newGroupsMembersCmd(s),
	)
	return cmd
}

func newGroupsMineCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the groups you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.Response[[]api.Group]
			if err := s.client.Get(cmd.Context(), "/groups/mine", nil, &resp); err != nil {
				return fmt.Errorf("listing groups: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.GroupTable(w, resp.Data) })
		},
	}
}

func newGroupsSearchCmd(s *session) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find groups you have not joined",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if len(args) == 1 {
				params.Set("q", args[0])
			}
			params.Set("page", strconv.Itoa(page))
			params.Set("page_size", strconv.Itoa(pageSize))

			var resp api.Response[[]api.Group]
			if err := s.client.Get(cmd.Context(), "/groups/search", params, &resp); err != nil {
				return fmt.Errorf("searching groups: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) {
				output.GroupTable(w, resp.Data)
				if p := resp.Pagination; p != nil && p.TotalPages > 1 {
					fmt.Fprintf(w, "\nPage %d of %d (%d groups)\n", p.Page, p.TotalPages, p.Total)
				}
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Results per page")
	return cmd
}

func newGroupsCreateCmd(s *session) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"name": args[0]}
			if description != "" {
				body["description"] = description
			}

			var resp api.Response[api.Group]
			if err := s.client.Post(cmd.Context(), "/groups", body, &resp); err != nil {
				return fmt.Errorf("creating group: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) {
				fmt.Fprintf(w, "Created group %s (%s)\n", resp.Data.Name, resp.Data.ID)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Group description")
	return cmd
}

func newGroupsJoinCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "join <group-id>",
		Short: "Join a group as a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.Post(cmd.Context(), "/groups/"+url.PathEscape(args[0])+"/join", nil, nil); err != nil {
				return fmt.Errorf("joining group: %w", err)
			}
			fmt.Fprintf(s.out, "Joined group %s\n", args[0])
			return nil
		},
	}
}

func newGroupsLeaveCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "leave <group-id>",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.Post(cmd.Context(), "/groups/"+url.PathEscape(args[0])+"/leave", nil, nil); err != nil {
				return fmt.Errorf("leaving group: %w", err)
			}
			fmt.Fprintf(s.out, "Left group %s\n", args[0])
			return nil
		},
	}
}

func newGroupsMembersCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "members <group-id>",
		Short: "List the members of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.Response[[]api.Member]
			if err := s.client.Get(cmd.Context(), "/groups/"+url.PathEscape(args[0])+"/members", nil, &resp); err != nil {
				return fmt.Errorf("listing members: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.MemberTable(w, resp.Data) })
		},
	}
}
