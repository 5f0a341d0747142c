package commands

import (
	"fmt"
	"io"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/spf13/cobra"
)

// Version is the CLI version, set at link time with
// -X github.com/groupcal/backend/internal/cli/commands.Version=1.2.3.
var Version = "dev"

type versionOutput struct {
	CLIVersion  string          `json:"cliVersion"`
	Server      *api.ServerInfo `json:"server,omitempty"`
	ServerError string          `json:"serverError,omitempty"`
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func newVersionCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the CLI version and what the server supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := versionOutput{CLIVersion: Version}

			var resp api.Response[api.ServerInfo]
			if err := s.client.Get(cmd.Context(), "/version", nil, &resp); err != nil {
				out.ServerError = err.Error()
			} else {
				out.Server = &resp.Data
			}

			return s.render(out, func(w io.Writer) {
				fmt.Fprintf(w, "CLI:    %s\n", out.CLIVersion)
				if out.Server == nil {
					fmt.Fprintf(w, "Server: unreachable (%s)\n", out.ServerError)
					return
				}
				info := out.Server
				build := info.Version
				if info.Commit != "" {
					build += " (" + info.Commit + ")"
				}
				fmt.Fprintf(w, "Server: %s, API %s\n", build, info.APIVersion)
				fmt.Fprintf(w, "Timezone: %s\n", info.Timezone)
				fmt.Fprintf(w, "Calendar: %s\n", info.CalendarProvider)
				fmt.Fprintf(w, "Google sign-in: %s\n", onOff(info.GoogleSignIn))
				fmt.Fprintf(w, "Email notifications: %s\n", onOff(info.EmailDelivery))
			})
		},
	}
}
