// Package commands implements the groupcal command line client.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/groupcal/backend/internal/cli/config"
	"github.com/groupcal/backend/internal/cli/output"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// session is the state shared by every subcommand of one invocation.
type session struct {
	jsonOut   bool
	serverURL string
	verbose   bool

	cfg    *config.Config
	client *api.Client
	out    io.Writer
}

// NewRootCmd builds the command tree. Output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	s := &session{out: out}

	root := &cobra.Command{
		Use:   "groupcal",
		Short: "GroupCal CLI: manage group events from the terminal",
		Long: `GroupCal CLI lets you list, create and answer group events,
manage your groups and export your calendar.

Get started:
  groupcal login --email you@example.com
  groupcal events list --from 2026-05-01
  groupcal groups mine`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(s.verbose)

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if s.serverURL != "" {
				server, err := config.NormalizeServerURL(s.serverURL)
				if err != nil {
					return err
				}
				cfg.ServerURL = server
			}
			s.cfg = cfg
			s.client = api.NewClient(cfg.ServerURL, cfg.Token)
			slog.Debug("config loaded", "server", cfg.ServerURL, "authenticated", cfg.HasToken())
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().BoolVar(&s.jsonOut, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&s.serverURL, "server", "", "Override server URL (default: $"+config.ServerEnv+", the saved config or "+config.DefaultURL+")")
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "Log API requests to stderr")

	root.AddCommand(
		newLoginCmd(s),
		newLogoutCmd(s),
		newWhoamiCmd(s),
		newEventsCmd(s),
		newGroupsCmd(s),
		newCalendarCmd(s),
		newVersionCmd(s),
	)
	return root
}

// Execute runs the CLI against stdout and reports errors on stderr.
func Execute() error {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func (s *session) requireAuth() error {
	switch {
	case s.cfg == nil || s.cfg.Token == "":
		return errors.New(`not authenticated: run "groupcal login" first`)
	case s.cfg.Expired():
		return errors.New(`session expired: run "groupcal login" again`)
	}
	return nil
}

// render prints v as JSON when --json is set and calls table otherwise.
func (s *session) render(v interface{}, table func(io.Writer)) error {
	if s.jsonOut {
		return output.JSON(s.out, v)
	}
	table(s.out)
	return nil
}
