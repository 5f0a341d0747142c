package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/groupcal/backend/internal/cli/api"
	"github.com/groupcal/backend/internal/cli/config"
	"github.com/groupcal/backend/internal/cli/output"
	"github.com/spf13/cobra"
)

// passwordEnv lets scripts log in without putting the password on the
// command line.
const passwordEnv = "GROUPCAL_PASSWORD"

func newLoginCmd(s *session) *cobra.Command {
	var email, password, idToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with your GroupCal server",
		Long: `Authenticate with email and password, or with a Google ID token.

  groupcal login --email you@example.com --password secret
  GROUPCAL_PASSWORD=secret groupcal login --email you@example.com
  groupcal login --google-id-token eyJhbGciOi...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}

			var resp api.Response[api.LoginResult]
			var err error
			switch {
			case idToken != "":
				err = s.client.Post(cmd.Context(), "/auth/google", map[string]string{"idToken": idToken}, &resp)
			case email != "" && password != "":
				err = s.client.Post(cmd.Context(), "/auth/login", map[string]string{"email": email, "password": password}, &resp)
			default:
				return errors.New("either --email with a password or --google-id-token is required")
			}
			if err != nil {
				var apiErr *api.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
					return fmt.Errorf("login rejected: %s", apiErr.Message)
				}
				return fmt.Errorf("logging in: %w", err)
			}

			s.cfg.Token = resp.Data.Token
			s.cfg.Email = resp.Data.User.Email
			s.cfg.ExpiresAt = resp.Data.ExpiresAt
			if err := config.Save(s.cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Fprintf(s.out, "Logged in as %s (%s)\n", resp.Data.User.Username, resp.Data.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or set "+passwordEnv+")")
	cmd.Flags().StringVar(&idToken, "google-id-token", "", "Google ID token to sign in with")
	return cmd
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Clear(); err != nil {
				return fmt.Errorf("clearing config: %w", err)
			}
			fmt.Fprintln(s.out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.requireAuth(); err != nil {
				return err
			}

			var resp api.Response[api.User]
			if err := s.client.Get(cmd.Context(), "/auth/me", nil, &resp); err != nil {
				return fmt.Errorf("fetching user: %w", err)
			}
			return s.render(resp.Data, func(w io.Writer) { output.UserInfo(w, resp.Data) })
		},
	}
}
