package main

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/drive"
)

// newLoginCmd authorizes the CLI against Google Drive via the browser
// flow and saves the resulting token.
func newLoginCmd() *cobra.Command {
	var (
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize with Google Drive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Outside the pre-run config phase; resolve here so login
			// works with a partial config plus flags.
			if err := loadConfig(cmd); err != nil {
				return err
			}

			logger := buildLogger()

			creds := drive.Credentials{
				ClientID:     resolvedCfg.Auth.ClientID,
				ClientSecret: resolvedCfg.Auth.ClientSecret,
			}
			if clientID != "" {
				creds.ClientID = clientID
			}

			if clientSecret != "" {
				creds.ClientSecret = clientSecret
			}

			statusf("Opening browser for authorization...")

			_, err := drive.LoginWithBrowser(cmd.Context(), creds, resolvedCfg.Auth.TokenPath, openBrowser, logger)
			if err != nil {
				return err
			}

			statusf("Login successful. Token saved to %s", resolvedCfg.Auth.TokenPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID (overrides config)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret (overrides config)")

	return cmd
}

// newLogoutCmd removes the saved token.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved Google Drive token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			logger := buildLogger()

			if err := drive.Logout(resolvedCfg.Auth.TokenPath, logger); err != nil {
				return fmt.Errorf("removing token: %w", err)
			}

			statusf("Logged out.")

			return nil
		},
	}
}

// openBrowser launches the default browser for the current platform.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return errors.New("unsupported platform for browser launch")
	}
}

// loginHint wraps ErrNotLoggedIn with a friendlier message for command
// output.
func loginHint(err error) error {
	if errors.Is(err, drive.ErrNotLoggedIn) {
		return errors.New("not logged in, run 'driveup login' first")
	}

	return err
}
