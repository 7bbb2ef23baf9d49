package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/config"
)

// newConfigCmd groups the config inspection subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}

	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

// newConfigPathCmd prints the effective config file path.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := effectiveConfigPath()
			fmt.Println(path)

			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(os.Stderr, "(file does not exist; defaults apply)")
			}

			return nil
		},
	}
}

// newConfigShowCmd prints the fully-resolved configuration as TOML.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			// The client secret is not confidential for installed apps,
			// but there is no reason to echo it either.
			shown := *resolvedCfg
			if shown.Auth.ClientSecret != "" {
				shown.Auth.ClientSecret = "(set)"
			}

			return toml.NewEncoder(os.Stdout).Encode(shown)
		},
	}
}

// newConfigInitCmd writes a commented starter config file.
func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented starter config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := effectiveConfigPath()

			if err := config.WriteTemplate(path); err != nil {
				return err
			}

			statusf("Wrote %s", path)

			return nil
		},
	}
}

// effectiveConfigPath resolves the config file location from the flag,
// the environment, then the default.
func effectiveConfigPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if env := os.Getenv(config.EnvConfig); env != "" {
		return env
	}

	return config.DefaultConfigPath()
}
