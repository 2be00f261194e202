package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourusername/httpdl-go/internal/app"
	"github.com/yourusername/httpdl-go/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path := defaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server:           %s\n", config.Server.Address())
		fmt.Fprintf(out, "Download dir:     %s\n", config.Download.Dir)
		fmt.Fprintf(out, "Overwrite:        %s\n", config.Download.Overwrite)
		fmt.Fprintf(out, "Follow redirects: %s\n", config.Download.FollowRedirects)
		fmt.Fprintf(out, "User agent:       %s\n", config.HTTP.UserAgent)
		fmt.Fprintf(out, "Inactivity:       %s\n", config.HTTP.InactivityTimeout)
		if config.History.Enabled {
			fmt.Fprintf(out, "History:          %s\n", config.History.DatabasePath)
		} else {
			fmt.Fprintf(out, "History:          disabled\n")
		}
		fmt.Fprintf(out, "Logs:             %s\n", config.Logging.LogsDir)
		return nil
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("configs", "config.yaml")
	}
	return filepath.Join(home, "."+domain.AppName, "config.yaml")
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
