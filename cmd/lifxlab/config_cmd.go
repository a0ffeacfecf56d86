package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/lifxlab/internal/config"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/ui"
)

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	// An existing file may be invalid, which is why it is being replaced
	configInitCmd.PersistentPreRunE = initLoggingOnly
	configPathCmd.PersistentPreRunE = initLoggingOnly

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configNameCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configPath, forceInit)
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Configuration written", ui.Param{Key: "Path", Value: path}))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		fmt.Println(path)
		return nil
	},
}

var configNameCmd = &cobra.Command{
	Use:   "name <identity> <nickname>",
	Short: "Give a device a nickname",
	Long: `Store a nickname for a device. Nicknames are shown next to the device
identity in discovery and command output. An empty nickname removes it.`,
	Example: `  lifxlab config name d073d5001234abcd kitchen
  lifxlab config name d073d5001234abcd ""`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTargetArg(args[0])
		if err != nil {
			return err
		}

		cfg.SetNickname(id, args[1])
		if err := cfg.Save(configPath); err != nil {
			return err
		}

		fmt.Println(ui.RenderSuccess("Nickname saved",
			ui.Param{Key: "Device", Value: id.String()},
			ui.Param{Key: "Nickname", Value: args[1]},
		))
		return nil
	},
}

// initLoggingOnly replaces the root pre-run for commands that must work
// without a loadable config file
func initLoggingOnly(cmd *cobra.Command, args []string) error {
	return logging.Initialize(logLevel)
}
