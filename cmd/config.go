/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/moamenhredeen/oasc/internal/config"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "config.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Write(path, config.Default(), configForce); err != nil {
			exitWithError("%v", err)
		}
		fmt.Printf("%s wrote %s\n", green("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if path := cfg.FilePath(); path != "" {
			fmt.Printf("# %s\n", path)
		} else {
			fmt.Println("# no config file found, showing defaults")
		}
		data, err := toml.Marshal(cfg)
		if err != nil {
			exitWithError("encoding config: %v", err)
		}
		fmt.Print(string(data))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}
