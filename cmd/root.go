// Package cmd implements the pagesnap CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagesnap/internal/config"
)

const version = "0.3.0"

var configFlag string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pagesnap",
		Short:   "Full-page web captures: tiled screenshots stitched into one image",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default ~/.config/pagesnap/config.yaml)")

	cmd.AddCommand(captureCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(historyCmd())
	cmd.AddCommand(doctorCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}
