package main

import (
	"fmt"
	"os"

	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/aretw0/canvasbuilder/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "canvas",
	Short: "Canvas builder turns chat messages into workflow canvas edits",
	Long: `Canvas builder classifies natural-language requests, asks for clarification
when unsure and emits canvas operations for a visual workflow editor.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "canvas.yaml", "Path to the YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// loadApp reads the config named by the --config flag and wires the app.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cli.NewApp(cmd.Context(), cfg)
}
