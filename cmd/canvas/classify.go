package main

import (
	"encoding/json"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify one message and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		canvas, err := readCanvas(cmd)
		if err != nil {
			return err
		}

		out, err := cli.Classify(cmd.Context(), app, strings.Join(args, " "), canvas)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().String("canvas", "", "Path to a JSON canvas snapshot")
}
