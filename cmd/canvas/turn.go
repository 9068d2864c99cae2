package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/spf13/cobra"
)

var turnCmd = &cobra.Command{
	Use:   "turn <message>",
	Short: "Process one turn and print its events as NDJSON",
	Long: `Processes a single turn of a session and prints every stream event as a JSON
line. With --mermaid, prints a flowchart preview of the canvas with the turn's
operations applied instead.`,
	Args: cobra.MinimumNArgs(1),
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

		opts := cli.TurnOptions{
			Message: strings.Join(args, " "),
			Canvas:  canvas,
			Out:     cmd.OutOrStdout(),
		}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Mermaid, _ = cmd.Flags().GetBool("mermaid")

		if raw, _ := cmd.Flags().GetString("clarification"); raw != "" {
			var resp domain.ClarificationResponse
			if err := json.Unmarshal([]byte(raw), &resp); err != nil {
				return fmt.Errorf("error parsing --clarification JSON: %w", err)
			}
			opts.Clarification = &resp
		}

		_, err = cli.RunTurn(cmd.Context(), app, opts)
		return err
	},
}

func init() {
	rootCmd.AddCommand(turnCmd)
	turnCmd.Flags().StringP("session", "s", "", "Session ID (generated when empty)")
	turnCmd.Flags().String("canvas", "", "Path to a JSON canvas snapshot")
	turnCmd.Flags().String("clarification", "", "Clarification response as raw JSON")
	turnCmd.Flags().Bool("mermaid", false, "Print a Mermaid preview instead of events")
}

// readCanvas loads the --canvas snapshot, if any.
func readCanvas(cmd *cobra.Command) (*domain.CanvasContext, error) {
	path, _ := cmd.Flags().GetString("canvas")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas: %w", err)
	}
	return cli.DecodeCanvas(data)
}
