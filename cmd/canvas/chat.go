package main

import (
	"os"

	"github.com/aretw0/canvasbuilder"
	"github.com/aretw0/canvasbuilder/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Edit the canvas through an interactive conversation",
	Long: `Starts an interactive session. Each line is a turn; clarification questions
are answered on the next line (a number, an option label, yes/no or cancel).
Ctrl+C interrupts the current turn, 'exit' leaves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.ChatOptions{
			Version: canvasbuilder.Version,
			In:      cmd.InOrStdin(),
			Out:     cmd.OutOrStdout(),
		}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		fd := int(os.Stdout.Fd())
		if !opts.JSON && term.IsTerminal(fd) && term.IsTerminal(int(os.Stdin.Fd())) {
			opts.Styled = true
			if width, _, err := term.GetSize(fd); err == nil {
				opts.Width = width
			}
		}

		return cli.RunChat(cmd.Context(), app, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "cli", "Session ID to create or resume")
	chatCmd.Flags().Bool("fresh", false, "Delete the session before starting")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
}
