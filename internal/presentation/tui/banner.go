package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chat banner and a one-line hint to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   ___ __ _ _ ____ ____ _ ___", "#818cf8"},
		{"  / __/ _` | '_ \\ \\ / / _` (_-<", "#a78bfa"},
		{"  \\__\\__,_|_| |_\\_V /\\__,_/__/", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  canvas builder "+version).Faint())
	fmt.Fprintln(w, termenv.String("  Describe a change to your canvas. Type 'exit' to leave.").Faint())
	fmt.Fprintln(w)
}
