package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the ASCII art banner shown when the server starts.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []termenv.Style{
		termenv.String("  _ __ ___   ___  ___  __ _ ").Foreground(p.Color("#f59e0b")),
		termenv.String(" | '_ ` _ \\ / _ \\/ __|/ _` |").Foreground(p.Color("#f97316")),
		termenv.String(" | | | | | |  __/\\__ \\ (_| |").Foreground(p.Color("#ef4444")),
		termenv.String(" |_| |_| |_|\\___||___/\\__,_|").Foreground(p.Color("#e11d48")),
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
