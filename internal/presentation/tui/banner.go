package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the sluice banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"      _       _          ", "#38bdf8"},
		{"  ___| |_   _(_) ___ ___ ", "#22d3ee"},
		{" / __| | | | | |/ __/ _ \\", "#2dd4bf"},
		{" \\__ \\ | |_| | | (_|  __/", "#34d399"},
		{" |___/_|\\__,_|_|\\___\\___|", "#4ade80"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StatusLine renders the outcome of a run, coloured by terminal status.
func StatusLine(name string, status domain.Status, node string) string {
	p := termenv.ColorProfile()
	color := "#facc15"
	switch status {
	case domain.StatusDone:
		color = "#4ade80"
	case domain.StatusError:
		color = "#f87171"
	}
	tag := termenv.String(fmt.Sprintf("[%s]", status)).Foreground(p.Color(color)).Bold()
	return fmt.Sprintf("%s %s at %s", tag, name, node)
}
