// Package tui renders simulator screens for the terminal.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer frames USSD screens the way a handset would show them. Styling
// is applied only when stdout is an interactive terminal.
type Renderer struct {
	output *termenv.Output
	styled bool
}

// NewRenderer creates a renderer for stdout.
func NewRenderer() *Renderer {
	return &Renderer{
		output: termenv.NewOutput(os.Stdout),
		styled: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Screen renders one dialog screen inside a handset-style frame.
func (r *Renderer) Screen(text string) string {
	lines := strings.Split(text, "\n")
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	border := "+" + strings.Repeat("-", width+2) + "+"
	b.WriteString(border + "\n")
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("| %-*s |\n", width, line))
	}
	b.WriteString(border)

	if !r.styled {
		return b.String()
	}
	return r.output.String(b.String()).Foreground(r.output.Color("10")).String()
}

// Notice renders a dim informational line (session status changes).
func (r *Renderer) Notice(text string) string {
	if !r.styled {
		return text
	}
	return r.output.String(text).Faint().String()
}
