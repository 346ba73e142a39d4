package ui

import (
	"fmt"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 209 // orange
)

// Quadrant colors: red, blue, yellow and gray for Do First through Don't Do.
var quadrantColors = map[model.Quadrant]int{
	model.QuadrantDoFirst:  203,
	model.QuadrantSchedule: 74,
	model.QuadrantDelegate: 179,
	model.QuadrantDontDo:   245,
}

var noColor bool

func render(color int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color, used for overdue tasks.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderQuadrant returns s in the color of quadrant q.
func RenderQuadrant(q model.Quadrant, s string) string {
	c, ok := quadrantColors[q]
	if !ok {
		return s
	}
	return render(c, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
