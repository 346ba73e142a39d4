package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout gets ANSI colors. NO_COLOR (any
// value) disables them, CLICOLOR_FORCE=1 forces them, CLICOLOR=0 disables
// them, and otherwise color follows whether stdout is a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ClearScreen homes the cursor and clears a terminal. It writes nothing
// when w is not a terminal, so redraws append instead.
func ClearScreen(w io.Writer) {
	if IsTerminal(w) {
		fmt.Fprint(w, "\x1b[H\x1b[2J")
	}
}
