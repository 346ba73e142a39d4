package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/ui"
	"github.com/spf13/cobra"
)

// annotQuadrants marks commands whose help ends with the quadrant legend.
const annotQuadrants = "qd/quadrants"

// helpFunc renders Cobra's usage text with qd's styling. The root command
// and commands that take a quadrant also list the quadrant names.
func helpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		text := styleHelp(cmd.UsageString())
		if !cmd.HasParent() || cmd.Annotations[annotQuadrants] != "" {
			text += "\n" + quadrantLegend()
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
	}
}

// styleHelp colors group headers, command names, flag types and defaults.
func styleHelp(s string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, line := range lines {
		body := strings.TrimRight(line, "\n")
		lines[i] = styleHelpLine(body) + line[len(body):]
	}
	return strings.Join(lines, "")
}

func styleHelpLine(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	indent := line[:len(line)-len(trimmed)]
	switch {
	case indent == "" && isHelpHeader(line):
		return ui.RenderAccent(strings.TrimSpace(line))
	case strings.HasPrefix(trimmed, "-"):
		return indent + styleFlag(trimmed)
	case indent == "  ":
		name, rest, ok := strings.Cut(trimmed, "  ")
		if ok && name != "" {
			return indent + ui.RenderCommand(name) + "  " + rest
		}
	}
	return line
}

func isHelpHeader(line string) bool {
	line = strings.TrimRight(line, " ")
	return line != "" && line[0] >= 'A' && line[0] <= 'Z' && strings.HasSuffix(line, ":")
}

// styleFlag handles one "-d, --due string   text (default "x")" row.
func styleFlag(row string) string {
	spec, desc, ok := strings.Cut(row, "   ")
	if !ok {
		return row
	}
	if i := strings.LastIndexByte(spec, ' '); i >= 0 && !strings.HasPrefix(spec[i+1:], "-") {
		spec = spec[:i+1] + ui.RenderMuted(spec[i+1:])
	}
	if j := strings.LastIndex(desc, "(default "); j >= 0 && strings.HasSuffix(desc, ")") {
		desc = desc[:j] + ui.RenderMuted(desc[j:])
	}
	return spec + "   " + desc
}

// quadrantLegend lists each quadrant with the names parseQuadrant accepts.
func quadrantLegend() string {
	names := make(map[model.Quadrant][]string)
	for alias, q := range quadrantAliases {
		names[q] = append(names[q], alias)
	}
	var b strings.Builder
	b.WriteString(ui.RenderAccent("Quadrants:") + "\n")
	for _, q := range model.Quadrants {
		aliases := names[q]
		slices.Sort(aliases)
		label := fmt.Sprintf("%d  %-9s", int(q), q.Name())
		fmt.Fprintf(&b, "  %s  %s\n", ui.RenderQuadrant(q, label), ui.RenderMuted(strings.Join(aliases, ", ")))
	}
	return b.String()
}
