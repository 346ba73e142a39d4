package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// quadrantAliases maps normalized quadrant names to quadrants.
var quadrantAliases = map[string]model.Quadrant{
	"dofirst":   model.QuadrantDoFirst,
	"do":        model.QuadrantDoFirst,
	"urgent":    model.QuadrantDoFirst,
	"schedule":  model.QuadrantSchedule,
	"plan":      model.QuadrantSchedule,
	"delegate":  model.QuadrantDelegate,
	"dontdo":    model.QuadrantDontDo,
	"eliminate": model.QuadrantDontDo,
}

// parseQuadrant accepts a quadrant number (1-4) or name ("do-first",
// "schedule", "delegate", "dont-do").
func parseQuadrant(s string) (model.Quadrant, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		q := model.Quadrant(n)
		if !q.IsValid() {
			return 0, fmt.Errorf("quadrant must be between 1 and 4, got %d", n)
		}
		return q, nil
	}
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\'':
			return -1
		}
		return r
	}, strings.ToLower(s))
	if q, ok := quadrantAliases[key]; ok {
		return q, nil
	}
	return 0, fmt.Errorf("unknown quadrant %q (use 1-4, do-first, schedule, delegate or dont-do)", s)
}

// dueLayouts are the absolute formats parseDue accepts, in local time unless
// the layout carries a zone.
var dueLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDue reads a due date. Besides the absolute layouts it accepts a
// duration from now prefixed with "+", such as "+90m" or "+2h".
func parseDue(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("invalid relative due date %q", s)
		}
		return now.Add(d), nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q (use YYYY-MM-DD, \"YYYY-MM-DD HH:MM\", RFC 3339 or +duration)", s)
}

// resolveTask finds a task by id or unique id prefix.
func resolveTask(tasks []model.Task, ref string) (model.Task, error) {
	var matches []model.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("%q is ambiguous: matches %d tasks", ref, len(matches))
}

// resolveSection finds a section by id, unique id prefix or exact name
// (ignoring case).
func resolveSection(sections []model.Section, ref string) (model.Section, error) {
	var byPrefix, byName []model.Section
	for _, s := range sections {
		if s.ID == ref {
			return s, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			byPrefix = append(byPrefix, s)
		}
		if strings.EqualFold(s.Name, ref) {
			byName = append(byName, s)
		}
	}
	for _, matches := range [][]model.Section{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		}
		return model.Section{}, fmt.Errorf("%q is ambiguous: matches %d sections", ref, len(matches))
	}
	return model.Section{}, fmt.Errorf("no section matches %q", ref)
}
