package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/replica"
	"github.com/alfredjeanlab/quadrant/internal/ui"
	"github.com/alfredjeanlab/quadrant/internal/views"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatDue(t model.Task, now time.Time) string {
	if !t.HasDue() {
		return ""
	}
	s := t.DueAt.In(now.Location()).Format("2006-01-02 15:04")
	if !t.Completed && t.DueAt.Before(now) {
		return ui.RenderWarn(s)
	}
	return s
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// sectionNames indexes section names by id.
func sectionNames(sections []model.Section) map[string]string {
	names := make(map[string]string, len(sections))
	for _, s := range sections {
		names[s.ID] = s.Name
	}
	return names
}

func printTaskRows(w io.Writer, tasks []model.Task, names map[string]string, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range tasks {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			checkbox(t.Completed),
			t.ID,
			ui.RenderQuadrant(t.Quadrant, "Q"+t.Quadrant.String()),
			truncate(t.Title, 50),
			formatDue(t, now),
			names[t.SectionID],
		)
	}
	tw.Flush()
}

func printTask(w io.Writer, t model.Task, names map[string]string, now time.Time) {
	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	fmt.Fprintf(w, "Quadrant:    %s\n", ui.RenderQuadrant(t.Quadrant, t.Quadrant.Name()))
	fmt.Fprintf(w, "Completed:   %v\n", t.Completed)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	if t.HasDue() {
		fmt.Fprintf(w, "Due:         %s\n", formatDue(t, now))
	}
	if t.SectionID != "" {
		fmt.Fprintf(w, "Section:     %s\n", names[t.SectionID])
	}
}

func printSections(w io.Writer, sections []model.Section, counts map[string]int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORDER\tNAME\tTASKS")
	for _, s := range sections {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", s.ID, s.Order, s.Name, counts[s.ID])
	}
	tw.Flush()
}

// viewOpts selects and groups the task list output.
type viewOpts struct {
	View   string
	Search string
	All    bool
}

const (
	viewQuadrant = "quadrant"
	viewSection  = "section"
	viewDue      = "due"
)

// renderView prints snap in the chosen grouping.
func renderView(w io.Writer, snap replica.Snapshot, opts viewOpts, now time.Time) error {
	tasks := views.Filter(snap.Tasks, opts.Search)
	if !opts.All {
		tasks = views.Incomplete(tasks)
	}
	names := sectionNames(snap.Sections)

	switch opts.View {
	case viewQuadrant, "":
		for _, g := range views.ByQuadrant(tasks) {
			header := fmt.Sprintf("%d. %s (%d)", g.Quadrant, g.Quadrant.Name(), len(g.Tasks))
			fmt.Fprintln(w, ui.RenderQuadrant(g.Quadrant, header))
			printTaskRows(w, g.Tasks, names, now)
		}
	case viewSection:
		for _, g := range views.BySection(snap.Sections, tasks) {
			fmt.Fprintln(w, ui.RenderAccent(fmt.Sprintf("%s (%d)", g.Name(), len(g.Tasks))))
			printTaskRows(w, g.Tasks, names, now)
		}
	case viewDue:
		for _, g := range views.ByDueBucket(tasks, now) {
			if len(g.Tasks) == 0 {
				continue
			}
			header := fmt.Sprintf("%s (%d)", g.Bucket, len(g.Tasks))
			if g.Bucket == views.BucketOverdue {
				header = ui.RenderWarn(header)
			} else {
				header = ui.RenderAccent(header)
			}
			fmt.Fprintln(w, header)
			printTaskRows(w, g.Tasks, names, now)
		}
	default:
		return fmt.Errorf("unknown view %q (use quadrant, section or due)", opts.View)
	}
	fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("%d tasks", len(tasks))))
	return nil
}
