package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"user_id,omitempty"`
	TaskCount    int       `json:"task_count"`
	SectionCount int       `json:"section_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes a header line followed by one record per section, in
// display order, and one per task, sorted by ID.
func ExportJSONL(w io.Writer, userID string, tasks []model.Task, sections []model.Section) error {
	sections = slices.Clone(sections)
	slices.SortFunc(sections, func(a, b model.Section) int {
		switch {
		case model.SectionLess(a, b):
			return -1
		case model.SectionLess(b, a):
			return 1
		}
		return 0
	})
	tasks = slices.Clone(tasks)
	slices.SortFunc(tasks, func(a, b model.Task) int { return strings.Compare(a.ID, b.ID) })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		UserID:       userID,
		TaskCount:    len(tasks),
		SectionCount: len(sections),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, s := range sections {
		if err := enc.Encode(record{Type: "section", Data: s}); err != nil {
			return fmt.Errorf("encode section %s: %w", s.ID, err)
		}
	}
	for _, t := range tasks {
		if err := enc.Encode(record{Type: "task", Data: t}); err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	return nil
}
