package sync

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(&buf, "u1", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.UserID != "u1" || h.TaskCount != 0 || h.SectionCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_WithTasksAndSections(t *testing.T) {
	now := time.Now().UTC()
	due := now.Add(time.Hour)
	sections := []model.Section{
		{ID: "sec-b", Name: "Home", Order: 1, CreatedAt: now},
		{ID: "sec-a", Name: "Work", Order: 0, CreatedAt: now},
	}
	// Out of ID order to verify sorting.
	tasks := []model.Task{
		{ID: "tsk-zzz", Title: "Second", Quadrant: model.QuadrantDontDo, CreatedAt: now},
		{ID: "tsk-aaa", Title: "First", Quadrant: model.QuadrantDoFirst, SectionID: "sec-a", DueAt: &due, CreatedAt: now},
	}

	var buf bytes.Buffer
	if err := ExportJSONL(&buf, "u1", tasks, sections); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 sections + 2 tasks
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.TaskCount != 2 || h.SectionCount != 2 {
		t.Fatalf("header counts: task=%d section=%d", h.TaskCount, h.SectionCount)
	}

	wantTypes := []string{"section", "section", "task", "task"}
	wantIDs := []string{"sec-a", "sec-b", "tsk-aaa", "tsk-zzz"}
	for i, line := range lines[1:] {
		var rec struct {
			Type string `json:"type"`
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if rec.Type != wantTypes[i] || rec.Data.ID != wantIDs[i] {
			t.Fatalf("line %d = %s %s, want %s %s", i+1, rec.Type, rec.Data.ID, wantTypes[i], wantIDs[i])
		}
	}

	var first struct {
		Data model.Task `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Data.SectionID != "sec-a" || first.Data.DueAt == nil || !first.Data.DueAt.Equal(due) {
		t.Fatalf("task fields lost in export: %+v", first.Data)
	}

	if tasks[0].ID != "tsk-zzz" || sections[0].ID != "sec-b" {
		t.Fatal("ExportJSONL reordered its input")
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}

func TestImportJSONL_ReadsExport(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	sections := []model.Section{{ID: "sec-1", Name: "Work", CreatedAt: now}}
	tasks := []model.Task{{ID: "tsk-1", Title: "Plan", Quadrant: model.QuadrantSchedule, SectionID: "sec-1", CreatedAt: now}}

	var buf bytes.Buffer
	if err := ExportJSONL(&buf, "u1", tasks, sections); err != nil {
		t.Fatal(err)
	}
	buf.WriteString(`{"type":"future","data":{}}` + "\n")

	gotTasks, gotSections, err := ImportJSONL(&buf)
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if len(gotTasks) != 1 || gotTasks[0].ID != "tsk-1" || gotTasks[0].SectionID != "sec-1" || !gotTasks[0].CreatedAt.Equal(now) {
		t.Fatalf("tasks = %+v", gotTasks)
	}
	if len(gotSections) != 1 || gotSections[0].Name != "Work" {
		t.Fatalf("sections = %+v", gotSections)
	}
}

func TestImportJSONL_Malformed(t *testing.T) {
	if _, _, err := ImportJSONL(strings.NewReader("{\"type\":\"task\",\"data\":[1]}\n")); err == nil {
		t.Fatal("expected error for malformed task")
	}
	if _, _, err := ImportJSONL(strings.NewReader("nope\n")); err == nil {
		t.Fatal("expected error for non-JSON line")
	}
}
