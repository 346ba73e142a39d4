package model

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestQuadrant_IsValid(t *testing.T) {
	for _, tc := range []struct {
		q    Quadrant
		want bool
	}{
		{QuadrantDoFirst, true},
		{QuadrantSchedule, true},
		{QuadrantDelegate, true},
		{QuadrantDontDo, true},
		{Quadrant(0), false},
		{Quadrant(5), false},
		{Quadrant(-1), false},
	} {
		if got := tc.q.IsValid(); got != tc.want {
			t.Errorf("Quadrant(%d).IsValid() = %v, want %v", tc.q, got, tc.want)
		}
	}
}

func TestQuadrant_Name(t *testing.T) {
	for _, tc := range []struct {
		q    Quadrant
		want string
	}{
		{QuadrantDoFirst, "Do First"},
		{QuadrantSchedule, "Schedule"},
		{QuadrantDelegate, "Delegate"},
		{QuadrantDontDo, "Don't Do"},
		{Quadrant(9), "Quadrant 9"},
	} {
		if got := tc.q.Name(); got != tc.want {
			t.Errorf("Quadrant(%d).Name() = %q, want %q", tc.q, got, tc.want)
		}
	}
}

func sampleTask() Task {
	due := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return Task{
		ID:          "tsk-1",
		Title:       "Write report",
		Description: "quarterly",
		DueAt:       &due,
		Quadrant:    QuadrantSchedule,
		SectionID:   "sec-1",
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTaskPatch_ApplyInverseRoundTrip(t *testing.T) {
	newDue := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	patches := map[string]TaskPatch{
		"title":      {Title: Ptr("Rewrite report")},
		"clear desc": {Description: Ptr("")},
		"new due":    {DueAt: &newDue},
		"clear due":  {DueAt: Ptr(time.Time{})},
		"complete":   {Completed: Ptr(true)},
		"move":       {Quadrant: Ptr(QuadrantDoFirst)},
		"detach":     {SectionID: Ptr("")},
		"everything": {Title: Ptr("x"), Description: Ptr("y"), DueAt: &newDue, Completed: Ptr(true), Quadrant: Ptr(QuadrantDontDo), SectionID: Ptr("sec-2")},
	}
	for name, p := range patches {
		t.Run(name, func(t *testing.T) {
			orig := sampleTask()
			task := sampleTask()
			inv := p.Inverse(task)
			p.Apply(&task)
			if reflect.DeepEqual(task, orig) {
				t.Fatalf("patch %s did not change the task", name)
			}
			inv.Apply(&task)
			if !reflect.DeepEqual(task, orig) {
				t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", task, orig)
			}
		})
	}
}

func TestTaskPatch_ClearDueOnUndatedTaskRestoresNil(t *testing.T) {
	task := Task{ID: "tsk-1", Title: "t", Quadrant: QuadrantDoFirst}
	due := time.Now()
	p := TaskPatch{DueAt: &due}
	inv := p.Inverse(task)
	p.Apply(&task)
	if task.DueAt == nil {
		t.Fatal("expected due date after apply")
	}
	inv.Apply(&task)
	if task.DueAt != nil {
		t.Fatalf("expected nil due date after inverse, got %v", task.DueAt)
	}
}

func TestTaskPatch_Columns(t *testing.T) {
	p := TaskPatch{Description: Ptr(""), SectionID: Ptr(""), Quadrant: Ptr(QuadrantDelegate), DueAt: Ptr(time.Time{})}
	cols := p.Columns()
	want := map[string]any{"description": nil, "section_id": nil, "quadrant": 3, "due_date": nil}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns() = %v, want %v", cols, want)
	}
	if !p.TouchesSection() {
		t.Error("TouchesSection() = false, want true")
	}
	if (TaskPatch{}).IsEmpty() != true {
		t.Error("empty patch should report IsEmpty")
	}
}

func TestSectionLess_Deterministic(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Section{ID: "b", Order: 1, CreatedAt: t0}
	b := Section{ID: "a", Order: 1, CreatedAt: t0}
	c := Section{ID: "c", Order: 0, CreatedAt: t0.Add(time.Hour)}
	if !SectionLess(c, a) {
		t.Error("lower order should sort first")
	}
	if !SectionLess(b, a) || SectionLess(a, b) {
		t.Error("equal order and time should fall back to id")
	}
}

func TestValidateTask(t *testing.T) {
	if err := ValidateTask(&Task{Title: "ok", Quadrant: QuadrantDoFirst}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateTask(&Task{Title: "  ", Quadrant: 7})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(ve.Errors), ve)
	}
}

func TestValidateSection(t *testing.T) {
	if err := ValidateSection(&Section{Name: "Work"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateSection(&Section{Name: ""}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := ValidateSectionPatch(SectionPatch{Name: Ptr(" ")}); err == nil {
		t.Fatal("expected error for blank rename")
	}
}
