package model

import (
	"fmt"
	"time"
)

// Quadrant is one of the four fixed cells of the urgent/important matrix.
type Quadrant int

const (
	QuadrantDoFirst  Quadrant = 1
	QuadrantSchedule Quadrant = 2
	QuadrantDelegate Quadrant = 3
	QuadrantDontDo   Quadrant = 4
)

// Quadrants lists every quadrant in display order.
var Quadrants = []Quadrant{QuadrantDoFirst, QuadrantSchedule, QuadrantDelegate, QuadrantDontDo}

// IsValid reports whether q is one of the four quadrants.
func (q Quadrant) IsValid() bool {
	return q >= QuadrantDoFirst && q <= QuadrantDontDo
}

// Name returns the display name of the quadrant.
func (q Quadrant) Name() string {
	switch q {
	case QuadrantDoFirst:
		return "Do First"
	case QuadrantSchedule:
		return "Schedule"
	case QuadrantDelegate:
		return "Delegate"
	case QuadrantDontDo:
		return "Don't Do"
	}
	return fmt.Sprintf("Quadrant %d", int(q))
}

// String returns the quadrant number as text.
func (q Quadrant) String() string {
	return fmt.Sprintf("%d", int(q))
}

// Task is a single matrix item owned by one user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	Quadrant    Quadrant   `json:"quadrant"`
	SectionID   string     `json:"section_id,omitempty"` // empty means unsectioned
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskID returns the identity of t. It is used as the key function of the
// task collection.
func TaskID(t Task) string { return t.ID }

// HasDue reports whether the task carries a due timestamp.
func (t Task) HasDue() bool { return t.DueAt != nil && !t.DueAt.IsZero() }

// TaskPatch is a partial update of a task. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string    // "" clears the description
	DueAt       *time.Time // a zero time clears the due date
	Completed   *bool
	Quadrant    *Quadrant
	SectionID   *string // "" detaches the task from its section
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueAt == nil &&
		p.Completed == nil && p.Quadrant == nil && p.SectionID == nil
}

// TouchesSection reports whether the patch reassigns the section reference.
func (p TaskPatch) TouchesSection() bool { return p.SectionID != nil }

// Apply writes the patched fields into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueAt != nil {
		if p.DueAt.IsZero() {
			t.DueAt = nil
		} else {
			due := *p.DueAt
			t.DueAt = &due
		}
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Quadrant != nil {
		t.Quadrant = *p.Quadrant
	}
	if p.SectionID != nil {
		t.SectionID = *p.SectionID
	}
}

// Inverse returns the patch that restores the fields p touches to their
// values in t. Applying p and then p.Inverse(t) leaves t unchanged.
func (p TaskPatch) Inverse(t Task) TaskPatch {
	var inv TaskPatch
	if p.Title != nil {
		inv.Title = Ptr(t.Title)
	}
	if p.Description != nil {
		inv.Description = Ptr(t.Description)
	}
	if p.DueAt != nil {
		if t.DueAt == nil {
			inv.DueAt = Ptr(time.Time{})
		} else {
			inv.DueAt = Ptr(*t.DueAt)
		}
	}
	if p.Completed != nil {
		inv.Completed = Ptr(t.Completed)
	}
	if p.Quadrant != nil {
		inv.Quadrant = Ptr(t.Quadrant)
	}
	if p.SectionID != nil {
		inv.SectionID = Ptr(t.SectionID)
	}
	return inv
}

// Columns maps the patch onto row column names. Cleared values map to nil.
func (p TaskPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Description != nil {
		cols["description"] = nullIfEmpty(*p.Description)
	}
	if p.DueAt != nil {
		if p.DueAt.IsZero() {
			cols["due_date"] = nil
		} else {
			cols["due_date"] = p.DueAt.UTC()
		}
	}
	if p.Completed != nil {
		cols["completed"] = *p.Completed
	}
	if p.Quadrant != nil {
		cols["quadrant"] = int(*p.Quadrant)
	}
	if p.SectionID != nil {
		cols["section_id"] = nullIfEmpty(*p.SectionID)
	}
	return cols
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
