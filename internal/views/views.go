// Package views projects task lists into the groupings the planner shows.
// Every function is pure and recomputes from its input.
package views

import (
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// QuadrantGroup is the tasks of one quadrant.
type QuadrantGroup struct {
	Quadrant model.Quadrant
	Tasks    []model.Task
}

// ByQuadrant groups tasks into the four quadrants, in quadrant order. All
// four groups are returned even when empty. Tasks with an invalid quadrant
// are dropped.
func ByQuadrant(tasks []model.Task) []QuadrantGroup {
	groups := make([]QuadrantGroup, len(model.Quadrants))
	for i, q := range model.Quadrants {
		groups[i].Quadrant = q
	}
	for _, t := range tasks {
		if !t.Quadrant.IsValid() {
			continue
		}
		i := int(t.Quadrant) - 1
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	return groups
}

// SectionGroup is the tasks of one section. Section is nil for the
// unsectioned group.
type SectionGroup struct {
	Section *model.Section
	Tasks   []model.Task
}

// Name returns the section name, or "Unsectioned".
func (g SectionGroup) Name() string {
	if g.Section == nil {
		return "Unsectioned"
	}
	return g.Section.Name
}

// BySection groups tasks by section. Sections come in display order followed
// by the unsectioned group, which also collects tasks referring to a section
// that is not in sections.
func BySection(sections []model.Section, tasks []model.Task) []SectionGroup {
	sorted := slices.Clone(sections)
	slices.SortStableFunc(sorted, func(a, b model.Section) int {
		switch {
		case model.SectionLess(a, b):
			return -1
		case model.SectionLess(b, a):
			return 1
		}
		return 0
	})

	groups := make([]SectionGroup, len(sorted)+1)
	index := make(map[string]int, len(sorted))
	for i := range sorted {
		groups[i].Section = &sorted[i]
		index[sorted[i].ID] = i
	}
	unsectioned := len(sorted)
	for _, t := range tasks {
		i, ok := index[t.SectionID]
		if t.SectionID == "" || !ok {
			i = unsectioned
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	return groups
}

// Bucket classifies a task by how soon it is due.
type Bucket int

const (
	BucketOverdue Bucket = iota
	BucketToday
	BucketTomorrow
	BucketUpcoming
	BucketLater
	BucketUnscheduled
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketOverdue, BucketToday, BucketTomorrow, BucketUpcoming, BucketLater, BucketUnscheduled}

func (b Bucket) String() string {
	switch b {
	case BucketOverdue:
		return "Overdue"
	case BucketToday:
		return "Today"
	case BucketTomorrow:
		return "Tomorrow"
	case BucketUpcoming:
		return "Upcoming"
	case BucketLater:
		return "Later"
	case BucketUnscheduled:
		return "Unscheduled"
	}
	return "Unknown"
}

// BucketOf returns the bucket of a due time as seen at now. Days are
// calendar days in now's location and include their closing midnight, so a
// task due at the end of today is due today. Upcoming covers the seven days
// after now.
func BucketOf(due *time.Time, now time.Time) Bucket {
	if due == nil || due.IsZero() {
		return BucketUnscheduled
	}
	d := due.In(now.Location())
	if d.Before(now) {
		return BucketOverdue
	}
	y, m, day := now.Date()
	endToday := time.Date(y, m, day+1, 0, 0, 0, 0, now.Location())
	if !d.After(endToday) {
		return BucketToday
	}
	if !d.After(endToday.AddDate(0, 0, 1)) {
		return BucketTomorrow
	}
	if !d.After(now.AddDate(0, 0, 7)) {
		return BucketUpcoming
	}
	return BucketLater
}

// DueGroup is the tasks of one due bucket.
type DueGroup struct {
	Bucket Bucket
	Tasks  []model.Task
}

// ByDueBucket groups tasks by due bucket as of now. All buckets are returned
// in display order, each keeping the input order of its tasks.
func ByDueBucket(tasks []model.Task, now time.Time) []DueGroup {
	groups := make([]DueGroup, len(Buckets))
	for i, b := range Buckets {
		groups[i].Bucket = b
	}
	for _, t := range tasks {
		b := BucketOf(t.DueAt, now)
		groups[b].Tasks = append(groups[b].Tasks, t)
	}
	return groups
}

// Filter returns the tasks whose title contains query, ignoring case. An
// empty or blank query matches everything.
func Filter(tasks []model.Task, query string) []model.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if q == "" || strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
		}
	}
	return out
}

// Incomplete returns the tasks that are not completed.
func Incomplete(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}
