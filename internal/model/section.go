package model

import "time"

// Section is a user-defined named grouping that tasks may belong to.
type Section struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SectionID returns the identity of s.
func SectionID(s Section) string { return s.ID }

// SectionLess orders sections by display order, then creation time, then id,
// so that equal order values still sort deterministically.
func SectionLess(a, b Section) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// TaskLess orders tasks newest first, matching the remote listing order.
func TaskLess(a, b Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SectionPatch is a partial update of a section.
type SectionPatch struct {
	Name  *string
	Order *int
}

// IsEmpty reports whether the patch changes nothing.
func (p SectionPatch) IsEmpty() bool { return p.Name == nil && p.Order == nil }

// Apply writes the patched fields into s.
func (p SectionPatch) Apply(s *Section) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
}

// Inverse returns the patch restoring the fields p touches to their values in s.
func (p SectionPatch) Inverse(s Section) SectionPatch {
	var inv SectionPatch
	if p.Name != nil {
		inv.Name = Ptr(s.Name)
	}
	if p.Order != nil {
		inv.Order = Ptr(s.Order)
	}
	return inv
}

// Columns maps the patch onto row column names.
func (p SectionPatch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Order != nil {
		cols["order"] = *p.Order
	}
	return cols
}
