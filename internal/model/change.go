package model

import (
	"encoding/json"
	"fmt"
)

// Table names a replicated collection.
type Table string

const (
	TableTasks    Table = "tasks"
	TableSections Table = "sections"
)

// IsValid reports whether t is a known table.
func (t Table) IsValid() bool {
	return t == TableTasks || t == TableSections
}

// RowImage is the projection of a changed row that the sync engine inspects.
type RowImage struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	SectionID string `json:"section_id,omitempty"`
}

// Change is a row-level change delivered by a change feed. It is one of
// Insert, Update or Delete.
type Change interface {
	ChangeTable() Table
	ChangeUser() string
	isChange()
}

// Insert reports a new row.
type Insert struct {
	Table Table
	User  string
	New   RowImage
}

// Update reports a modified row with its images before and after.
type Update struct {
	Table Table
	User  string
	Old   RowImage
	New   RowImage
}

// SectionChanged reports whether the section reference differs between the
// old and new images.
func (u Update) SectionChanged() bool { return u.Old.SectionID != u.New.SectionID }

// Delete reports a removed row.
type Delete struct {
	Table Table
	User  string
	Old   RowImage
}

func (c Insert) ChangeTable() Table { return c.Table }
func (c Update) ChangeTable() Table { return c.Table }
func (c Delete) ChangeTable() Table { return c.Table }

func (c Insert) ChangeUser() string { return c.User }
func (c Update) ChangeUser() string { return c.User }
func (c Delete) ChangeUser() string { return c.User }

func (Insert) isChange() {}
func (Update) isChange() {}
func (Delete) isChange() {}

// Change type tags on the wire.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// wireChange is the JSON document carried by every change-feed transport.
type wireChange struct {
	Table  Table     `json:"table"`
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Old    *RowImage `json:"old,omitempty"`
	New    *RowImage `json:"new,omitempty"`
}

// DecodeChange parses a change-feed payload.
func DecodeChange(data []byte) (Change, error) {
	var w wireChange
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	if !w.Table.IsValid() {
		return nil, fmt.Errorf("decode change: unknown table %q", w.Table)
	}
	switch w.Type {
	case ChangeInsert:
		if w.New == nil {
			return nil, fmt.Errorf("decode change: %s without new row", w.Type)
		}
		return Insert{Table: w.Table, User: w.userID(), New: *w.New}, nil
	case ChangeUpdate:
		if w.New == nil || w.Old == nil {
			return nil, fmt.Errorf("decode change: %s without old and new rows", w.Type)
		}
		return Update{Table: w.Table, User: w.userID(), Old: *w.Old, New: *w.New}, nil
	case ChangeDelete:
		if w.Old == nil {
			return nil, fmt.Errorf("decode change: %s without old row", w.Type)
		}
		return Delete{Table: w.Table, User: w.userID(), Old: *w.Old}, nil
	}
	return nil, fmt.Errorf("decode change: unknown type %q", w.Type)
}

// EncodeChange renders c in the wire format accepted by DecodeChange.
func EncodeChange(c Change) ([]byte, error) {
	w := wireChange{Table: c.ChangeTable(), UserID: c.ChangeUser()}
	switch v := c.(type) {
	case Insert:
		w.Type = ChangeInsert
		w.New = &v.New
	case Update:
		w.Type = ChangeUpdate
		w.Old, w.New = &v.Old, &v.New
	case Delete:
		w.Type = ChangeDelete
		w.Old = &v.Old
	default:
		return nil, fmt.Errorf("encode change: unsupported %T", c)
	}
	return json.Marshal(w)
}

// userID falls back to the row owner when the envelope omits it.
func (w wireChange) userID() string {
	if w.UserID != "" {
		return w.UserID
	}
	if w.New != nil && w.New.UserID != "" {
		return w.New.UserID
	}
	if w.Old != nil {
		return w.Old.UserID
	}
	return ""
}

// MarshalJSON renders the change in its wire format, so changes can be
// handed to any JSON publisher as is.
func (c Insert) MarshalJSON() ([]byte, error) { return EncodeChange(c) }

// MarshalJSON renders the change in its wire format.
func (c Update) MarshalJSON() ([]byte, error) { return EncodeChange(c) }

// MarshalJSON renders the change in its wire format.
func (c Delete) MarshalJSON() ([]byte, error) { return EncodeChange(c) }
