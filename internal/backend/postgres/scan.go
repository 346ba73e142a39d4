package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanTask scans a single row into a model.Task.
// The row must contain columns in the order defined by taskColumns.
func scanTask(row scannable) (model.Task, error) {
	var t model.Task
	var (
		description sql.NullString
		dueAt       sql.NullTime
		sectionID   sql.NullString
		quadrant    int
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&description,
		&dueAt,
		&t.Completed,
		&quadrant,
		&sectionID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	t.Description = description.String
	t.SectionID = sectionID.String
	t.Quadrant = model.Quadrant(quadrant)
	if dueAt.Valid {
		d := dueAt.Time
		t.DueAt = &d
	}
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanSection(row scannable) (model.Section, error) {
	var s model.Section
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Order, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanSections(rows *sql.Rows) ([]model.Section, error) {
	var sections []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
