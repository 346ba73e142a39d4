package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/alfredjeanlab/quadrant/internal/idgen"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

const taskColumns = `id, user_id, title, description, due_date, completed,
	quadrant, section_id, created_at, updated_at`

const sectionColumns = `id, user_id, name, "order", created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// updatable lists the columns a patch may set, per table. Column names are
// interpolated into SQL, so anything else is rejected.
var updatable = map[string]map[string]bool{
	"tasks": {
		"title": true, "description": true, "due_date": true,
		"completed": true, "quadrant": true, "section_id": true,
	},
	"sections": {"name": true, "order": true},
}

func queryListTasks(ctx context.Context, db executor, userID string) ([]model.Task, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func queryListSections(ctx context.Context, db executor, userID string) ([]model.Section, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE user_id = $1 ORDER BY "order" ASC, created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSections(rows)
}

func queryInsertTask(ctx context.Context, db executor, t model.Task) (model.Task, error) {
	id, err := idgen.Task()
	if err != nil {
		return model.Task{}, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO tasks (
			id, user_id, title, description, due_date, completed, quadrant, section_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING `+taskColumns,
		id,
		t.UserID,
		t.Title,
		nullString(t.Description),
		nullTimePtr(t.DueAt),
		t.Completed,
		int(t.Quadrant),
		nullString(t.SectionID),
	)
	return scanTask(row)
}

func queryInsertSection(ctx context.Context, db executor, s model.Section) (model.Section, error) {
	id, err := idgen.Section()
	if err != nil {
		return model.Section{}, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO sections (id, user_id, name, "order")
		VALUES ($1, $2, $3, $4)
		RETURNING `+sectionColumns,
		id, s.UserID, s.Name, s.Order,
	)
	return scanSection(row)
}

// queryUpdate sets cols on the row (id, userID) of table. An empty column set
// is a no-op. A missing row yields sql.ErrNoRows.
func queryUpdate(ctx context.Context, db executor, table, userID, id string, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	allowed := updatable[table]
	names := make([]string, 0, len(cols))
	for name := range cols {
		if !allowed[name] {
			return fmt.Errorf("column %q is not updatable on %s", name, table)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	args := []any{id, userID}
	sets := make([]string, 0, len(names)+1)
	for _, name := range names {
		args = append(args, cols[name])
		sets = append(sets, fmt.Sprintf("%q = $%d", name, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	res, err := db.ExecContext(ctx,
		"UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE id = $1 AND user_id = $2",
		args...,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func queryDelete(ctx context.Context, db executor, table, userID, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
