// Package postgres implements backend.Backend and backend.Feed on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Backend is a backend.Backend whose every statement is scoped to one user.
type Backend struct {
	db     *sql.DB
	userID string
}

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(ctx context.Context, databaseURL, userID string) (*Backend, error) {
	if userID == "" {
		return nil, errors.New("postgres backend: user id is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newBackend(db, userID), nil
}

func newBackend(db *sql.DB, userID string) *Backend {
	return &Backend{db: db, userID: userID}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) ListTasks(ctx context.Context) ([]model.Task, error) {
	tasks, err := queryListTasks(ctx, b.db, b.userID)
	return tasks, wrapErr("list tasks", err)
}

func (b *Backend) ListSections(ctx context.Context) ([]model.Section, error) {
	sections, err := queryListSections(ctx, b.db, b.userID)
	return sections, wrapErr("list sections", err)
}

func (b *Backend) InsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := model.ValidateTask(&t); err != nil {
		return model.Task{}, &backend.Error{Op: "insert task", Code: backend.CodeInvalid, Message: err.Error(), Err: err}
	}
	t.UserID = b.userID
	out, err := queryInsertTask(ctx, b.db, t)
	return out, wrapErr("insert task", err)
}

func (b *Backend) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	return wrapErr("update task", queryUpdate(ctx, b.db, "tasks", b.userID, id, p.Columns()))
}

func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	return wrapErr("delete task", queryDelete(ctx, b.db, "tasks", b.userID, id))
}

func (b *Backend) InsertSection(ctx context.Context, s model.Section) (model.Section, error) {
	if err := model.ValidateSection(&s); err != nil {
		return model.Section{}, &backend.Error{Op: "insert section", Code: backend.CodeInvalid, Message: err.Error(), Err: err}
	}
	s.UserID = b.userID
	out, err := queryInsertSection(ctx, b.db, s)
	return out, wrapErr("insert section", err)
}

func (b *Backend) UpdateSection(ctx context.Context, id string, p model.SectionPatch) error {
	return wrapErr("update section", queryUpdate(ctx, b.db, "sections", b.userID, id, p.Columns()))
}

// DeleteSection relies on the foreign key's ON DELETE SET NULL to detach
// the section's tasks.
func (b *Backend) DeleteSection(ctx context.Context, id string) error {
	return wrapErr("delete section", queryDelete(ctx, b.db, "sections", b.userID, id))
}
