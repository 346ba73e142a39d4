// Package backend defines the remote store a sync session talks to and the
// change feed it listens on.
package backend

import (
	"context"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Backend is the authoritative remote store, scoped to one user.
type Backend interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	ListSections(ctx context.Context) ([]model.Section, error)

	// InsertTask stores t and returns the persisted record with its
	// permanent id and timestamps.
	InsertTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, id string, p model.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error

	InsertSection(ctx context.Context, s model.Section) (model.Section, error)
	UpdateSection(ctx context.Context, id string, p model.SectionPatch) error
	// DeleteSection removes the section. Tasks that referenced it become
	// unsectioned on the remote side.
	DeleteSection(ctx context.Context, id string) error

	Close() error
}

// Feed delivers row-level changes for a table.
type Feed interface {
	// Subscribe starts delivery of changes to table. The returned cancel
	// func stops delivery and closes the channel. The channel is also closed
	// if the feed fails; callers treat that as a subscription error.
	Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error)
	Close() error
}
