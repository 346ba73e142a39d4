// Package gateway applies user mutations to the replica immediately and
// reconciles them with the remote store, rolling back what the store rejects.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/idgen"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/replica"
)

// Refetcher reloads both collections from the remote store.
type Refetcher interface {
	RefetchAll(ctx context.Context) error
}

// Gateway is the single entry point for user-initiated writes.
type Gateway struct {
	store   *replica.Store
	backend backend.Backend
	refetch Refetcher
	logger  *slog.Logger

	mu  sync.Mutex // guards seq and orders optimistic applies per entity
	seq *sequencer

	newTempID func() string
	now       func() time.Time
}

// New creates a Gateway writing to store and be. refetch is used after
// mutations that touch more than one collection.
func New(store *replica.Store, be backend.Backend, refetch Refetcher, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:     store,
		backend:   be,
		refetch:   refetch,
		logger:    logger,
		seq:       newSequencer(),
		newTempID: idgen.Temp,
		now:       time.Now,
	}
}

// CreateTask inserts draft under a temporary id, then replaces it with the
// stored record. On failure the temporary record is removed.
func (g *Gateway) CreateTask(ctx context.Context, draft model.Task) (model.Task, error) {
	const op = "create task"
	draft.Title = strings.TrimSpace(draft.Title)
	if err := model.ValidateTask(&draft); err != nil {
		return model.Task{}, fmt.Errorf("%s: %w", op, err)
	}
	if draft.SectionID != "" {
		if _, ok := g.store.Sections.Get(draft.SectionID); !ok {
			return model.Task{}, fmt.Errorf("%s: %w %s", op, ErrUnknownSection, draft.SectionID)
		}
	}

	now := g.now()
	temp := draft
	temp.ID = g.newTempID()
	temp.CreatedAt, temp.UpdatedAt = now, now
	g.store.Tasks.Upsert(temp)

	draft.ID = ""
	saved, err := g.backend.InsertTask(ctx, draft)
	if err != nil {
		g.store.Tasks.Remove(temp.ID)
		g.logger.Warn("task create rejected", "temp_id", temp.ID, "err", err)
		return model.Task{}, &MutationError{Op: op, Err: err}
	}
	g.store.Tasks.Swap(temp.ID, saved)
	g.logger.Debug("task created", "id", saved.ID, "temp_id", temp.ID)
	return saved, nil
}

// UpdateTask applies p to the task. A patch that reassigns the section
// reloads both collections once the store accepts it.
func (g *Gateway) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	const op = "update task"
	if err := model.ValidateTaskPatch(p); err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if p.IsEmpty() {
		return nil
	}
	if idgen.IsTemp(id) {
		return fmt.Errorf("%s %s: %w", op, id, ErrPending)
	}
	if p.SectionID != nil && *p.SectionID != "" {
		if _, ok := g.store.Sections.Get(*p.SectionID); !ok {
			return fmt.Errorf("%s %s: %w %s", op, id, ErrUnknownSection, *p.SectionID)
		}
	}

	key := taskKey(id)
	g.mu.Lock()
	n := g.seq.next(key)
	prev, ok := g.store.Tasks.Patch(id, p.Apply)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrUnknownTask)
	}
	inverse := p.Inverse(prev)

	if err := g.backend.UpdateTask(ctx, id, p); err != nil {
		g.rollback(key, n, func() { g.store.Tasks.Patch(id, inverse.Apply) })
		g.logger.Warn("task update rejected", "id", id, "err", err)
		return &MutationError{Op: op, ID: id, Err: err}
	}
	if p.TouchesSection() {
		g.refetchAll(ctx, op, id)
	}
	return nil
}

// MoveTask assigns the task to quadrant q. Moving to the current quadrant is
// a no-op.
func (g *Gateway) MoveTask(ctx context.Context, id string, q model.Quadrant) error {
	t, ok := g.store.Tasks.Get(id)
	if !ok {
		return fmt.Errorf("move task %s: %w", id, ErrUnknownTask)
	}
	if t.Quadrant == q {
		return nil
	}
	return g.UpdateTask(ctx, id, model.TaskPatch{Quadrant: &q})
}

// ToggleComplete sets the completion flag and nothing else.
func (g *Gateway) ToggleComplete(ctx context.Context, id string, completed bool) error {
	return g.UpdateTask(ctx, id, model.TaskPatch{Completed: &completed})
}

// SetTaskSection moves the task into sectionID, or out of any section when
// sectionID is empty.
func (g *Gateway) SetTaskSection(ctx context.Context, id, sectionID string) error {
	return g.UpdateTask(ctx, id, model.TaskPatch{SectionID: &sectionID})
}

// DeleteTask removes the task, restoring it if the store refuses. A task the
// store no longer has counts as deleted.
func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	const op = "delete task"
	if idgen.IsTemp(id) {
		return fmt.Errorf("%s %s: %w", op, id, ErrPending)
	}
	key := taskKey(id)
	g.mu.Lock()
	n := g.seq.next(key)
	prev, ok := g.store.Tasks.Remove(id)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrUnknownTask)
	}

	err := g.backend.DeleteTask(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		g.logger.Debug("task already gone remotely", "id", id)
		return nil
	}
	if err != nil {
		g.rollback(key, n, func() { g.store.Tasks.Upsert(prev) })
		g.logger.Warn("task delete rejected", "id", id, "err", err)
		return &MutationError{Op: op, ID: id, Err: err}
	}
	return nil
}

// CreateSection appends a section named name after the existing ones.
func (g *Gateway) CreateSection(ctx context.Context, name string) (model.Section, error) {
	const op = "create section"
	draft := model.Section{Name: strings.TrimSpace(name), Order: g.nextSectionOrder()}
	if err := model.ValidateSection(&draft); err != nil {
		return model.Section{}, fmt.Errorf("%s: %w", op, err)
	}

	now := g.now()
	temp := draft
	temp.ID = g.newTempID()
	temp.CreatedAt, temp.UpdatedAt = now, now
	g.store.Sections.Upsert(temp)

	saved, err := g.backend.InsertSection(ctx, draft)
	if err != nil {
		g.store.Sections.Remove(temp.ID)
		g.logger.Warn("section create rejected", "temp_id", temp.ID, "err", err)
		return model.Section{}, &MutationError{Op: op, Err: err}
	}
	g.store.Sections.Swap(temp.ID, saved)
	return saved, nil
}

// nextSectionOrder is one past the highest order in the store, so a new
// section sorts last even after reorders leave gaps.
func (g *Gateway) nextSectionOrder() int {
	last, ok := g.store.Sections.Max(func(a, b model.Section) int { return a.Order - b.Order })
	if !ok {
		return 0
	}
	return last.Order + 1
}

// UpdateSection renames or reorders a section.
func (g *Gateway) UpdateSection(ctx context.Context, id string, p model.SectionPatch) error {
	const op = "update section"
	if err := model.ValidateSectionPatch(p); err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if p.IsEmpty() {
		return nil
	}
	if idgen.IsTemp(id) {
		return fmt.Errorf("%s %s: %w", op, id, ErrPending)
	}

	key := sectionKey(id)
	g.mu.Lock()
	n := g.seq.next(key)
	prev, ok := g.store.Sections.Patch(id, p.Apply)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrUnknownSection)
	}
	inverse := p.Inverse(prev)

	if err := g.backend.UpdateSection(ctx, id, p); err != nil {
		g.rollback(key, n, func() { g.store.Sections.Patch(id, inverse.Apply) })
		g.logger.Warn("section update rejected", "id", id, "err", err)
		return &MutationError{Op: op, ID: id, Err: err}
	}
	return nil
}

// DeleteSection removes the section. Its tasks become unsectioned remotely;
// both collections are reloaded once the store accepts the delete.
func (g *Gateway) DeleteSection(ctx context.Context, id string) error {
	const op = "delete section"
	if idgen.IsTemp(id) {
		return fmt.Errorf("%s %s: %w", op, id, ErrPending)
	}
	key := sectionKey(id)
	g.mu.Lock()
	n := g.seq.next(key)
	prev, ok := g.store.Sections.Remove(id)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, ErrUnknownSection)
	}

	if err := g.backend.DeleteSection(ctx, id); err != nil && !errors.Is(err, backend.ErrNotFound) {
		g.rollback(key, n, func() { g.store.Sections.Upsert(prev) })
		g.logger.Warn("section delete rejected", "id", id, "err", err)
		return &MutationError{Op: op, ID: id, Err: err}
	}
	g.refetchAll(ctx, op, id)
	return nil
}

// rollback runs undo if mutation n is still the latest for key.
func (g *Gateway) rollback(key string, n uint64, undo func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seq.isLatest(key, n) {
		g.logger.Debug("skipping stale rollback", "key", key, "seq", n)
		return
	}
	undo()
}

// refetchAll reloads both collections. Failures are logged only; the
// mutation itself already succeeded.
func (g *Gateway) refetchAll(ctx context.Context, op, id string) {
	if g.refetch == nil {
		return
	}
	if err := g.refetch.RefetchAll(ctx); err != nil {
		g.logger.Warn("refetch after mutation failed", "op", op, "id", id, "err", err)
	}
}
