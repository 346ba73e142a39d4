// Package memory provides an in-process Backend and Feed. It keeps data only
// for the life of the process and is used for offline runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/idgen"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Operation names accepted by Fail, Hold and Calls.
const (
	OpListTasks     = "list tasks"
	OpListSections  = "list sections"
	OpInsertTask    = "insert task"
	OpUpdateTask    = "update task"
	OpDeleteTask    = "delete task"
	OpInsertSection = "insert section"
	OpUpdateSection = "update section"
	OpDeleteSection = "delete section"
)

// Backend is an in-memory backend.Backend for a single user. Every write is
// published on its Feed.
type Backend struct {
	userID string
	feed   *Feed
	now    func() time.Time

	mu       sync.Mutex
	tasks    map[string]model.Task
	sections map[string]model.Section
	failures map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
}

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// New returns an empty backend owned by userID.
func New(userID string) *Backend {
	return &Backend{
		userID:   userID,
		feed:     NewFeed(),
		now:      time.Now,
		tasks:    make(map[string]model.Task),
		sections: make(map[string]model.Section),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

// Feed returns the feed the backend publishes its changes on.
func (b *Backend) Feed() *Feed { return b.feed }

// Seed installs records directly, without publishing changes.
func (b *Backend) Seed(tasks []model.Task, sections []model.Section) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range sections {
		if s.UserID == "" {
			s.UserID = b.userID
		}
		b.sections[s.ID] = s
	}
	for _, t := range tasks {
		if t.UserID == "" {
			t.UserID = b.userID
		}
		b.tasks[t.ID] = t
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Hold blocks later calls of op until the returned release func is called.
func (b *Backend) Hold(op string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[op] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[op] == gate {
				delete(b.gates, op)
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op has been invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Task returns the stored task with the given id.
func (b *Backend) Task(id string) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	return t, ok
}

// enter records the call, waits on any hold and returns the injected failure.
func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	gate := b.gates[op]
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &backend.Error{Op: op, Code: backend.CodeUnavailable, Err: ctx.Err()}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[op]
}

func (b *Backend) ListTasks(ctx context.Context) ([]model.Task, error) {
	if err := b.enter(ctx, OpListTasks); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return model.TaskLess(out[i], out[j]) })
	return out, nil
}

func (b *Backend) ListSections(ctx context.Context) ([]model.Section, error) {
	if err := b.enter(ctx, OpListSections); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Section, 0, len(b.sections))
	for _, s := range b.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return model.SectionLess(out[i], out[j]) })
	return out, nil
}

func (b *Backend) InsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := b.enter(ctx, OpInsertTask); err != nil {
		return model.Task{}, err
	}
	if err := model.ValidateTask(&t); err != nil {
		return model.Task{}, invalid(OpInsertTask, err)
	}
	id, err := idgen.Task()
	if err != nil {
		return model.Task{}, &backend.Error{Op: OpInsertTask, Code: backend.CodeInternal, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t.SectionID != "" {
		if _, ok := b.sections[t.SectionID]; !ok {
			return model.Task{}, foreignKey(OpInsertTask, t.SectionID)
		}
	}
	now := b.now()
	t.ID, t.UserID, t.CreatedAt, t.UpdatedAt = id, b.userID, now, now
	b.tasks[id] = t
	b.feed.Publish(model.Insert{Table: model.TableTasks, User: b.userID, New: taskImage(t)})
	return t, nil
}

func (b *Backend) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	if err := b.enter(ctx, OpUpdateTask); err != nil {
		return err
	}
	if err := model.ValidateTaskPatch(p); err != nil {
		return invalid(OpUpdateTask, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	if !ok {
		return notFound(OpUpdateTask)
	}
	if p.SectionID != nil && *p.SectionID != "" {
		if _, ok := b.sections[*p.SectionID]; !ok {
			return foreignKey(OpUpdateTask, *p.SectionID)
		}
	}
	old := taskImage(t)
	p.Apply(&t)
	t.UpdatedAt = b.now()
	b.tasks[id] = t
	b.feed.Publish(model.Update{Table: model.TableTasks, User: b.userID, Old: old, New: taskImage(t)})
	return nil
}

func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	if err := b.enter(ctx, OpDeleteTask); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	if !ok {
		return notFound(OpDeleteTask)
	}
	delete(b.tasks, id)
	b.feed.Publish(model.Delete{Table: model.TableTasks, User: b.userID, Old: taskImage(t)})
	return nil
}

func (b *Backend) InsertSection(ctx context.Context, s model.Section) (model.Section, error) {
	if err := b.enter(ctx, OpInsertSection); err != nil {
		return model.Section{}, err
	}
	if err := model.ValidateSection(&s); err != nil {
		return model.Section{}, invalid(OpInsertSection, err)
	}
	id, err := idgen.Section()
	if err != nil {
		return model.Section{}, &backend.Error{Op: OpInsertSection, Code: backend.CodeInternal, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	s.ID, s.UserID, s.CreatedAt, s.UpdatedAt = id, b.userID, now, now
	b.sections[id] = s
	b.feed.Publish(model.Insert{Table: model.TableSections, User: b.userID, New: sectionImage(s)})
	return s, nil
}

func (b *Backend) UpdateSection(ctx context.Context, id string, p model.SectionPatch) error {
	if err := b.enter(ctx, OpUpdateSection); err != nil {
		return err
	}
	if err := model.ValidateSectionPatch(p); err != nil {
		return invalid(OpUpdateSection, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sections[id]
	if !ok {
		return notFound(OpUpdateSection)
	}
	p.Apply(&s)
	s.UpdatedAt = b.now()
	b.sections[id] = s
	b.feed.Publish(model.Update{Table: model.TableSections, User: b.userID, Old: sectionImage(s), New: sectionImage(s)})
	return nil
}

// DeleteSection removes the section and detaches its tasks, publishing an
// update for each detached task.
func (b *Backend) DeleteSection(ctx context.Context, id string) error {
	if err := b.enter(ctx, OpDeleteSection); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sections[id]
	if !ok {
		return notFound(OpDeleteSection)
	}
	now := b.now()
	for tid, t := range b.tasks {
		if t.SectionID != id {
			continue
		}
		old := taskImage(t)
		t.SectionID = ""
		t.UpdatedAt = now
		b.tasks[tid] = t
		b.feed.Publish(model.Update{Table: model.TableTasks, User: b.userID, Old: old, New: taskImage(t)})
	}
	delete(b.sections, id)
	b.feed.Publish(model.Delete{Table: model.TableSections, User: b.userID, Old: sectionImage(s)})
	return nil
}

// Close closes the feed.
func (b *Backend) Close() error { return b.feed.Close() }

func taskImage(t model.Task) model.RowImage {
	return model.RowImage{ID: t.ID, UserID: t.UserID, SectionID: t.SectionID}
}

func sectionImage(s model.Section) model.RowImage {
	return model.RowImage{ID: s.ID, UserID: s.UserID}
}

func notFound(op string) error {
	return &backend.Error{Op: op, Code: backend.CodeNotFound, Message: "no matching row"}
}

func invalid(op string, err error) error {
	return &backend.Error{Op: op, Code: backend.CodeInvalid, Message: err.Error(), Err: err}
}

func foreignKey(op, sectionID string) error {
	return &backend.Error{Op: op, Code: backend.CodeForeignKey, Message: "unknown section " + sectionID}
}
