package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/backend/memory"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/replica"
)

var (
	t0   = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	boom = &backend.Error{Op: "test", Code: backend.CodeUnavailable, Message: "boom"}
)

// loadingRefetcher reloads the store straight from a backend.
type loadingRefetcher struct {
	store *replica.Store
	be    backend.Backend
	calls atomic.Int32
	err   error
}

func (r *loadingRefetcher) RefetchAll(ctx context.Context) error {
	r.calls.Add(1)
	if r.err != nil {
		return r.err
	}
	tasks, err := r.be.ListTasks(ctx)
	if err != nil {
		return err
	}
	sections, err := r.be.ListSections(ctx)
	if err != nil {
		return err
	}
	r.store.Tasks.ReplaceAll(tasks)
	r.store.Sections.ReplaceAll(sections)
	return nil
}

type fixture struct {
	gw      *Gateway
	store   *replica.Store
	be      *memory.Backend
	refetch *loadingRefetcher
}

func seedTasks() []model.Task {
	due := t0.Add(48 * time.Hour)
	return []model.Task{
		{ID: "tsk-1", UserID: "u1", Title: "Write report", Description: "Q3", DueAt: &due, Quadrant: model.QuadrantSchedule, SectionID: "sec-1", CreatedAt: t0},
		{ID: "tsk-2", UserID: "u1", Title: "Call plumber", Quadrant: model.QuadrantDoFirst, CreatedAt: t0.Add(time.Minute)},
	}
}

func seedSections() []model.Section {
	return []model.Section{
		{ID: "sec-1", UserID: "u1", Name: "Work", Order: 0, CreatedAt: t0},
		{ID: "sec-2", UserID: "u1", Name: "Home", Order: 1, CreatedAt: t0},
	}
}

func newFixture(t *testing.T, be backend.Backend) *fixture {
	t.Helper()
	mem := memory.New("u1")
	mem.Seed(seedTasks(), seedSections())
	if be == nil {
		be = mem
	}
	store := replica.New()
	store.Tasks.ReplaceAll(seedTasks())
	store.Sections.ReplaceAll(seedSections())
	ref := &loadingRefetcher{store: store, be: be}
	gw := New(store, be, ref, slog.New(slog.NewTextHandler(io.Discard, nil)))
	gw.now = func() time.Time { return t0.Add(time.Hour) }
	return &fixture{gw: gw, store: store, be: mem, refetch: ref}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateTask_TempRecordReplacedByStoredOne(t *testing.T) {
	f := newFixture(t, nil)
	release := f.be.Hold(memory.OpInsertTask)

	type result struct {
		task model.Task
		err  error
	}
	done := make(chan result, 1)
	go func() {
		task, err := f.gw.CreateTask(context.Background(), model.Task{Title: "  Buy milk ", Quadrant: model.QuadrantDelegate})
		done <- result{task, err}
	}()

	var tempID string
	waitFor(t, func() bool {
		for _, tk := range f.store.Tasks.List() {
			if strings.HasPrefix(tk.ID, "tmp-") {
				tempID = tk.ID
				return true
			}
		}
		return false
	})
	temp, _ := f.store.Tasks.Get(tempID)
	if temp.Title != "Buy milk" || temp.Quadrant != model.QuadrantDelegate {
		t.Fatalf("optimistic record = %+v", temp)
	}

	release()
	res := <-done
	if res.err != nil {
		t.Fatalf("CreateTask: %v", res.err)
	}
	if !strings.HasPrefix(res.task.ID, "tsk-") {
		t.Fatalf("stored id = %q", res.task.ID)
	}
	if _, ok := f.store.Tasks.Get(tempID); ok {
		t.Error("temporary record still present")
	}
	if got, ok := f.store.Tasks.Get(res.task.ID); !ok || got.Title != "Buy milk" {
		t.Errorf("stored record missing from store: %+v", got)
	}
	if n := f.store.Tasks.Len(); n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}

func TestCreateTask_FailureRemovesTempRecord(t *testing.T) {
	f := newFixture(t, nil)
	before := f.store.Snapshot()
	f.be.Fail(memory.OpInsertTask, boom)

	_, err := f.gw.CreateTask(context.Background(), model.Task{Title: "Doomed", Quadrant: model.QuadrantDoFirst})
	var me *MutationError
	if !errors.As(err, &me) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want MutationError wrapping boom", err)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("store changed after failed create:\n before %+v\n after  %+v", before, after)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture(t, nil)
	for _, draft := range []model.Task{
		{Title: "", Quadrant: model.QuadrantDoFirst},
		{Title: "x", Quadrant: 0},
	} {
		if _, err := f.gw.CreateTask(context.Background(), draft); err == nil {
			t.Errorf("CreateTask(%+v) succeeded", draft)
		}
	}
	if _, err := f.gw.CreateTask(context.Background(), model.Task{Title: "x", Quadrant: 1, SectionID: "sec-nope"}); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("unknown section: %v", err)
	}
	if n := f.be.Calls(memory.OpInsertTask); n != 0 {
		t.Errorf("backend called %d times for invalid drafts", n)
	}
}

func TestUpdateTask_FailureRestoresPriorState(t *testing.T) {
	f := newFixture(t, nil)
	before := f.store.Snapshot()
	f.be.Fail(memory.OpUpdateTask, boom)

	newDue := t0.Add(72 * time.Hour)
	err := f.gw.UpdateTask(context.Background(), "tsk-1", model.TaskPatch{
		Title:       model.Ptr("Rewrite report"),
		Description: model.Ptr(""),
		DueAt:       &newDue,
		Completed:   model.Ptr(true),
		Quadrant:    model.Ptr(model.QuadrantDontDo),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("rollback mismatch:\n before %+v\n after  %+v", before, after)
	}
	if n := f.refetch.calls.Load(); n != 0 {
		t.Errorf("refetched %d times after a failed update", n)
	}
}

func TestToggleComplete_ChangesOnlyTheFlag(t *testing.T) {
	f := newFixture(t, nil)
	before, _ := f.store.Tasks.Get("tsk-1")

	if err := f.gw.ToggleComplete(context.Background(), "tsk-1", true); err != nil {
		t.Fatalf("ToggleComplete: %v", err)
	}
	after, _ := f.store.Tasks.Get("tsk-1")
	want := before
	want.Completed = true
	if !reflect.DeepEqual(after, want) {
		t.Fatalf("task after toggle:\n got  %+v\n want %+v", after, want)
	}
	if stored, _ := f.be.Task("tsk-1"); !stored.Completed {
		t.Error("remote task not completed")
	}
}

func TestMoveTask_AndBack(t *testing.T) {
	f := newFixture(t, nil)
	before := f.store.Snapshot()
	ctx := context.Background()

	if err := f.gw.MoveTask(ctx, "tsk-2", model.QuadrantDontDo); err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	if tk, _ := f.store.Tasks.Get("tsk-2"); tk.Quadrant != model.QuadrantDontDo {
		t.Fatalf("quadrant = %d", tk.Quadrant)
	}
	if err := f.gw.MoveTask(ctx, "tsk-2", model.QuadrantDoFirst); err != nil {
		t.Fatalf("MoveTask back: %v", err)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("move and back changed the store:\n before %+v\n after  %+v", before, after)
	}

	calls := f.be.Calls(memory.OpUpdateTask)
	if err := f.gw.MoveTask(ctx, "tsk-2", model.QuadrantDoFirst); err != nil {
		t.Fatalf("MoveTask same quadrant: %v", err)
	}
	if got := f.be.Calls(memory.OpUpdateTask); got != calls {
		t.Errorf("same-quadrant move reached the backend")
	}
}

func TestUnknownEntity_NoRemoteCall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	before := f.store.Snapshot()

	for name, err := range map[string]error{
		"toggle":         f.gw.ToggleComplete(ctx, "tsk-nope", true),
		"move":           f.gw.MoveTask(ctx, "tsk-nope", model.QuadrantDoFirst),
		"delete":         f.gw.DeleteTask(ctx, "tsk-nope"),
		"section rename": f.gw.UpdateSection(ctx, "sec-nope", model.SectionPatch{Name: model.Ptr("x")}),
		"section delete": f.gw.DeleteSection(ctx, "sec-nope"),
	} {
		if !errors.Is(err, ErrUnknownTask) && !errors.Is(err, ErrUnknownSection) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if err := f.gw.SetTaskSection(ctx, "tsk-1", "sec-nope"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("assign to unknown section: %v", err)
	}
	for _, op := range []string{memory.OpUpdateTask, memory.OpDeleteTask, memory.OpUpdateSection, memory.OpDeleteSection} {
		if n := f.be.Calls(op); n != 0 {
			t.Errorf("%s called %d times", op, n)
		}
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatal("store changed")
	}
}

func TestPendingRecordRejected(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.gw.ToggleComplete(context.Background(), "tmp-abc", true); !errors.Is(err, ErrPending) {
		t.Fatalf("err = %v, want ErrPending", err)
	}
}

// scriptedBackend blocks each UpdateTask call until its step is released and
// then fails it or passes it through.
type scriptedBackend struct {
	*memory.Backend
	mu      sync.Mutex
	steps   []step
	entered chan struct{}
}

type step struct {
	release chan struct{}
	err     error
}

func (s *scriptedBackend) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	s.mu.Lock()
	st := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()
	s.entered <- struct{}{}
	<-st.release
	if st.err != nil {
		return st.err
	}
	return s.Backend.UpdateTask(ctx, id, p)
}

func TestStaleRollbackIsDiscarded(t *testing.T) {
	first := step{release: make(chan struct{}), err: boom}
	second := step{release: make(chan struct{})}
	mem := memory.New("u1")
	mem.Seed(seedTasks(), seedSections())
	sb := &scriptedBackend{Backend: mem, steps: []step{first, second}, entered: make(chan struct{}, 2)}
	f := newFixture(t, sb)
	ctx := context.Background()

	errA := make(chan error, 1)
	go func() { errA <- f.gw.MoveTask(ctx, "tsk-2", model.QuadrantSchedule) }()
	<-sb.entered
	errB := make(chan error, 1)
	go func() { errB <- f.gw.MoveTask(ctx, "tsk-2", model.QuadrantDelegate) }()
	<-sb.entered

	close(second.release)
	if err := <-errB; err != nil {
		t.Fatalf("second move: %v", err)
	}
	close(first.release)
	if err := <-errA; !errors.Is(err, boom) {
		t.Fatalf("first move err = %v, want boom", err)
	}

	tk, _ := f.store.Tasks.Get("tsk-2")
	if tk.Quadrant != model.QuadrantDelegate {
		t.Fatalf("quadrant = %d, want %d (stale rollback applied)", tk.Quadrant, model.QuadrantDelegate)
	}
}

func TestLatestFailureRollsBackToPreviousOptimisticState(t *testing.T) {
	first := step{release: make(chan struct{})}
	second := step{release: make(chan struct{}), err: boom}
	mem := memory.New("u1")
	mem.Seed(seedTasks(), seedSections())
	sb := &scriptedBackend{Backend: mem, steps: []step{first, second}, entered: make(chan struct{}, 2)}
	f := newFixture(t, sb)
	ctx := context.Background()

	errA := make(chan error, 1)
	go func() { errA <- f.gw.MoveTask(ctx, "tsk-2", model.QuadrantSchedule) }()
	<-sb.entered
	errB := make(chan error, 1)
	go func() { errB <- f.gw.MoveTask(ctx, "tsk-2", model.QuadrantDelegate) }()
	<-sb.entered

	close(second.release)
	if err := <-errB; !errors.Is(err, boom) {
		t.Fatalf("second move err = %v", err)
	}
	close(first.release)
	if err := <-errA; err != nil {
		t.Fatalf("first move: %v", err)
	}
	tk, _ := f.store.Tasks.Get("tsk-2")
	if tk.Quadrant != model.QuadrantSchedule {
		t.Fatalf("quadrant = %d, want %d", tk.Quadrant, model.QuadrantSchedule)
	}
}

func TestDeleteTask(t *testing.T) {
	t.Run("failure restores the task", func(t *testing.T) {
		f := newFixture(t, nil)
		before := f.store.Snapshot()
		f.be.Fail(memory.OpDeleteTask, boom)
		if err := f.gw.DeleteTask(context.Background(), "tsk-1"); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
			t.Fatal("task not restored")
		}
	})
	t.Run("already gone remotely counts as deleted", func(t *testing.T) {
		f := newFixture(t, nil)
		f.be.Fail(memory.OpDeleteTask, &backend.Error{Op: memory.OpDeleteTask, Code: backend.CodeNotFound})
		if err := f.gw.DeleteTask(context.Background(), "tsk-1"); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		if _, ok := f.store.Tasks.Get("tsk-1"); ok {
			t.Fatal("task restored")
		}
	})
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		if err := f.gw.DeleteTask(context.Background(), "tsk-1"); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		if _, ok := f.be.Task("tsk-1"); ok {
			t.Fatal("task still stored remotely")
		}
	})
}

func TestSetTaskSection_RefetchesBothCollections(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.gw.SetTaskSection(context.Background(), "tsk-2", "sec-2"); err != nil {
		t.Fatalf("SetTaskSection: %v", err)
	}
	if n := f.refetch.calls.Load(); n != 1 {
		t.Fatalf("refetch calls = %d, want 1", n)
	}
	if tk, _ := f.store.Tasks.Get("tsk-2"); tk.SectionID != "sec-2" {
		t.Fatalf("section = %q", tk.SectionID)
	}

	// Plain field edits stay local.
	if err := f.gw.UpdateTask(context.Background(), "tsk-2", model.TaskPatch{Title: model.Ptr("Call the plumber")}); err != nil {
		t.Fatal(err)
	}
	if n := f.refetch.calls.Load(); n != 1 {
		t.Fatalf("refetch calls = %d after title edit", n)
	}
}

func TestSetTaskSection_RefetchErrorIsNotReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.refetch.err = errors.New("network down")
	if err := f.gw.SetTaskSection(context.Background(), "tsk-1", ""); err != nil {
		t.Fatalf("SetTaskSection: %v", err)
	}
	if tk, _ := f.store.Tasks.Get("tsk-1"); tk.SectionID != "" {
		t.Fatalf("optimistic detach lost: %q", tk.SectionID)
	}
}

func TestCreateSection(t *testing.T) {
	t.Run("appended after existing sections", func(t *testing.T) {
		f := newFixture(t, nil)
		s, err := f.gw.CreateSection(context.Background(), "Errands")
		if err != nil {
			t.Fatalf("CreateSection: %v", err)
		}
		if s.Order != 2 || !strings.HasPrefix(s.ID, "sec-") {
			t.Fatalf("section = %+v", s)
		}
		list := f.store.Sections.List()
		if len(list) != 3 || list[2].ID != s.ID {
			t.Fatalf("sections = %+v", list)
		}
	})
	t.Run("appended after reordered sections", func(t *testing.T) {
		f := newFixture(t, nil)
		if err := f.gw.UpdateSection(context.Background(), "sec-2", model.SectionPatch{Order: model.Ptr(7)}); err != nil {
			t.Fatalf("UpdateSection: %v", err)
		}
		s, err := f.gw.CreateSection(context.Background(), "New")
		if err != nil {
			t.Fatalf("CreateSection: %v", err)
		}
		if s.Order != 8 {
			t.Fatalf("order = %d, want 8", s.Order)
		}
		list := f.store.Sections.List()
		if last := list[len(list)-1]; last.ID != s.ID {
			t.Fatalf("created section not last: %+v", list)
		}
	})
	t.Run("first section starts at zero", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.Sections.ReplaceAll(nil)
		s, err := f.gw.CreateSection(context.Background(), "Only")
		if err != nil {
			t.Fatalf("CreateSection: %v", err)
		}
		if s.Order != 0 {
			t.Fatalf("order = %d, want 0", s.Order)
		}
	})
	t.Run("failure removes the temporary section", func(t *testing.T) {
		f := newFixture(t, nil)
		before := f.store.Snapshot()
		f.be.Fail(memory.OpInsertSection, boom)
		if _, err := f.gw.CreateSection(context.Background(), "Errands"); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
			t.Fatal("temporary section left behind")
		}
	})
	t.Run("blank name rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.gw.CreateSection(context.Background(), "   "); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestUpdateSection_FailureRestores(t *testing.T) {
	f := newFixture(t, nil)
	before := f.store.Snapshot()
	f.be.Fail(memory.OpUpdateSection, boom)
	err := f.gw.UpdateSection(context.Background(), "sec-1", model.SectionPatch{Name: model.Ptr("Office"), Order: model.Ptr(5)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatal("section not restored")
	}
}

func TestDeleteSection(t *testing.T) {
	t.Run("refetch shows tasks without a section", func(t *testing.T) {
		f := newFixture(t, nil)
		if err := f.gw.DeleteSection(context.Background(), "sec-1"); err != nil {
			t.Fatalf("DeleteSection: %v", err)
		}
		if n := f.refetch.calls.Load(); n != 1 {
			t.Fatalf("refetch calls = %d", n)
		}
		if _, ok := f.store.Sections.Get("sec-1"); ok {
			t.Fatal("section still present")
		}
		if tk, _ := f.store.Tasks.Get("tsk-1"); tk.SectionID != "" {
			t.Fatalf("task still references %q", tk.SectionID)
		}
	})
	t.Run("failure restores the section without refetch", func(t *testing.T) {
		f := newFixture(t, nil)
		before := f.store.Snapshot()
		f.be.Fail(memory.OpDeleteSection, boom)
		if err := f.gw.DeleteSection(context.Background(), "sec-1"); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
			t.Fatal("section not restored")
		}
		if n := f.refetch.calls.Load(); n != 0 {
			t.Fatalf("refetch calls = %d", n)
		}
	})
}

func TestClosedStoreIgnoresLateResults(t *testing.T) {
	f := newFixture(t, nil)
	release := f.be.Hold(memory.OpInsertTask)
	done := make(chan error, 1)
	go func() {
		_, err := f.gw.CreateTask(context.Background(), model.Task{Title: "late", Quadrant: 1})
		done <- err
	}()
	waitFor(t, func() bool { return f.store.Tasks.Len() == 3 })
	f.store.Close()
	before := f.store.Snapshot()
	release()
	if err := <-done; err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if after := f.store.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatal("closed store modified by a late result")
	}
}
