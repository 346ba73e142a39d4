package changefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend/memory"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/replica"
)

// recorder counts re-fetches.
type recorder struct {
	mu       sync.Mutex
	tasks    int
	sections int
}

func (r *recorder) FetchTasks(context.Context) error {
	r.mu.Lock()
	r.tasks++
	r.mu.Unlock()
	return nil
}

func (r *recorder) FetchSections(context.Context) error {
	r.mu.Lock()
	r.sections++
	r.mu.Unlock()
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks, r.sections
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRefetchFor(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    model.Change
		want refetchSet
	}{
		{"task insert", model.Insert{Table: model.TableTasks}, refetchTasks},
		{"task delete", model.Delete{Table: model.TableTasks}, refetchTasks},
		{"task update same section", model.Update{Table: model.TableTasks, Old: model.RowImage{SectionID: "a"}, New: model.RowImage{SectionID: "a"}}, refetchTasks},
		{"task update section changed", model.Update{Table: model.TableTasks, Old: model.RowImage{SectionID: "a"}}, refetchTasks | refetchSections},
		{"section insert", model.Insert{Table: model.TableSections}, refetchTasks | refetchSections},
		{"section delete", model.Delete{Table: model.TableSections}, refetchTasks | refetchSections},
	} {
		if got := refetchFor(tc.c); got != tc.want {
			t.Errorf("%s: refetchFor = %b, want %b", tc.name, got, tc.want)
		}
	}
}

func TestListener_DispatchesRefetches(t *testing.T) {
	feed := memory.NewFeed()
	rec := &recorder{}
	l := NewListener(feed, rec, nil, testLogger())
	defer l.Close()
	ctx := context.Background()

	if err := l.Subscribe(ctx, ChannelTasks, model.TableTasks); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := l.Subscribe(ctx, ChannelSections, model.TableSections); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	feed.Publish(model.Insert{Table: model.TableTasks, User: "u1", New: model.RowImage{ID: "tsk-1"}})
	waitFor(t, "task refetch", func() bool { n, _ := rec.counts(); return n == 1 })
	if _, s := rec.counts(); s != 0 {
		t.Fatalf("task insert refetched sections %d times", s)
	}

	feed.Publish(model.Update{Table: model.TableTasks, User: "u1", Old: model.RowImage{ID: "tsk-1", SectionID: "sec-1"}, New: model.RowImage{ID: "tsk-1"}})
	waitFor(t, "section refetch", func() bool { n, s := rec.counts(); return n == 2 && s == 1 })

	feed.Publish(model.Delete{Table: model.TableSections, User: "u1", Old: model.RowImage{ID: "sec-1"}})
	waitFor(t, "section change refetch", func() bool { n, s := rec.counts(); return n == 3 && s == 2 })
}

func TestListener_ResubscribeKeepsOneSubscription(t *testing.T) {
	feed := memory.NewFeed()
	l := NewListener(feed, &recorder{}, nil, testLogger())
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Subscribe(ctx, ChannelTasks, model.TableTasks); err != nil {
			t.Fatalf("Subscribe #%d: %v", i, err)
		}
	}
	if n := feed.Subscribers(model.TableTasks); n != 1 {
		t.Fatalf("live subscriptions = %d, want 1", n)
	}
	if st := l.State(ChannelTasks); st != StateActive {
		t.Fatalf("state = %v", st)
	}

	l.Unsubscribe(ChannelTasks)
	if st := l.State(ChannelTasks); st != StateUnsubscribed {
		t.Fatalf("state after Unsubscribe = %v", st)
	}
	waitFor(t, "feed subscription removed", func() bool { return feed.Subscribers(model.TableTasks) == 0 })
}

func TestListener_ReportsLostSubscription(t *testing.T) {
	feed := memory.NewFeed()
	rec := &recorder{}
	type report struct {
		channel string
		table   model.Table
		err     error
	}
	reports := make(chan report, 1)
	l := NewListener(feed, rec, func(channel string, table model.Table, err error) {
		reports <- report{channel, table, err}
	}, testLogger())
	defer l.Close()
	ctx := context.Background()

	if err := l.Subscribe(ctx, ChannelSections, model.TableSections); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	feed.Drop(model.TableSections)

	select {
	case r := <-reports:
		if r.channel != ChannelSections || r.table != model.TableSections || !errors.Is(r.err, ErrSubscriptionLost) {
			t.Fatalf("report = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
	if st := l.State(ChannelSections); st != StateError {
		t.Fatalf("state = %v, want error", st)
	}
	// No retry from inside the listener.
	time.Sleep(20 * time.Millisecond)
	if n := feed.Subscribers(model.TableSections); n != 0 {
		t.Fatalf("listener re-subscribed on its own: %d subscribers", n)
	}

	// The caller re-subscribes from the error callback's owner.
	if err := l.Subscribe(ctx, ChannelSections, model.TableSections); err != nil {
		t.Fatalf("re-Subscribe: %v", err)
	}
	if st := l.State(ChannelSections); st != StateActive {
		t.Fatalf("state after re-subscribe = %v", st)
	}
	l.Refresh(ctx, model.TableSections)
	if n, s := rec.counts(); n != 1 || s != 1 {
		t.Fatalf("Refresh counts = %d tasks, %d sections", n, s)
	}
}

func TestListener_SubscribeErrorLeavesUnsubscribed(t *testing.T) {
	feed := memory.NewFeed()
	_ = feed.Close()
	l := NewListener(feed, &recorder{}, nil, testLogger())
	if err := l.Subscribe(context.Background(), ChannelTasks, model.TableTasks); err == nil {
		t.Fatal("expected error from closed feed")
	}
	if st := l.State(ChannelTasks); st != StateUnsubscribed {
		t.Fatalf("state = %v", st)
	}
}

func TestListener_EndToEndWithFetcher(t *testing.T) {
	mem := memory.New("u1")
	store := replica.New()
	f := NewFetcher(store, mem, RetryPolicy{Attempts: 1}, testLogger())
	l := NewListener(mem.Feed(), f, nil, testLogger())
	defer l.Close()
	ctx := context.Background()

	if err := l.Subscribe(ctx, ChannelTasks, model.TableTasks); err != nil {
		t.Fatal(err)
	}
	if err := l.Subscribe(ctx, ChannelSections, model.TableSections); err != nil {
		t.Fatal(err)
	}

	sec, err := mem.InsertSection(ctx, model.Section{Name: "Work"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mem.InsertTask(ctx, model.Task{Title: "remote", Quadrant: 2, SectionID: sec.ID}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "remote rows", func() bool { return store.Tasks.Len() == 1 && store.Sections.Len() == 1 })

	if err := mem.DeleteSection(ctx, sec.ID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "section removal", func() bool {
		list := store.Tasks.List()
		return store.Sections.Len() == 0 && len(list) == 1 && list[0].SectionID == ""
	})
}

// gatedFeed holds Subscribe until release is closed.
type gatedFeed struct {
	*memory.Feed
	entered chan struct{}
	release chan struct{}
}

func (f *gatedFeed) Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error) {
	close(f.entered)
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return f.Feed.Subscribe(ctx, table)
}

func TestListener_StateWhileSubscribing(t *testing.T) {
	feed := &gatedFeed{Feed: memory.NewFeed(), entered: make(chan struct{}), release: make(chan struct{})}
	l := NewListener(feed, &recorder{}, nil, testLogger())
	defer l.Close()

	errc := make(chan error, 1)
	go func() { errc <- l.Subscribe(context.Background(), ChannelTasks, model.TableTasks) }()
	<-feed.entered
	if st := l.State(ChannelTasks); st != StateSubscribing {
		t.Fatalf("state while the feed is subscribing = %v, want subscribing", st)
	}

	close(feed.release)
	if err := <-errc; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if st := l.State(ChannelTasks); st != StateActive {
		t.Fatalf("state = %v, want active", st)
	}
}

func TestListener_UnsubscribeWhileSubscribing(t *testing.T) {
	feed := &gatedFeed{Feed: memory.NewFeed(), entered: make(chan struct{}), release: make(chan struct{})}
	l := NewListener(feed, &recorder{}, nil, testLogger())
	defer l.Close()

	errc := make(chan error, 1)
	go func() { errc <- l.Subscribe(context.Background(), ChannelTasks, model.TableTasks) }()
	<-feed.entered
	l.Unsubscribe(ChannelTasks)

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Subscribe err = %v, want context.Canceled", err)
	}
	if st := l.State(ChannelTasks); st != StateUnsubscribed {
		t.Fatalf("state = %v, want unsubscribed", st)
	}
	if n := feed.Subscribers(model.TableTasks); n != 0 {
		t.Fatalf("live subscriptions = %d, want 0", n)
	}
}
