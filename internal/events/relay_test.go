package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// chanFeed is a backend.Feed backed by one channel per table.
type chanFeed struct {
	chans map[model.Table]chan model.Change
}

func newChanFeed() *chanFeed {
	return &chanFeed{chans: map[model.Table]chan model.Change{
		model.TableTasks:    make(chan model.Change, 4),
		model.TableSections: make(chan model.Change, 4),
	}}
}

func (f *chanFeed) Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error) {
	return f.chans[table], func() {}, nil
}

func (f *chanFeed) Close() error { return nil }

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	got  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{topic, event})
	p.mu.Unlock()
	p.got <- struct{}{}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestRelay_ForwardsToOwnerTopic(t *testing.T) {
	src := newChanFeed()
	pub := &recordingPublisher{got: make(chan struct{}, 4)}
	relay := NewRelay(src, pub, Subject, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	src.chans[model.TableTasks] <- model.Insert{Table: model.TableTasks, User: "alice", New: model.RowImage{ID: "tsk-1"}}
	src.chans[model.TableSections] <- model.Delete{Table: model.TableSections, User: "bob", Old: model.RowImage{ID: "sec-1"}}

	for i := 0; i < 2; i++ {
		select {
		case <-pub.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publish %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	topics := map[string]bool{}
	for _, m := range pub.msgs {
		topics[m.topic] = true
	}
	if !topics["quadrant.alice.tasks"] || !topics["quadrant.bob.sections"] {
		t.Fatalf("topics = %v", topics)
	}
}

func TestRelay_SourceClosedIsError(t *testing.T) {
	src := newChanFeed()
	close(src.chans[model.TableTasks])
	relay := NewRelay(src, &NoopPublisher{}, Subject, testLogger())

	if err := relay.Run(context.Background()); err == nil {
		t.Fatal("expected error when the source closes")
	}
}

func TestRelay_EndToEndOverNATS(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()
	feed, err := NewNATSFeed(url, "u1", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer feed.Close()

	ch, cancelSub, err := feed.Subscribe(context.Background(), model.TableTasks)
	if err != nil {
		t.Fatal(err)
	}
	defer cancelSub()

	src := newChanFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewRelay(src, pub, Subject, testLogger()).Run(ctx) }()

	want := model.Update{Table: model.TableTasks, User: "u1", Old: model.RowImage{ID: "tsk-1", SectionID: "sec-1"}, New: model.RowImage{ID: "tsk-1"}}
	src.chans[model.TableTasks] <- want

	if got := nextChange(t, ch); got != want {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
