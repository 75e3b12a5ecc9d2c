package captions

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeSource returns a scripted sequence of block lists, one per tick.
type fakeSource struct {
	mu    sync.Mutex
	ticks [][]Block
	err   error
	pos   int
}

func (f *fakeSource) set(blocks []Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = [][]Block{blocks}
	f.pos = 0
}

func (f *fakeSource) CaptionBlocks(_ context.Context) ([]Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ticks) == 0 {
		return nil, nil
	}
	blocks := f.ticks[f.pos]
	if f.pos < len(f.ticks)-1 {
		f.pos++
	}
	return blocks, nil
}

// fakePlayer records Stop calls for barge-in assertions.
type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	stops   int
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func drainEvents(s *Scraper) []Event {
	var out []Event
	for {
		select {
		case e := <-s.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func newTestScraper(src BlockSource, player Playback, opts ...Option) (*Scraper, time.Time) {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	base := []Option{WithStableTime(DefaultStableTime)}
	s := NewScraper(src, player, NewWakeDetector("hello meeting assistant"), start, append(base, opts...)...)
	return s, start
}

func TestFinalizationAfterStability(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "we should ship on friday"}})
	s.Tick(ctx, start.Add(1500*time.Millisecond)) // first sight, no event
	s.Tick(ctx, start.Add(3 * time.Second))       // stable < stableTime after first sight? elapsed 1.5s: not > 1.5s
	s.Tick(ctx, start.Add(4 * time.Second))       // now stable long enough

	events := drainEvents(s)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Kind != KindUtterance {
		t.Errorf("Kind = %v, want KindUtterance", e.Kind)
	}
	if e.Utterance.SpeakerName != "Ada" || e.Utterance.Text != "we should ship on friday" {
		t.Errorf("unexpected utterance %+v", e.Utterance)
	}
	if e.Utterance.StartTimestamp != "00:04" {
		t.Errorf("StartTimestamp = %q, want 00:04", e.Utterance.StartTimestamp)
	}
}

func TestZeroStartAnchorsOnFirstTick(t *testing.T) {
	src := &fakeSource{}
	s := NewScraper(src, nil, NewWakeDetector("hello meeting assistant"), time.Time{})
	ctx := context.Background()

	// The scraper was built well before it starts ticking (the lobby wait).
	// Timestamps must count from the first tick, not from construction.
	first := time.Date(2026, 3, 4, 10, 0, 40, 0, time.UTC)

	src.set([]Block{{Speaker: "Ada", Text: "we should ship on friday"}})
	s.Tick(ctx, first)
	s.Tick(ctx, first.Add(4*time.Second))

	events := drainEvents(s)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if got := events[0].Utterance.StartTimestamp; got != "00:04" {
		t.Errorf("StartTimestamp = %q, want 00:04 relative to the first tick", got)
	}
}

func TestNoFinalizationWhenReplacedBeforeStable(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "we should"}})
	s.Tick(ctx, start.Add(1*time.Second))
	src.set([]Block{{Speaker: "Ada", Text: "we should ship"}})
	s.Tick(ctx, start.Add(2*time.Second))
	src.set([]Block{{Speaker: "Ada", Text: "we should ship friday"}})
	s.Tick(ctx, start.Add(3*time.Second))

	if events := drainEvents(s); len(events) != 0 {
		t.Fatalf("got %d events before stability, want 0", len(events))
	}
}

func TestDeltaFinalization(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "we should ship friday"}})
	s.Tick(ctx, start.Add(1*time.Second))
	s.Tick(ctx, start.Add(3*time.Second)) // finalize full text

	src.set([]Block{{Speaker: "Ada", Text: "we should ship friday. after the demo"}})
	s.Tick(ctx, start.Add(4*time.Second))
	s.Tick(ctx, start.Add(6*time.Second)) // finalize delta only

	events := drainEvents(s)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Utterance.Text != "we should ship friday" {
		t.Errorf("first delta = %q", events[0].Utterance.Text)
	}
	if events[1].Utterance.Text != "after the demo" {
		t.Errorf("second delta = %q, want leading '. ' stripped", events[1].Utterance.Text)
	}
}

func TestNoDuplicateFinalization(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "stable text"}})
	s.Tick(ctx, start.Add(1*time.Second))
	s.Tick(ctx, start.Add(3*time.Second))
	s.Tick(ctx, start.Add(5*time.Second))
	s.Tick(ctx, start.Add(7*time.Second))

	if events := drainEvents(s); len(events) != 1 {
		t.Fatalf("got %d events for one stable text, want 1", len(events))
	}
}

func TestNonPrefixRestartEmitsFullText(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "first thought"}})
	s.Tick(ctx, start.Add(1*time.Second))
	s.Tick(ctx, start.Add(3*time.Second))

	src.set([]Block{{Speaker: "Ada", Text: "completely new sentence"}})
	s.Tick(ctx, start.Add(5*time.Second))
	s.Tick(ctx, start.Add(7*time.Second))

	events := drainEvents(s)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Utterance.Text != "completely new sentence" {
		t.Errorf("restart delta = %q, want full text", events[1].Utterance.Text)
	}
}

func TestWakeEventPrecedesUtterance(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Bob", Text: "hello meeting assistant"}})
	s.Tick(ctx, start.Add(1*time.Second))
	s.Tick(ctx, start.Add(3*time.Second))

	events := drainEvents(s)
	if len(events) != 2 {
		t.Fatalf("got %d events, want wake + utterance", len(events))
	}
	if events[0].Kind != KindWake {
		t.Errorf("first event kind = %v, want KindWake", events[0].Kind)
	}
	if events[1].Kind != KindUtterance {
		t.Errorf("second event kind = %v, want KindUtterance", events[1].Kind)
	}
}

func TestBargeInOnGrowthWhilePlaying(t *testing.T) {
	src := &fakeSource{}
	player := &fakePlayer{playing: true}
	bargeIns := 0
	s, start := newTestScraper(src, player, WithBargeIn(func() { bargeIns++ }))
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "so about"}})
	s.Tick(ctx, start.Add(1*time.Second))

	src.set([]Block{{Speaker: "Ada", Text: "so about the budget"}})
	s.Tick(ctx, start.Add(2*time.Second))

	if player.stopCount() != 1 {
		t.Errorf("Stop called %d times, want 1", player.stopCount())
	}
	if bargeIns != 1 {
		t.Errorf("barge-in callback fired %d times, want 1", bargeIns)
	}
}

func TestNoBargeInWhenIdle(t *testing.T) {
	src := &fakeSource{}
	player := &fakePlayer{playing: false}
	s, start := newTestScraper(src, player)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "so about"}})
	s.Tick(ctx, start.Add(1*time.Second))
	src.set([]Block{{Speaker: "Ada", Text: "so about the budget"}})
	s.Tick(ctx, start.Add(2*time.Second))

	if player.stopCount() != 0 {
		t.Errorf("Stop called %d times while idle, want 0", player.stopCount())
	}
}

func TestMergeBlocks(t *testing.T) {
	in := []Block{
		{Speaker: "Ada", Text: "part one"},
		{Speaker: "Ada", Text: "part two"},
		{Speaker: "Bob", Text: "reply"},
		{Speaker: "Ada", Text: "part three"},
		{Speaker: "", Text: "orphan"},
		{Speaker: "Eve", Text: "  "},
	}
	got := mergeBlocks(in)
	want := []Block{
		{Speaker: "Ada", Text: "part one part two"},
		{Speaker: "Bob", Text: "reply"},
		{Speaker: "Ada", Text: "part three"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIsSpeakerActive(t *testing.T) {
	src := &fakeSource{}
	current := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	s := NewScraper(src, nil, nil, current, WithClock(clock))
	ctx := context.Background()

	if s.IsSpeakerActive() {
		t.Error("active before any caption")
	}

	src.set([]Block{{Speaker: "Ada", Text: "talking"}})
	s.Tick(ctx, current)
	if !s.IsSpeakerActive() {
		t.Error("not active right after a caption change")
	}

	current = current.Add(10 * time.Second)
	if s.IsSpeakerActive() {
		t.Error("still active long after the last change")
	}
}

func TestFinalizedAccumulates(t *testing.T) {
	src := &fakeSource{}
	s, start := newTestScraper(src, nil)
	ctx := context.Background()

	src.set([]Block{{Speaker: "Ada", Text: "one"}})
	s.Tick(ctx, start.Add(1*time.Second))
	s.Tick(ctx, start.Add(3*time.Second))
	src.set([]Block{{Speaker: "Bob", Text: "two"}})
	s.Tick(ctx, start.Add(4*time.Second))
	s.Tick(ctx, start.Add(6*time.Second))
	drainEvents(s)

	utts := s.Finalized()
	if len(utts) != 2 {
		t.Fatalf("Finalized has %d entries, want 2", len(utts))
	}
	if utts[0].SpeakerName != "Ada" || utts[1].SpeakerName != "Bob" {
		t.Errorf("unexpected order: %+v", utts)
	}
}
