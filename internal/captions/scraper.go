// Package captions turns the meeting page's live caption region into a stream
// of finalized utterances and wake events.
//
// The scraper polls the caption blocks on a fixed interval and tracks, per
// speaker, the text currently on screen. Text that stays unchanged for a full
// stability window is finalized; only the delta beyond the previously
// finalized text is emitted, so downstream consumers never see the same words
// twice. A caption that changes while the bot is speaking raises a barge-in.
package captions

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/notulaai/notula/internal/observe"
	"github.com/notulaai/notula/pkg/types"
)

const (
	// DefaultInterval is the poll period for the caption region.
	DefaultInterval = 1500 * time.Millisecond

	// DefaultStableTime is how long a caption must stay unchanged before it
	// is finalized.
	DefaultStableTime = 1500 * time.Millisecond

	eventQueueDepth = 64
)

// Block is one caption block as it appears in the page: a speaker display
// name and the text currently attributed to them.
type Block struct {
	Speaker string
	Text    string
}

// BlockSource provides the ordered caption blocks currently on screen.
// The browser driver implements it against the live DOM; tests feed
// synthetic block lists.
type BlockSource interface {
	// CaptionBlocks returns the blocks in display order. An error means the
	// caption region is not available this instant; the scraper skips the
	// tick and tries again.
	CaptionBlocks(ctx context.Context) ([]Block, error)
}

// Playback is the slice of the audio output manager the scraper consults for
// barge-in decisions.
type Playback interface {
	Playing() bool
	Stop()
}

// EventKind discriminates scraper events.
type EventKind int

const (
	// KindUtterance is a finalized caption delta.
	KindUtterance EventKind = iota
	// KindWake signals that a finalization contained the wake phrase. It is
	// always emitted before the corresponding KindUtterance event.
	KindWake
)

// Event is one scraper output. Events are produced by a single goroutine and
// preserve finalization order.
type Event struct {
	Kind      EventKind
	Utterance types.Utterance
}

// tracker is the per-speaker caption state. Owned solely by the scraper
// goroutine.
type tracker struct {
	text       string
	lastChange time.Time
	finalized  bool
}

// Option is a functional option for Scraper.
type Option func(*Scraper)

// WithInterval overrides the poll period.
func WithInterval(d time.Duration) Option {
	return func(s *Scraper) {
		s.interval = d
	}
}

// WithStableTime overrides the finalization stability window.
func WithStableTime(d time.Duration) Option {
	return func(s *Scraper) {
		s.stableTime = d
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// WithBargeIn registers a callback invoked when a speaker talks over active
// playback. The callback runs on the scraper goroutine and must not block.
func WithBargeIn(fn func()) Option {
	return func(s *Scraper) {
		s.onBargeIn = fn
	}
}

// WithMetrics wires caption event counters. Without it the scraper runs
// unmetered.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// Scraper is the caption state machine. Create with NewScraper, start with
// Run, consume Events. All mutable state is confined to the Run goroutine;
// IsSpeakerActive is the only cross-goroutine read and uses an atomic.
type Scraper struct {
	source     BlockSource
	player     Playback
	wake       *WakeDetector
	interval   time.Duration
	stableTime time.Duration
	start      time.Time
	now        func() time.Time
	onBargeIn  func()
	metrics    *observe.Metrics

	trackers      map[string]*tracker
	lastFinalized map[string]string
	finalized     []types.Utterance
	lastActivity  atomic.Int64 // unix nanos of the most recent caption change

	events chan Event
}

// NewScraper builds a scraper over source. meetingStart anchors utterance
// timestamps; a zero meetingStart anchors to the first tick instead, so
// timestamps start counting once the scraper actually runs (after admission)
// rather than when the capture was assembled. player may be nil when no
// playback exists (captions-only runs).
func NewScraper(source BlockSource, player Playback, wake *WakeDetector, meetingStart time.Time, opts ...Option) *Scraper {
	s := &Scraper{
		source:        source,
		player:        player,
		wake:          wake,
		interval:      DefaultInterval,
		stableTime:    DefaultStableTime,
		start:         meetingStart,
		now:           time.Now,
		trackers:      make(map[string]*tracker),
		lastFinalized: make(map[string]string),
		events:        make(chan Event, eventQueueDepth),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Events returns the scraper's output channel. It is closed when Run returns.
func (s *Scraper) Events() <-chan Event {
	return s.events
}

// Finalized returns all utterances emitted so far, in order. Call after Run
// has returned; the slice is the job's caption record.
func (s *Scraper) Finalized() []types.Utterance {
	return s.finalized
}

// IsSpeakerActive reports whether any caption changed within the last
// stability window. Safe to call from any goroutine.
func (s *Scraper) IsSpeakerActive() bool {
	last := s.lastActivity.Load()
	if last == 0 {
		return false
	}
	return s.now().Sub(time.Unix(0, last)) <= s.stableTime
}

// Run polls the caption region until ctx is cancelled, then closes the event
// channel and returns.
func (s *Scraper) Run(ctx context.Context) {
	defer close(s.events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs one scrape pass at the given instant. Exposed so tests can drive
// the state machine with synthetic clocks instead of sleeping.
func (s *Scraper) Tick(ctx context.Context, now time.Time) {
	if s.start.IsZero() {
		s.start = now
	}

	blocks, err := s.source.CaptionBlocks(ctx)
	if err != nil {
		slog.Debug("caption region unavailable, skipping tick", "err", err)
		return
	}

	for _, b := range mergeBlocks(blocks) {
		s.observe(ctx, b, now)
	}
}

// observe advances one speaker's tracker with the block seen this tick.
func (s *Scraper) observe(ctx context.Context, b Block, now time.Time) {
	tr, ok := s.trackers[b.Speaker]
	if !ok {
		s.trackers[b.Speaker] = &tracker{text: b.Text, lastChange: now}
		s.lastActivity.Store(now.UnixNano())
		return
	}

	if tr.text != b.Text {
		grew := strings.HasPrefix(b.Text, tr.text)
		tr.text = b.Text
		tr.lastChange = now
		tr.finalized = false
		s.lastActivity.Store(now.UnixNano())

		// The speaker kept talking while the bot holds the floor: cut the
		// bot off.
		if grew && s.player != nil && s.player.Playing() {
			slog.Info("barge-in: speaker talked over playback", "speaker", b.Speaker)
			s.player.Stop()
			s.metrics.RecordBargeIn(ctx)
			if s.onBargeIn != nil {
				s.onBargeIn()
			}
		}
		return
	}

	if !tr.finalized && now.Sub(tr.lastChange) > s.stableTime {
		s.finalize(ctx, b.Speaker, tr, now)
	}
}

// finalize emits the unfinalized delta of a stable caption.
func (s *Scraper) finalize(ctx context.Context, speaker string, tr *tracker, now time.Time) {
	tr.finalized = true

	delta := tr.text
	if prev := s.lastFinalized[speaker]; prev != "" && strings.HasPrefix(tr.text, prev) {
		delta = strings.TrimSpace(strings.TrimLeft(tr.text[len(prev):], ". "))
	}
	if delta == "" {
		return
	}

	ts := types.FormatTimestamp(now.Sub(s.start).Seconds())
	utt := types.Utterance{
		SpeakerName:    speaker,
		Text:           delta,
		StartTimestamp: ts,
		EndTimestamp:   ts,
	}
	s.lastFinalized[speaker] = tr.text
	s.finalized = append(s.finalized, utt)
	s.metrics.RecordFinalization(ctx)

	if s.wake != nil && s.wake.Match(delta) {
		s.metrics.RecordWake(ctx)
		s.emit(ctx, Event{Kind: KindWake, Utterance: utt})
	}
	s.emit(ctx, Event{Kind: KindUtterance, Utterance: utt})
}

func (s *Scraper) emit(ctx context.Context, e Event) {
	select {
	case s.events <- e:
	case <-ctx.Done():
	}
}

// mergeBlocks drops blocks with an empty speaker or text and concatenates
// consecutive blocks that share a speaker. Non-adjacent blocks stay separate
// even when the speaker matches.
func mergeBlocks(blocks []Block) []Block {
	merged := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		speaker := strings.TrimSpace(b.Speaker)
		text := strings.TrimSpace(b.Text)
		if speaker == "" || text == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Speaker == speaker {
			merged[n-1].Text += " " + text
			continue
		}
		merged = append(merged, Block{Speaker: speaker, Text: text})
	}
	return merged
}
