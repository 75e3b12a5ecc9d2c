package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notulaai/notula/internal/captions"
	asrmock "github.com/notulaai/notula/pkg/provider/asr/mock"
	storemock "github.com/notulaai/notula/pkg/store/mock"
	"github.com/notulaai/notula/pkg/types"
)

type fakeBrowser struct {
	joinErr      error
	admissionErr error
	captionsErr  error
	closed       bool
	left         bool
}

func (b *fakeBrowser) Join(_ context.Context, _, _ string) error { return b.joinErr }
func (b *fakeBrowser) WaitForAdmission(_ context.Context, _ time.Duration) error {
	return b.admissionErr
}
func (b *fakeBrowser) EnableCaptions(_ context.Context) error { return b.captionsErr }
func (b *fakeBrowser) KeepAlive(ctx context.Context) error {
	// The meeting "ends" almost immediately.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil
	}
}
func (b *fakeBrowser) Leave(_ context.Context) { b.left = true }
func (b *fakeBrowser) Close()                  { b.closed = true }

type fakeScraper struct {
	events    chan captions.Event
	finalized []types.Utterance
}

func newFakeScraper(finalized []types.Utterance) *fakeScraper {
	return &fakeScraper{events: make(chan captions.Event), finalized: finalized}
}

func (s *fakeScraper) Run(ctx context.Context) {
	<-ctx.Done()
	close(s.events)
}
func (s *fakeScraper) Events() <-chan captions.Event { return s.events }
func (s *fakeScraper) Finalized() []types.Utterance  { return s.finalized }

type fakeAgent struct{ ran bool }

func (a *fakeAgent) Run(ctx context.Context, events <-chan captions.Event) {
	a.ran = true
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		}
	}
}

type fakePlayback struct{ stopped bool }

func (p *fakePlayback) Stop() { p.stopped = true }

type fakeRouter struct{ err error }

func (r *fakeRouter) MoveBrowserInput(_ context.Context) error { return r.err }

type fakeRecorder struct {
	path     string
	startErr error
	stopped  bool
}

func (r *fakeRecorder) Start(_ context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	return os.WriteFile(r.path, []byte("RIFF"), 0o644)
}
func (r *fakeRecorder) Stop() error {
	r.stopped = true
	return nil
}

type fakeSummarizer struct {
	summary *types.MeetingSummary
	err     error
}

func (s *fakeSummarizer) Summarize(_ context.Context, _ string) (*types.MeetingSummary, error) {
	return s.summary, s.err
}

type fakeIndexer struct {
	chunks int
	err    error
	called bool
}

func (i *fakeIndexer) IndexMeeting(_ context.Context, _, _ string) (int, error) {
	i.called = true
	return i.chunks, i.err
}

type fakeBlobs struct {
	err  error
	keys []string
}

func (b *fakeBlobs) Upload(_ context.Context, _, key string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.keys = append(b.keys, key)
	return key, nil
}

type fixture struct {
	browser    *fakeBrowser
	scraper    *fakeScraper
	agent      *fakeAgent
	playback   *fakePlayback
	router     *fakeRouter
	recorder   *fakeRecorder
	asr        *asrmock.Provider
	summarizer *fakeSummarizer
	indexer    *fakeIndexer
	blobs      *fakeBlobs
	meetings   *storemock.MeetingStore
	factoryErr error
}

func defaultFixture() *fixture {
	return &fixture{
		browser: &fakeBrowser{},
		scraper: newFakeScraper([]types.Utterance{
			{SpeakerName: "Ada", Text: "good morning", StartTimestamp: "00:02", EndTimestamp: "00:02"},
			{SpeakerName: "Bob", Text: "hello", StartTimestamp: "00:05", EndTimestamp: "00:05"},
		}),
		agent:    &fakeAgent{},
		playback: &fakePlayback{},
		router:   &fakeRouter{},
		recorder: &fakeRecorder{},
		asr: &asrmock.Provider{TranscribeResult: []types.DiarizedUtterance{
			{SpeakerLabel: "spk_0", Text: "Good morning.", StartMs: 2000, EndMs: 3000},
			{SpeakerLabel: "spk_1", Text: "Hello.", StartMs: 5000, EndMs: 6000},
		}},
		summarizer: &fakeSummarizer{summary: &types.MeetingSummary{Overview: "Short sync."}},
		indexer:    &fakeIndexer{chunks: 2},
		blobs:      &fakeBlobs{},
		meetings:   &storemock.MeetingStore{},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	factory := func(_ context.Context) (*Capture, error) {
		if f.factoryErr != nil {
			return nil, f.factoryErr
		}
		return &Capture{
			Browser: f.browser,
			Scraper: f.scraper,
			Agent:   f.agent,
			Output:  f.playback,
		}, nil
	}
	newRecorder := func(path string) Recorder {
		f.recorder.path = path
		return f.recorder
	}
	return New(factory, f.router, newRecorder, f.asr, f.summarizer, f.indexer,
		f.blobs, f.meetings, t.TempDir(),
		WithAdmissionTimeout(time.Second))
}

func request() Request {
	return Request{
		MeetURL:      "https://meet.google.com/abc-defg-hij",
		UserID:       "u1",
		RecordBudget: time.Second,
	}
}

func TestRunHappyPath(t *testing.T) {
	f := defaultFixture()
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !status.Succeeded() {
		t.Fatalf("status.Err = %v, warnings = %v", status.Err, status.Warnings)
	}
	if status.AudioBlobKey == "" {
		t.Error("AudioBlobKey not set")
	}
	if !f.browser.closed || !f.browser.left {
		t.Error("browser not torn down")
	}
	if !f.playback.stopped || !f.recorder.stopped {
		t.Error("playback or recorder not stopped")
	}
	if !f.agent.ran {
		t.Error("agent never ran")
	}

	if len(f.meetings.Saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(f.meetings.Saved))
	}
	rec := f.meetings.Saved[0]
	if rec.MeetingID != status.MeetingID {
		t.Errorf("record MeetingID = %q, want %q", rec.MeetingID, status.MeetingID)
	}
	if len(rec.Captions) != 2 || len(rec.Transcript) != 2 || len(rec.Merged) != 2 {
		t.Errorf("record sizes: captions=%d transcript=%d merged=%d",
			len(rec.Captions), len(rec.Transcript), len(rec.Merged))
	}
	if rec.Merged[0].SpeakerName != "Ada" || rec.Merged[0].Text != "Good morning." {
		t.Errorf("merged[0] = %+v", rec.Merged[0])
	}
	if rec.Summary == nil || rec.Summary.Overview != "Short sync." {
		t.Errorf("Summary = %+v", rec.Summary)
	}
	if rec.Stats == nil || rec.Stats.UniqueSpeakers != 2 {
		t.Errorf("Stats = %+v", rec.Stats)
	}
	if got, want := rec.Participants, []string{"Ada", "Bob"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Participants = %v", got)
	}
	if rec.AudioBlobKey == "" {
		t.Error("record AudioBlobKey not set")
	}
	if !strings.HasPrefix(rec.AudioBlobKey, "u1/abc-defg-hij/") {
		t.Errorf("AudioBlobKey = %q", rec.AudioBlobKey)
	}
	if !f.indexer.called {
		t.Error("indexer never called")
	}
}

func TestRunScratchRemoved(t *testing.T) {
	f := defaultFixture()
	factory := func(_ context.Context) (*Capture, error) {
		return &Capture{Browser: f.browser, Scraper: f.scraper, Agent: f.agent, Output: f.playback}, nil
	}
	newRecorder := func(path string) Recorder {
		f.recorder.path = path
		return f.recorder
	}
	root := t.TempDir()
	o := New(factory, f.router, newRecorder, f.asr, f.summarizer, f.indexer,
		f.blobs, f.meetings, root, WithAdmissionTimeout(time.Second))

	if status := o.Run(context.Background(), request()); !status.Succeeded() {
		t.Fatalf("status.Err = %v", status.Err)
	}

	// The per-job timestamp directory is removed; only empty parents remain.
	leftovers, err := filepath.Glob(filepath.Join(root, "u1", "abc-defg-hij", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) > 0 {
		t.Errorf("scratch content left behind: %v", leftovers)
	}
}

func TestRunInvalidRequest(t *testing.T) {
	f := defaultFixture()
	o := f.orchestrator(t)

	status := o.Run(context.Background(), Request{})
	if !errors.Is(status.Err, ErrPrecondition) {
		t.Fatalf("Err = %v, want precondition", status.Err)
	}
	if len(f.meetings.Saved) != 0 {
		t.Error("record saved despite invalid request")
	}
}

func TestRunBrowserStartFailure(t *testing.T) {
	f := defaultFixture()
	f.factoryErr = errors.New("chrome crashed")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !errors.Is(status.Err, ErrPrecondition) {
		t.Fatalf("Err = %v, want precondition", status.Err)
	}
}

func TestRunNotAdmitted(t *testing.T) {
	f := defaultFixture()
	f.browser.admissionErr = errors.New("timed out")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !errors.Is(status.Err, ErrNotAdmitted) {
		t.Fatalf("Err = %v, want not admitted", status.Err)
	}
	if len(f.meetings.Saved) != 0 {
		t.Error("record saved despite admission failure")
	}
	if !f.browser.closed {
		t.Error("browser not closed")
	}
}

func TestRunTranscriptionFailureKeepsAudioAndCaptions(t *testing.T) {
	f := defaultFixture()
	f.asr.TranscribeErr = errors.New("asr 500")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !errors.Is(status.Err, ErrTranscription) {
		t.Fatalf("Err = %v, want transcription failure", status.Err)
	}
	if status.AudioBlobKey == "" {
		t.Error("audio not preserved in blob store")
	}
	if len(f.meetings.Saved) != 1 {
		t.Fatalf("saved %d records, want degraded record", len(f.meetings.Saved))
	}
	rec := f.meetings.Saved[0]
	if len(rec.Captions) != 2 {
		t.Errorf("captions = %d, want 2", len(rec.Captions))
	}
	if len(rec.Transcript) != 0 || len(rec.Merged) != 0 {
		t.Error("transcript fields set despite ASR failure")
	}
}

func TestRunSummarizationFailureNonFatal(t *testing.T) {
	f := defaultFixture()
	f.summarizer.err = errors.New("llm quota")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !status.Succeeded() {
		t.Fatalf("Err = %v, want success", status.Err)
	}
	if len(status.Warnings) == 0 {
		t.Error("no warning recorded")
	}
	rec := f.meetings.Saved[0]
	if rec.Summary != nil || rec.SummaryError == "" {
		t.Errorf("Summary = %+v, SummaryError = %q", rec.Summary, rec.SummaryError)
	}
}

func TestRunIndexingFailureNonFatal(t *testing.T) {
	f := defaultFixture()
	f.indexer.err = errors.New("pg down")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !status.Succeeded() {
		t.Fatalf("Err = %v, want success", status.Err)
	}
	rec := f.meetings.Saved[0]
	if rec.IndexError == "" {
		t.Error("IndexError not recorded")
	}
}

func TestRunCaptureDegradations(t *testing.T) {
	f := defaultFixture()
	f.router.err = errors.New("no sink input")
	f.browser.captionsErr = errors.New("no captions button")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !status.Succeeded() {
		t.Fatalf("Err = %v, want success with warnings", status.Err)
	}
	if len(status.Warnings) < 2 {
		t.Errorf("warnings = %v, want sink and captions degradations", status.Warnings)
	}
}

func TestRunRecorderFailureBecomesTranscriptionFailure(t *testing.T) {
	f := defaultFixture()
	f.recorder.startErr = errors.New("ffmpeg missing")
	f.asr.TranscribeErr = errors.New("no such file")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !errors.Is(status.Err, ErrTranscription) {
		t.Fatalf("Err = %v, want transcription failure", status.Err)
	}
	// No audio file exists, so no upload happened.
	if status.AudioBlobKey != "" {
		t.Errorf("AudioBlobKey = %q, want empty", status.AudioBlobKey)
	}
}

func TestRunPersistenceFailure(t *testing.T) {
	f := defaultFixture()
	f.meetings.SaveMeetingErr = errors.New("db down")
	o := f.orchestrator(t)

	status := o.Run(context.Background(), request())
	if !errors.Is(status.Err, ErrPersistence) {
		t.Fatalf("Err = %v, want persistence failure", status.Err)
	}
}
