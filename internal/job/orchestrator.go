package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/notulaai/notula/internal/captions"
	"github.com/notulaai/notula/internal/observe"
	"github.com/notulaai/notula/internal/summarize"
	tr "github.com/notulaai/notula/internal/transcript"
	"github.com/notulaai/notula/pkg/store"
	"github.com/notulaai/notula/pkg/types"
)

const (
	defaultAdmissionTimeout = 30 * time.Second
	audioFileName           = "meeting_audio.wav"
	scratchTimeFormat       = "20060102T150405Z"
)

// Browser drives one Chrome instance through a meeting.
type Browser interface {
	Join(ctx context.Context, meetURL, guestName string) error
	WaitForAdmission(ctx context.Context, timeout time.Duration) error
	EnableCaptions(ctx context.Context) error
	KeepAlive(ctx context.Context) error
	Leave(ctx context.Context)
	Close()
}

// Scraper is the caption scraper's surface the orchestrator drives.
type Scraper interface {
	Run(ctx context.Context)
	Events() <-chan captions.Event
	Finalized() []types.Utterance
}

// Agent consumes caption events for the live voice assistant.
type Agent interface {
	Run(ctx context.Context, events <-chan captions.Event)
}

// Playback is the audio output manager's teardown surface.
type Playback interface {
	Stop()
}

// Capture bundles the live-meeting components wired around one browser
// session. Produced per job by a [CaptureFactory].
type Capture struct {
	Browser Browser
	Scraper Scraper
	Agent   Agent
	Output  Playback
}

// CaptureFactory builds a fresh capture session (browser, scraper, agent,
// audio output) for one job. A factory error is a precondition failure.
type CaptureFactory func(ctx context.Context) (*Capture, error)

// Router moves the browser's audio stream into the virtual sink.
type Router interface {
	MoveBrowserInput(ctx context.Context) error
}

// Recorder captures the sink monitor to a file.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() error
}

// RecorderFactory builds a recorder writing to outputPath.
type RecorderFactory func(outputPath string) Recorder

// Transcriber produces the diarized transcript from the recorded audio.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) ([]types.DiarizedUtterance, error)
}

// Summarizer produces the structured meeting summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText string) (*types.MeetingSummary, error)
}

// Indexer embeds and stores transcript chunks for retrieval.
type Indexer interface {
	IndexMeeting(ctx context.Context, meetingID, transcriptText string) (int, error)
}

// BlobStore uploads the recorded audio.
type BlobStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Option is a functional option for Orchestrator.
type Option func(*Orchestrator)

// WithAdmissionTimeout overrides how long the job waits for a host to admit
// the bot.
func WithAdmissionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.admissionTimeout = d }
}

// WithMetrics wires pipeline metrics. Without it the orchestrator runs
// unmetered.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator runs one meeting job end to end: capture, transcription,
// merge, summary and indexing, blob upload, persistence, cleanup. One
// orchestrator handles one job at a time; the virtual sink is process-wide.
type Orchestrator struct {
	newCapture  CaptureFactory
	router      Router
	newRecorder RecorderFactory
	asr         Transcriber
	summarizer  Summarizer
	indexer     Indexer
	blobs       BlobStore
	meetings    store.MeetingStore

	scratchRoot      string
	admissionTimeout time.Duration
	metrics          *observe.Metrics
}

// New creates an Orchestrator. All collaborators are required except the
// options.
func New(
	newCapture CaptureFactory,
	router Router,
	newRecorder RecorderFactory,
	asr Transcriber,
	summarizer Summarizer,
	indexer Indexer,
	blobs BlobStore,
	meetings store.MeetingStore,
	scratchRoot string,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		newCapture:       newCapture,
		router:           router,
		newRecorder:      newRecorder,
		asr:              asr,
		summarizer:       summarizer,
		indexer:          indexer,
		blobs:            blobs,
		meetings:         meetings,
		scratchRoot:      scratchRoot,
		admissionTimeout: defaultAdmissionTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the job and always returns a Status; Status.Err carries the
// fatal error kind when the job failed. Cleanup (browser close, recorder
// stop, scratch removal) runs on every exit path.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Status {
	req = req.withDefaults()
	status := &Status{MeetingID: uuid.NewString()}

	o.metrics.JobStarted(ctx)
	defer func() {
		o.metrics.JobFinished(ctx)
		o.metrics.RecordJob(ctx, status.Label())
	}()

	if err := req.validate(); err != nil {
		status.Err = fmt.Errorf("job: %w: %w", ErrPrecondition, err)
		return status
	}

	log := slog.With("meeting_id", status.MeetingID, "url", req.MeetURL, "user_id", req.UserID)

	// Step 1: scratch directory.
	scratch := filepath.Join(o.scratchRoot, req.UserID, MeetKey(req.MeetURL),
		time.Now().UTC().Format(scratchTimeFormat))
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		status.Err = fmt.Errorf("job: %w: scratch dir: %w", ErrPrecondition, err)
		return status
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("scratch cleanup failed", "dir", scratch, "error", err)
		}
	}()
	audioPath := filepath.Join(scratch, audioFileName)

	// Step 2: join the meeting and start capture.
	record := &types.MeetingRecord{
		MeetingID:  status.MeetingID,
		MeetingURL: req.MeetURL,
		UserID:     req.UserID,
		StartTime:  time.Now().UTC(),
	}

	recorded, err := o.capture(ctx, req, audioPath, record, status, log)
	if err != nil {
		status.Err = err
		return status
	}

	// Step 5: transcription.
	asrStart := time.Now()
	diarized, err := o.asr.TranscribeFile(ctx, audioPath)
	o.metrics.RecordStage(ctx, "asr", time.Since(asrStart))
	if err != nil || !recorded {
		if err == nil {
			err = fmt.Errorf("no audio was recorded")
		}
		status.Err = fmt.Errorf("job: %w: %w", ErrTranscription, err)
		// Preserve the raw audio and captions before giving up.
		o.upload(ctx, req, audioPath, record, status, log)
		if saveErr := o.meetings.SaveMeeting(ctx, record); saveErr != nil {
			log.Error("saving degraded record failed", "error", saveErr)
		}
		return status
	}
	record.Transcript = diarized

	// Step 6: merge and stats.
	record.Merged = tr.Merge(record.Captions, diarized)
	record.Stats = tr.Stats(record.Merged)
	text := summarize.TranscriptText(record.Merged)

	// Step 7: summary and indexing in parallel; both are non-fatal.
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		summary, err := o.summarizer.Summarize(gctx, text)
		o.metrics.RecordStage(gctx, "summarize", time.Since(start))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			record.SummaryError = err.Error()
			status.warn("summarization failed: %v", err)
			return nil
		}
		record.Summary = summary
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		n, err := o.indexer.IndexMeeting(gctx, record.MeetingID, text)
		o.metrics.RecordStage(gctx, "index", time.Since(start))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			record.IndexError = err.Error()
			status.warn("indexing failed: %v", err)
			return nil
		}
		log.Info("meeting indexed", "chunks", n)
		return nil
	})
	_ = g.Wait()

	// Steps 8 and 9: upload audio, persist the record.
	o.upload(ctx, req, audioPath, record, status, log)
	if err := o.meetings.SaveMeeting(ctx, record); err != nil {
		status.Err = fmt.Errorf("job: %w: %w", ErrPersistence, err)
		return status
	}

	log.Info("job complete",
		"captions", len(record.Captions),
		"segments", len(record.Merged),
		"warnings", len(status.Warnings))
	return status
}

// capture runs steps 2 through 4: join, concurrent scraper/agent/recorder,
// keep-alive, teardown. Reports whether audio recording was started.
func (o *Orchestrator) capture(ctx context.Context, req Request, audioPath string, record *types.MeetingRecord, status *Status, log *slog.Logger) (recorded bool, err error) {
	sess, err := o.newCapture(ctx)
	if err != nil {
		return false, fmt.Errorf("job: %w: start browser: %w", ErrPrecondition, err)
	}
	defer sess.Browser.Close()

	captureStart := time.Now()
	defer func() {
		o.metrics.RecordStage(ctx, "capture", time.Since(captureStart))
	}()

	if err := sess.Browser.Join(ctx, req.MeetURL, req.GuestName); err != nil {
		return false, fmt.Errorf("job: %w: %w", ErrNotAdmitted, err)
	}
	if err := sess.Browser.WaitForAdmission(ctx, o.admissionTimeout); err != nil {
		return false, fmt.Errorf("job: %w: %w", ErrNotAdmitted, err)
	}

	if err := sess.Browser.EnableCaptions(ctx); err != nil {
		status.warn("captions unavailable: %v", err)
	}
	if err := o.router.MoveBrowserInput(ctx); err != nil {
		status.warn("sink routing failed: %v", err)
	}

	recorder := o.newRecorder(audioPath)
	if err := recorder.Start(ctx); err != nil {
		status.warn("recorder failed to start: %v", err)
	} else {
		recorded = true
	}

	// Scraper and agent run for the duration of the capture; the recording
	// budget bounds everything.
	captureCtx, cancel := context.WithTimeout(ctx, req.RecordBudget)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess.Scraper.Run(captureCtx)
	}()
	go func() {
		defer wg.Done()
		sess.Agent.Run(captureCtx, sess.Scraper.Events())
	}()

	if err := sess.Browser.KeepAlive(captureCtx); err != nil && captureCtx.Err() == nil {
		log.Warn("keep-alive ended early", "error", err)
	}

	// Teardown in reverse construction order.
	cancel()
	wg.Wait()
	sess.Output.Stop()
	if recorded {
		if err := recorder.Stop(); err != nil {
			status.warn("recorder stop: %v", err)
			recorded = false
		}
	}
	sess.Browser.Leave(context.WithoutCancel(ctx))

	record.Captions = sess.Scraper.Finalized()
	record.Participants = participants(record.Captions)
	if len(record.Captions) == 0 {
		status.warn("no captions were finalized")
	}
	log.Info("capture finished", "captions", len(record.Captions), "recorded", recorded)
	return recorded, nil
}

// upload pushes the audio file to the blob store, best effort.
func (o *Orchestrator) upload(ctx context.Context, req Request, audioPath string, record *types.MeetingRecord, status *Status, log *slog.Logger) {
	if _, err := os.Stat(audioPath); err != nil {
		status.warn("no audio file to upload")
		return
	}
	key := fmt.Sprintf("%s/%s/%s/%s", req.UserID, MeetKey(req.MeetURL),
		record.StartTime.Format(scratchTimeFormat), audioFileName)
	fullKey, err := o.blobs.Upload(ctx, audioPath, key)
	if err != nil {
		status.warn("audio upload failed: %v", err)
		return
	}
	record.AudioBlobKey = fullKey
	status.AudioBlobKey = fullKey
	log.Info("audio uploaded", "key", fullKey)
}

// participants lists the unique caption speaker names in order of first
// appearance.
func participants(utterances []types.Utterance) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range utterances {
		if u.SpeakerName == "" || seen[u.SpeakerName] {
			continue
		}
		seen[u.SpeakerName] = true
		out = append(out, u.SpeakerName)
	}
	return out
}
