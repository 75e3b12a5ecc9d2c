package audio

import (
	"sync"
	"time"

	"github.com/notulaai/notula/pkg/provider/tts"
)

const (
	// defaultChunkPause is the delay between chunk deliveries during buffered
	// playback. The page-side queue absorbs the difference between delivery
	// rate and real-time playback.
	defaultChunkPause = 100 * time.Millisecond

	streamQueueDepth = 64
)

// PlayFunc delivers one mono 16-bit PCM chunk at the given sample rate to the
// meeting page. Implementations may block for the duration of the delivery.
type PlayFunc func(pcm []byte, sampleRate int)

// Ensure Manager satisfies the synthesis sink contract.
var _ tts.StreamSink = (*Manager)(nil)

// Option is a functional option for Manager.
type Option func(*Manager)

// WithChunkPause overrides the pause between buffered chunk deliveries.
func WithChunkPause(d time.Duration) Option {
	return func(m *Manager) {
		m.chunkPause = d
	}
}

// WithStopFunc registers a callback invoked after Stop halts the worker. The
// page keeps its own playback queue; the callback clears it so audio already
// handed over falls silent too.
func WithStopFunc(fn func()) Option {
	return func(m *Manager) {
		m.stopPage = fn
	}
}

// Manager serializes all audio playback into the meeting. At most one playback
// worker runs at a time: starting a new buffered clip or synthesis stream
// preempts the previous worker, and Stop halts whatever is playing within one
// chunk boundary.
//
// Manager implements tts.StreamSink so a synthesis provider can push PCM
// directly into it.
type Manager struct {
	play       PlayFunc
	sampleRate int
	chunkPause time.Duration
	stopPage   func()

	mu         sync.Mutex
	current    *playback
	lastStream *playback
}

// playback is one playback worker. stop halts it early; done is closed when
// the worker goroutine exits. stream is non-nil for synthesis streams and is
// closed by StopStream to signal a natural end.
type playback struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	stream    chan []byte
	closeOnce sync.Once
}

func (p *playback) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// NewManager creates a Manager that delivers PCM through play. sampleRate is
// the rate used for buffered playback; streams carry their own rate.
func NewManager(play PlayFunc, sampleRate int, opts ...Option) *Manager {
	m := &Manager{
		play:       play,
		sampleRate: sampleRate,
		chunkPause: defaultChunkPause,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// begin installs a fresh playback as current, halting and waiting out any
// previous worker first.
func (m *Manager) begin(stream chan []byte) *playback {
	p := &playback{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		stream: stream,
	}
	m.mu.Lock()
	old := m.current
	m.current = p
	if stream != nil {
		m.lastStream = p
	}
	m.mu.Unlock()

	if old != nil {
		old.halt()
		<-old.done
	}
	return p
}

// Play starts buffered playback of a complete PCM clip, preempting any
// playback in progress. Chunks of one second each are delivered with a short
// pause between them; the page-side queue handles pacing. Play returns
// immediately.
func (m *Manager) Play(pcm []byte) {
	p := m.begin(nil)
	chunkSize := m.sampleRate * 2 // one second of 16-bit mono

	go func() {
		defer close(p.done)
		for i := 0; i < len(pcm); i += chunkSize {
			select {
			case <-p.stop:
				return
			default:
			}
			end := i + chunkSize
			if end > len(pcm) {
				end = len(pcm)
			}
			m.play(pcm[i:end], m.sampleRate)

			select {
			case <-p.stop:
				return
			case <-time.After(m.chunkPause):
			}
		}
	}()
}

// StartStream implements tts.StreamSink. It preempts any playback in progress
// and begins forwarding pushed chunks at the given sample rate. Deliveries are
// paced to the real chunk duration so the page never holds more than roughly
// one chunk of undelivered audio and Stop silences playback within one chunk
// interval.
func (m *Manager) StartStream(sampleRate int) {
	p := m.begin(make(chan []byte, streamQueueDepth))

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stop:
				return
			case chunk, ok := <-p.stream:
				if !ok {
					return
				}
				m.play(chunk, sampleRate)

				// Mono 16-bit: two bytes per sample.
				d := time.Duration(len(chunk)) * time.Second / time.Duration(sampleRate*2)
				select {
				case <-p.stop:
					return
				case <-time.After(d):
				}
			}
		}
	}()
}

// PushStreamChunk implements tts.StreamSink. The push never blocks: chunks
// arriving while the queue is full, or after the stream was preempted or
// stopped, are dropped.
func (m *Manager) PushStreamChunk(pcm []byte) {
	m.mu.Lock()
	p := m.current
	m.mu.Unlock()
	if p == nil || p.stream == nil {
		return
	}

	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	select {
	case p.stream <- buf:
	case <-p.stop:
	default:
	}
}

// StopStream implements tts.StreamSink. It signals the end of the most recent
// synthesis stream and waits for the queue to drain. Calling it after a
// preemption is a no-op beyond releasing the old worker.
func (m *Manager) StopStream() {
	m.mu.Lock()
	p := m.lastStream
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.stream) })
	<-p.done
}

// Playing reports whether a playback worker is currently active.
func (m *Manager) Playing() bool {
	m.mu.Lock()
	p := m.current
	m.mu.Unlock()
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop halts any playback in progress, waits for the worker to exit, and
// clears the page-side queue so already-delivered audio stops too. Safe to
// call at any time, from any goroutine.
func (m *Manager) Stop() {
	m.mu.Lock()
	p := m.current
	m.current = nil
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.halt()
	<-p.done
	if m.stopPage != nil {
		m.stopPage()
	}
}
