package audio

import (
	"sync"
	"testing"
	"time"
)

// recorder is a PlayFunc that captures every delivered chunk.
type recorder struct {
	mu     sync.Mutex
	chunks [][]byte
	rates  []int
}

func (r *recorder) play(pcm []byte, sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	r.chunks = append(r.chunks, buf)
	r.rates = append(r.rates, sampleRate)
}

func (r *recorder) snapshot() ([][]byte, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...), append([]int(nil), r.rates...)
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !m.Playing() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("manager did not become idle")
}

func TestPlayChunking(t *testing.T) {
	rec := &recorder{}
	// 100 Hz sample rate: one-second chunks are 200 bytes.
	m := NewManager(rec.play, 100, WithChunkPause(time.Millisecond))

	pcm := make([]byte, 500) // 2.5 seconds
	m.Play(pcm)
	waitIdle(t, m)

	chunks, rates := rec.snapshot()
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantSizes := []int{200, 200, 100}
	for i, c := range chunks {
		if len(c) != wantSizes[i] {
			t.Errorf("chunk %d has %d bytes, want %d", i, len(c), wantSizes[i])
		}
		if rates[i] != 100 {
			t.Errorf("chunk %d delivered at rate %d, want 100", i, rates[i])
		}
	}
}

func TestPlayPreemptsPrevious(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100, WithChunkPause(50*time.Millisecond))

	first := make([]byte, 100*2*10) // ten seconds
	m.Play(first)
	time.Sleep(10 * time.Millisecond)

	second := make([]byte, 200)
	m.Play(second)
	waitIdle(t, m)

	chunks, _ := rec.snapshot()
	// First clip delivered at most one chunk before preemption; the second
	// clip's single chunk always lands last.
	if len(chunks) < 2 || len(chunks) > 3 {
		t.Fatalf("got %d chunks, want 2 or 3", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if len(last) != 200 {
		t.Errorf("last chunk has %d bytes, want 200", len(last))
	}
}

func TestStopHaltsWithinOneChunk(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100, WithChunkPause(time.Hour))

	m.Play(make([]byte, 100*2*10))
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
	if m.Playing() {
		t.Error("Playing() = true after Stop")
	}
}

func TestStreamLifecycle(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100, WithChunkPause(time.Millisecond))

	m.StartStream(48000)
	if !m.Playing() {
		t.Error("Playing() = false during stream")
	}
	m.PushStreamChunk([]byte{1, 2})
	m.PushStreamChunk([]byte{3, 4})
	m.StopStream()

	if m.Playing() {
		t.Error("Playing() = true after StopStream")
	}
	chunks, rates := rec.snapshot()
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, r := range rates {
		if r != 48000 {
			t.Errorf("chunk %d delivered at rate %d, want 48000", i, r)
		}
	}
}

func TestStreamPreemptedByStop(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100)

	m.StartStream(48000)
	m.PushStreamChunk([]byte{1, 2})
	m.Stop()

	// Late pushes after preemption are dropped, and StopStream from the
	// provider's cleanup path must not panic or hang.
	m.PushStreamChunk([]byte{5, 6})
	m.StopStream()

	if m.Playing() {
		t.Error("Playing() = true after Stop")
	}
}

func TestStreamPacedToRealTime(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100)

	// 50 ms chunks at 16 kHz mono: 1600 bytes each. The play func returns
	// instantly, so any real elapsed time comes from the worker's pacing.
	const chunkDur = 50 * time.Millisecond
	chunk := make([]byte, 1600)

	start := time.Now()
	m.StartStream(16000)
	for i := 0; i < 5; i++ {
		m.PushStreamChunk(chunk)
	}
	m.StopStream()
	elapsed := time.Since(start)

	chunks, _ := rec.snapshot()
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}
	if elapsed < 4*chunkDur {
		t.Errorf("five 50ms chunks drained in %v, want at least %v of pacing",
			elapsed, 4*chunkDur)
	}
}

func TestStopInterruptsStreamPacing(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.play, 100)

	// Ten-second chunks at 16 kHz: the worker sleeps 10 s after each delivery
	// unless Stop interrupts it.
	chunk := make([]byte, 16000*2*10)
	m.StartStream(16000)
	for i := 0; i < 3; i++ {
		m.PushStreamChunk(chunk)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cs, _ := rec.snapshot(); len(cs) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the pacing sleep")
	}

	chunks, _ := rec.snapshot()
	if len(chunks) > 2 {
		t.Errorf("%d chunks delivered after Stop, want at most 2", len(chunks))
	}
}

func TestStopClearsPageQueue(t *testing.T) {
	rec := &recorder{}
	var cleared int
	m := NewManager(rec.play, 100, WithStopFunc(func() { cleared++ }))

	m.Stop() // nothing playing, page untouched
	if cleared != 0 {
		t.Fatalf("stop func called %d times with no playback, want 0", cleared)
	}

	m.StartStream(16000)
	m.PushStreamChunk(make([]byte, 1600))
	m.Stop()

	if cleared != 1 {
		t.Errorf("stop func called %d times, want 1", cleared)
	}
}

func TestPlayingFalseWhenIdle(t *testing.T) {
	m := NewManager(func([]byte, int) {}, 100)
	if m.Playing() {
		t.Error("Playing() = true on fresh manager")
	}
	m.Stop() // no-op
}
