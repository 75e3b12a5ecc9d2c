package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
)

// Recorder captures the virtual sink's monitor source to a mono 16 kHz WAV
// file using ffmpeg. The sample format matches what the transcription service
// expects, so no post-conversion is needed.
type Recorder struct {
	sinkName   string
	outputPath string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewRecorder creates a Recorder that writes to outputPath when started.
func NewRecorder(sinkName, outputPath string) *Recorder {
	return &Recorder{sinkName: sinkName, outputPath: outputPath}
}

// OutputPath returns the WAV file path the recorder writes to.
func (r *Recorder) OutputPath() string { return r.outputPath }

// Start launches the ffmpeg capture process. The recording runs until
// [Recorder.Stop] is called or ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("sink: recorder already started")
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "pulse",
		"-i", r.sinkName+".monitor",
		"-ac", "1",
		"-ar", "16000",
		r.outputPath,
	)
	// SIGTERM lets ffmpeg finalize the WAV header instead of truncating it.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sink: start ffmpeg: %w", err)
	}
	r.cmd = cmd
	slog.Info("recording started", "sink", r.sinkName, "output", r.outputPath)
	return nil
}

// Stop terminates the capture process and waits for it to exit. ffmpeg's
// nonzero exit status after SIGTERM is expected and not reported as an error.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	cmd := r.cmd
	r.cmd = nil
	r.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sink: signal ffmpeg: %w", err)
	}
	err := cmd.Wait()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("sink: wait for ffmpeg: %w", err)
	}
	slog.Info("recording stopped", "output", r.outputPath)
	return nil
}
