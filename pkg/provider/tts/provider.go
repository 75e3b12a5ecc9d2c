// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Deepgram Aura or a
// local Piper instance) and streams raw PCM audio into a StreamSink as chunks
// become available. Pushing chunks instead of returning the full clip lets the
// agent start speaking into the meeting before synthesis has finished, and lets
// a barge-in cut the stream mid-utterance.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// StreamSink receives synthesized PCM audio incrementally. The audio output
// manager implements this interface; tests use recording fakes.
//
// The provider calls StartStream exactly once before the first chunk,
// PushStreamChunk zero or more times, and StopStream exactly once when the
// stream ends (normally, on error, or on cancellation).
type StreamSink interface {
	// StartStream announces that PCM chunks at the given sample rate (mono,
	// 16-bit little-endian) are about to arrive.
	StartStream(sampleRate int)

	// PushStreamChunk delivers one PCM chunk. Implementations must not retain
	// the slice past the call.
	PushStreamChunk(pcm []byte)

	// StopStream marks the end of the stream. Called exactly once, on every
	// exit path.
	StopStream()
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: a cancelled ctx stops synthesis and calls
// sink.StopStream.
type Provider interface {
	// SynthesizeStream synthesizes text and pushes PCM chunks into sink as they
	// arrive. It blocks until synthesis completes, the backend closes the
	// stream, or ctx is cancelled. StopStream is called on every exit path.
	//
	// Returns a non-nil error only if the stream could not be started or the
	// backend reported a synthesis failure.
	SynthesizeStream(ctx context.Context, text string, sink StreamSink) error

	// SampleRate returns the sample rate (Hz) of the PCM this provider emits.
	SampleRate() int
}
