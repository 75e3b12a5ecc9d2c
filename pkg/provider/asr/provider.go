// Package asr defines the Provider interface for post-hoc speech recognition
// backends with speaker diarization.
//
// Unlike the live caption stream, an ASR provider processes a complete
// recording after the meeting ends and returns diarized utterances with
// millisecond-precision boundaries. Speaker identity is an opaque label
// ("spk_0", "spk_1", ...) local to one recording; mapping labels to human
// names happens during transcript merging.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"

	"github.com/notulaai/notula/pkg/types"
)

// Provider is the abstraction over any diarizing speech-to-text backend.
type Provider interface {
	// TranscribeFile uploads the audio file at path and returns the diarized
	// utterances in temporal order. Consecutive utterances from the same
	// speaker are merged into one.
	//
	// Returns an error if the file cannot be read, the backend rejects the
	// request, or ctx is cancelled before the transcript arrives.
	TranscribeFile(ctx context.Context, path string) ([]types.DiarizedUtterance, error)
}
