// Package transcript combines the two transcripts a meeting produces, the
// caption stream with human names and the diarized ASR output with precise
// boundaries, into merged segments, and computes talk-time statistics over
// them.
package transcript

import (
	"strings"

	"github.com/notulaai/notula/pkg/types"
)

// unknownSpeaker fills in when either transcript is missing its identity.
const unknownSpeaker = "Unknown"

// Merge zips captions and diarized utterances index-parallel: the i-th
// caption utterance is paired with the i-th diarized utterance, keeping the
// caption's human name and the diarization label side by side. Timestamps and
// text come from the ASR side, which carries real boundaries; caption text is
// the fallback when the ASR text is empty. The tail of the longer input is
// dropped.
func Merge(captions []types.Utterance, diarized []types.DiarizedUtterance) []types.MergedSegment {
	n := len(captions)
	if len(diarized) < n {
		n = len(diarized)
	}

	merged := make([]types.MergedSegment, 0, n)
	for i := 0; i < n; i++ {
		c, d := captions[i], diarized[i]

		// ASR boundaries are authoritative: caption timestamps record when
		// text stabilized on screen, not when it was spoken.
		start := types.FormatTimestamp(float64(d.StartMs) / 1000)
		end := types.FormatTimestamp(float64(d.EndMs) / 1000)

		label := d.SpeakerLabel
		if label == "" {
			label = unknownSpeaker
		}
		name := strings.TrimSpace(c.SpeakerName)
		if name == "" {
			name = unknownSpeaker
		}
		text := strings.TrimSpace(d.Text)
		if text == "" {
			text = strings.TrimSpace(c.Text)
		}

		merged = append(merged, types.MergedSegment{
			ID:              i + 1,
			SpeakerLabel:    label,
			SpeakerName:     name,
			Text:            text,
			StartTimestamp:  start,
			EndTimestamp:    end,
			DurationSeconds: types.ParseTimestamp(end) - types.ParseTimestamp(start),
		})
	}
	return merged
}
