package transcript

import (
	"math"
	"strings"

	"github.com/notulaai/notula/pkg/types"
)

// Stats accumulates per-speaker talk statistics and meeting totals over
// merged segments. Percentages and averages are rounded to two decimals.
// An empty input yields zeroed totals with an empty speaker map.
func Stats(segments []types.MergedSegment) *types.MeetingStats {
	speakers := make(map[string]types.SpeakerStats)
	totalDuration := 0.0

	for _, seg := range segments {
		s := speakers[seg.SpeakerName]
		s.Segments++
		s.TotalDuration += seg.DurationSeconds
		s.TotalWords += len(strings.Fields(seg.Text))
		s.TotalCharacters += len(seg.Text)
		speakers[seg.SpeakerName] = s
		totalDuration += seg.DurationSeconds
	}

	for name, s := range speakers {
		if totalDuration > 0 {
			s.PercentageOfTime = round2(s.TotalDuration / totalDuration * 100)
		}
		if s.Segments > 0 {
			s.AvgSegmentDuration = round2(s.TotalDuration / float64(s.Segments))
		}
		s.TotalDuration = round2(s.TotalDuration)
		speakers[name] = s
	}

	return &types.MeetingStats{
		TotalDurationSeconds:   round2(totalDuration),
		TotalDurationFormatted: types.FormatTimestamp(totalDuration),
		TotalSegments:          len(segments),
		UniqueSpeakers:         len(speakers),
		Speakers:               speakers,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
