package transcript

import (
	"testing"

	"github.com/notulaai/notula/pkg/types"
)

func TestStats(t *testing.T) {
	segments := []types.MergedSegment{
		{SpeakerName: "Ada", Text: "good morning everyone", DurationSeconds: 4},
		{SpeakerName: "Bob", Text: "thanks for having me", DurationSeconds: 3},
		{SpeakerName: "Ada", Text: "back to you", DurationSeconds: 3},
	}
	stats := Stats(segments)

	if stats.TotalSegments != 3 {
		t.Errorf("TotalSegments = %d, want 3", stats.TotalSegments)
	}
	if stats.UniqueSpeakers != 2 {
		t.Errorf("UniqueSpeakers = %d, want 2", stats.UniqueSpeakers)
	}
	if stats.TotalDurationSeconds != 10 {
		t.Errorf("TotalDurationSeconds = %v, want 10", stats.TotalDurationSeconds)
	}
	if stats.TotalDurationFormatted != "00:10" {
		t.Errorf("TotalDurationFormatted = %q, want 00:10", stats.TotalDurationFormatted)
	}

	ada := stats.Speakers["Ada"]
	if ada.Segments != 2 {
		t.Errorf("Ada segments = %d, want 2", ada.Segments)
	}
	if ada.TotalDuration != 7 {
		t.Errorf("Ada duration = %v, want 7", ada.TotalDuration)
	}
	if ada.TotalWords != 6 {
		t.Errorf("Ada words = %d, want 6", ada.TotalWords)
	}
	if ada.TotalCharacters != len("good morning everyone")+len("back to you") {
		t.Errorf("Ada characters = %d", ada.TotalCharacters)
	}
	if ada.PercentageOfTime != 70 {
		t.Errorf("Ada percentage = %v, want 70", ada.PercentageOfTime)
	}
	if ada.AvgSegmentDuration != 3.5 {
		t.Errorf("Ada avg duration = %v, want 3.5", ada.AvgSegmentDuration)
	}

	bob := stats.Speakers["Bob"]
	if bob.PercentageOfTime != 30 {
		t.Errorf("Bob percentage = %v, want 30", bob.PercentageOfTime)
	}
}

func TestStatsRounding(t *testing.T) {
	segments := []types.MergedSegment{
		{SpeakerName: "Ada", Text: "one", DurationSeconds: 1},
		{SpeakerName: "Bob", Text: "two", DurationSeconds: 1},
		{SpeakerName: "Eve", Text: "three", DurationSeconds: 1},
	}
	stats := Stats(segments)
	for name, s := range stats.Speakers {
		if s.PercentageOfTime != 33.33 {
			t.Errorf("%s percentage = %v, want 33.33", name, s.PercentageOfTime)
		}
	}
}

func TestStatsEmpty(t *testing.T) {
	stats := Stats(nil)
	if stats.TotalSegments != 0 || stats.UniqueSpeakers != 0 || stats.TotalDurationSeconds != 0 {
		t.Errorf("empty stats not zeroed: %+v", stats)
	}
	if stats.TotalDurationFormatted != "00:00" {
		t.Errorf("TotalDurationFormatted = %q, want 00:00", stats.TotalDurationFormatted)
	}
	if len(stats.Speakers) != 0 {
		t.Errorf("Speakers = %v, want empty", stats.Speakers)
	}
}

func TestStatsZeroDurationSegments(t *testing.T) {
	segments := []types.MergedSegment{
		{SpeakerName: "Ada", Text: "words", DurationSeconds: 0},
	}
	stats := Stats(segments)
	ada := stats.Speakers["Ada"]
	if ada.PercentageOfTime != 0 {
		t.Errorf("percentage with zero total = %v, want 0", ada.PercentageOfTime)
	}
}
