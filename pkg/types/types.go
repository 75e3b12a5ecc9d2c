// Package types defines the shared types used across all Notula packages.
//
// These types form the lingua franca between the capture runtime, the
// post-processing pipeline, and the storage layers. They are intentionally
// minimal: each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// Utterance is a caption-derived utterance finalized by the caption scraper.
// Timestamps are elapsed time from meeting start, formatted as HH:MM:SS or
// MM:SS. An Utterance is immutable after finalization.
type Utterance struct {
	// SpeakerName is the display name shown in the caption block.
	SpeakerName string `json:"speaker"`

	// Text is the finalized caption delta (never a repeat of a previously
	// finalized text for the same speaker).
	Text string `json:"text"`

	// StartTimestamp is the elapsed time at finalization.
	StartTimestamp string `json:"start_timestamp"`

	// EndTimestamp is the elapsed time at finalization. Always ≥ StartTimestamp.
	EndTimestamp string `json:"end_timestamp"`
}

// DiarizedUtterance is an utterance produced by post-hoc ASR with speaker
// diarization. SpeakerLabel is an opaque identifier assigned by the ASR
// (e.g., "spk_0"); resolving labels to human names happens during merging.
type DiarizedUtterance struct {
	SpeakerLabel string `json:"speaker"`
	Text         string `json:"text"`
	StartMs      int64  `json:"start_ms"`
	EndMs        int64  `json:"end_ms"`
}

// MergedSegment pairs the i-th caption Utterance with the i-th
// DiarizedUtterance in temporal order, carrying both the human speaker name
// (from captions) and the diarization label (from ASR).
type MergedSegment struct {
	ID              int     `json:"id"`
	SpeakerLabel    string  `json:"speaker_label"`
	SpeakerName     string  `json:"speaker_name"`
	Text            string  `json:"text"`
	StartTimestamp  string  `json:"start_time"`
	EndTimestamp    string  `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// NoteItem groups summary notes under one topic with its time range.
type NoteItem struct {
	Topic string   `json:"topic"`
	Start string   `json:"start_time"`
	End   string   `json:"end_time"`
	Items []string `json:"items"`
}

// ActionItem lists tasks extracted from the meeting, optionally grouped by
// assignee.
type ActionItem struct {
	Assignee string   `json:"assignee,omitempty"`
	Items    []string `json:"items"`
}

// MeetingSummary is the structured summary produced by the summarizer
// pipeline. It is strictly a tree: no cross-references between nodes.
type MeetingSummary struct {
	Overview    string       `json:"overview"`
	Notes       []NoteItem   `json:"notes"`
	ActionItems []ActionItem `json:"action_items"`
}

// SpeakerStats accumulates per-speaker talk statistics over the merged
// transcript. These are informational; downstream steps tolerate their absence.
type SpeakerStats struct {
	Segments           int     `json:"segments"`
	TotalDuration      float64 `json:"total_duration"`
	TotalWords         int     `json:"total_words"`
	TotalCharacters    int     `json:"total_characters"`
	PercentageOfTime   float64 `json:"percentage_of_time"`
	AvgSegmentDuration float64 `json:"avg_segment_duration"`
}

// MeetingStats aggregates meeting-wide statistics.
type MeetingStats struct {
	TotalDurationSeconds   float64                 `json:"total_duration_seconds"`
	TotalDurationFormatted string                  `json:"total_duration_formatted"`
	TotalSegments          int                     `json:"total_segments"`
	UniqueSpeakers         int                     `json:"unique_speakers"`
	Speakers               map[string]SpeakerStats `json:"speaker_statistics"`
}

// MeetingRecord is the boundary object handed to external persistence once a
// meeting job completes. Summary may be nil when summarization failed; the
// per-field error tags record why a field is absent.
type MeetingRecord struct {
	MeetingID    string              `json:"meeting_id"`
	MeetingURL   string              `json:"meeting_url"`
	UserID       string              `json:"user_id"`
	Participants []string            `json:"participants"`
	StartTime    time.Time           `json:"start_time"`
	Transcript   []DiarizedUtterance `json:"transcript"`
	Captions     []Utterance         `json:"captions"`
	Merged       []MergedSegment     `json:"merged"`
	Stats        *MeetingStats       `json:"stats,omitempty"`
	Summary      *MeetingSummary     `json:"summary,omitempty"`
	AudioBlobKey string              `json:"audio_blob_key"`

	// SummaryError and IndexError tag non-fatal post-processing failures so
	// the record can still be persisted with the available fields.
	SummaryError string `json:"summary_error,omitempty"`
	IndexError   string `json:"index_error,omitempty"`
}
