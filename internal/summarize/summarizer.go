// Package summarize builds a structured meeting summary from transcript text.
//
// The pipeline follows a map/reduce shape: the transcript is split into
// overlapping chunks, each chunk is summarized freeform, and a final merge
// prompt folds the chunk summaries into the MeetingSummary structure. Only
// the merge step demands structured output; its JSON is repaired before
// decoding because models reliably emit almost-JSON.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/notulaai/notula/pkg/provider/llm"
	"github.com/notulaai/notula/pkg/types"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100

	chunkPrompt = `You are an expert meeting assistant.
Summarize the following transcript chunk into concise notes.
Include:
- Timestamps
- Speaker names
- Bullet points for actions or important points

Transcript chunk:
%s`

	mergePrompt = `You are an expert meeting assistant.
You have the following chunk summaries. Merge them into a full meeting summary.

Provide:
- Overview: one concise paragraph summarizing the key points.
- Notes: grouped by topic, each with start_time, end_time, and bullet items naming speakers.
- Action Items: extracted tasks, grouped by assignee when possible.

Respond with a single JSON object and nothing else, shaped as:
{
  "overview": "string",
  "notes": [{"topic": "string", "start_time": "MM:SS", "end_time": "MM:SS", "items": ["string"]}],
  "action_items": [{"assignee": "string or omitted", "items": ["string"]}]
}

Chunk summaries:
%s`
)

// Option is a functional option for Summarizer.
type Option func(*Summarizer)

// WithChunking overrides the chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(s *Summarizer) {
		s.chunkSize = size
		s.overlap = overlap
	}
}

// Summarizer runs the chunk/merge summary pipeline against an LLM.
type Summarizer struct {
	brain     llm.Provider
	chunkSize int
	overlap   int
}

// New creates a Summarizer using brain for both pipeline stages.
func New(brain llm.Provider, opts ...Option) *Summarizer {
	s := &Summarizer{
		brain:     brain,
		chunkSize: defaultChunkSize,
		overlap:   defaultChunkOverlap,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize produces the structured summary of transcriptText.
func (s *Summarizer) Summarize(ctx context.Context, transcriptText string) (*types.MeetingSummary, error) {
	chunks := SplitText(transcriptText, s.chunkSize, s.overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("summarize: empty transcript")
	}

	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		resp, err := s.brain.Complete(ctx, llm.CompletionRequest{
			Messages: []llm.Message{{Role: "user", Content: fmt.Sprintf(chunkPrompt, chunk)}},
		})
		if err != nil {
			return nil, fmt.Errorf("summarize: chunk %d of %d: %w", i+1, len(chunks), err)
		}
		chunkSummaries = append(chunkSummaries, resp.Content)
	}
	slog.Debug("chunk summaries complete", "chunks", len(chunkSummaries))

	resp, err := s.brain.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: fmt.Sprintf(mergePrompt, strings.Join(chunkSummaries, "\n"))}},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: merge: %w", err)
	}

	summary, err := ParseSummary(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("summarize: parse merge output: %w", err)
	}
	return summary, nil
}

// ParseSummary decodes the merge step's output into a MeetingSummary,
// stripping code fences and repairing malformed JSON first.
func ParseSummary(raw string) (*types.MeetingSummary, error) {
	cleaned := stripCodeFence(raw)

	var summary types.MeetingSummary
	err := json.Unmarshal([]byte(cleaned), &summary)
	if err == nil {
		return &summary, nil
	}

	fixed, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return nil, fmt.Errorf("repair: %w (original: %v)", repairErr, err)
	}
	if err := json.Unmarshal([]byte(fixed), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// TranscriptText renders merged segments as the plain text fed to the
// summarizer and indexer: one line per segment with timestamp and speaker.
func TranscriptText(segments []types.MergedSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%s - %s] %s: %s\n", seg.StartTimestamp, seg.EndTimestamp, seg.SpeakerName, seg.Text)
	}
	return b.String()
}
