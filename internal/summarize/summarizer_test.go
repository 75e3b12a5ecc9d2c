package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/notulaai/notula/pkg/provider/llm"
	llmmock "github.com/notulaai/notula/pkg/provider/llm/mock"
	"github.com/notulaai/notula/pkg/types"
)

const mergeOutput = `{
  "overview": "The team agreed to ship on Friday.",
  "notes": [
    {"topic": "Release", "start_time": "00:10", "end_time": "05:30", "items": ["Ada confirmed QA signoff"]}
  ],
  "action_items": [
    {"assignee": "Bob", "items": ["Prepare release notes"]}
  ]
}`

func TestSummarizePipeline(t *testing.T) {
	calls := 0
	brain := &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			content := req.Messages[0].Content
			if strings.Contains(content, "Merge them into a full meeting summary") {
				return &llm.CompletionResponse{Content: mergeOutput}, nil
			}
			return &llm.CompletionResponse{Content: "chunk summary"}, nil
		},
	}
	s := New(brain, WithChunking(100, 10))

	transcript := strings.Repeat("[00:01 - 00:05] Ada: we ship friday. ", 20)
	summary, err := s.Summarize(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Overview != "The team agreed to ship on Friday." {
		t.Errorf("Overview = %q", summary.Overview)
	}
	if len(summary.Notes) != 1 || summary.Notes[0].Topic != "Release" {
		t.Errorf("Notes = %+v", summary.Notes)
	}
	if len(summary.ActionItems) != 1 || summary.ActionItems[0].Assignee != "Bob" {
		t.Errorf("ActionItems = %+v", summary.ActionItems)
	}
	// One call per chunk plus the merge call.
	if calls < 3 {
		t.Errorf("llm called %d times, want chunk calls plus merge", calls)
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	s := New(&llmmock.Provider{})
	if _, err := s.Summarize(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestSummarizeChunkFailure(t *testing.T) {
	brain := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
	s := New(brain)
	if _, err := s.Summarize(context.Background(), "some transcript text"); err == nil {
		t.Fatal("expected error when chunk summarization fails")
	}
}

func TestParseSummaryRepairsAlmostJSON(t *testing.T) {
	// Trailing comma and unquoted key: typical model output.
	raw := "```json\n{overview: \"Short sync.\", \"notes\": [], \"action_items\": [],}\n```"
	summary, err := ParseSummary(raw)
	if err != nil {
		t.Fatalf("ParseSummary: %v", err)
	}
	if summary.Overview != "Short sync." {
		t.Errorf("Overview = %q", summary.Overview)
	}
}

func TestParseSummaryHopeless(t *testing.T) {
	if _, err := ParseSummary("I could not produce a summary, sorry!"); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}

func TestTranscriptText(t *testing.T) {
	segments := []types.MergedSegment{
		{StartTimestamp: "00:01", EndTimestamp: "00:04", SpeakerName: "Ada", Text: "good morning"},
		{StartTimestamp: "00:05", EndTimestamp: "00:08", SpeakerName: "Bob", Text: "hello"},
	}
	got := TranscriptText(segments)
	want := "[00:01 - 00:04] Ada: good morning\n[00:05 - 00:08] Bob: hello\n"
	if got != want {
		t.Errorf("TranscriptText = %q, want %q", got, want)
	}
}
