package job

import (
	"errors"
	"fmt"
	"testing"
)

func TestMeetKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://meet.google.com/abc-defg-hij", "abc-defg-hij"},
		{"https://meet.google.com/abc-defg-hij?authuser=0", "abc-defg-hij"},
		{"https://meet.google.com/", "meeting"},
		{"https://example.com/rooms/team sync!", "team-sync-"},
		{"", "meeting"},
		{"://bad url", "meeting"},
	}
	for _, tt := range tests {
		if got := MeetKey(tt.url); got != tt.want {
			t.Errorf("MeetKey(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "succeeded"},
		{"precondition", fmt.Errorf("job: %w: boom", ErrPrecondition), "precondition_failure"},
		{"not admitted", fmt.Errorf("job: %w: timeout", ErrNotAdmitted), "not_admitted"},
		{"transcription", fmt.Errorf("job: %w: 500", ErrTranscription), "transcription_failure"},
		{"persistence", fmt.Errorf("job: %w: down", ErrPersistence), "persistence_failure"},
		{"other", errors.New("mystery"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Status{Err: tt.err}
			if got := s.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
			if want := tt.err == nil; s.Succeeded() != want {
				t.Errorf("Succeeded() = %v, want %v", s.Succeeded(), want)
			}
		})
	}
}

func TestRequestDefaults(t *testing.T) {
	r := Request{MeetURL: "https://meet.google.com/x", UserID: "u1"}.withDefaults()
	if r.GuestName != "Bot Recorder" {
		t.Errorf("GuestName = %q", r.GuestName)
	}
	if r.RecordBudget.Seconds() != 300 {
		t.Errorf("RecordBudget = %v", r.RecordBudget)
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{}).validate(); err == nil {
		t.Error("expected error for empty request")
	}
	if err := (Request{MeetURL: "https://m", UserID: "u"}).validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
