// Package job orchestrates one meeting from join to persisted record.
package job

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Fatal error kinds. Non-fatal degradations are collected as warnings on the
// Status instead.
var (
	// ErrPrecondition marks failures before the meeting was reached: browser
	// start, scratch directory creation.
	ErrPrecondition = errors.New("precondition failure")

	// ErrNotAdmitted marks a missing join control or an admission timeout.
	// No record is produced.
	ErrNotAdmitted = errors.New("not admitted")

	// ErrTranscription marks an ASR failure after a successful capture. The
	// raw audio is preserved in the blob store; captions are still persisted.
	ErrTranscription = errors.New("transcription failure")

	// ErrPersistence marks a failure to save the final meeting record.
	ErrPersistence = errors.New("persistence failure")
)

const (
	defaultGuestName    = "Bot Recorder"
	defaultRecordBudget = 300 * time.Second
)

// Request is the job payload for one meeting.
type Request struct {
	// MeetURL is the meeting link to join.
	MeetURL string

	// GuestName is the display name the bot joins with.
	// Defaults to "Bot Recorder".
	GuestName string

	// UserID is the opaque owner identifier used for scratch and blob paths.
	UserID string

	// RecordBudget caps the in-meeting capture time. Defaults to 300 s.
	RecordBudget time.Duration
}

func (r Request) withDefaults() Request {
	if r.GuestName == "" {
		r.GuestName = defaultGuestName
	}
	if r.RecordBudget <= 0 {
		r.RecordBudget = defaultRecordBudget
	}
	return r
}

func (r Request) validate() error {
	var errs []error
	if r.MeetURL == "" {
		errs = append(errs, errors.New("meet_url is required"))
	}
	if r.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	return errors.Join(errs...)
}

// Status is the outcome of one meeting job.
type Status struct {
	// MeetingID is the identifier assigned to this job's record.
	MeetingID string

	// AudioBlobKey is the object key of the uploaded recording, when the
	// upload succeeded.
	AudioBlobKey string

	// Warnings lists non-fatal degradations (sink routing failure, caption
	// region missing, summarization or indexing errors).
	Warnings []string

	// Err is nil on success and one of the wrapped fatal kinds otherwise.
	Err error
}

// Succeeded reports whether the job completed without a fatal error.
func (s *Status) Succeeded() bool { return s.Err == nil }

// Label returns the status label used for job metrics.
func (s *Status) Label() string {
	switch {
	case s.Err == nil:
		return "succeeded"
	case errors.Is(s.Err, ErrPrecondition):
		return "precondition_failure"
	case errors.Is(s.Err, ErrNotAdmitted):
		return "not_admitted"
	case errors.Is(s.Err, ErrTranscription):
		return "transcription_failure"
	case errors.Is(s.Err, ErrPersistence):
		return "persistence_failure"
	default:
		return "failed"
	}
}

func (s *Status) warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// MeetKey derives a filesystem- and object-key-safe meeting key from the
// meeting URL's path (e.g. "https://meet.google.com/abc-defg-hij" yields
// "abc-defg-hij"). Falls back to "meeting" when the URL has no usable path.
func MeetKey(meetURL string) string {
	u, err := url.Parse(meetURL)
	if err != nil {
		return "meeting"
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "meeting"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}

	var b strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "meeting"
	}
	return b.String()
}
