package sink

import (
	"context"
	"errors"
	"testing"
	"time"
)

const chromeListing = `Sink Input #12
	Driver: protocol-native.c
	Owner Module: 9
	Client: 42
	Sink: 1
	Properties:
		application.name = "Google Chrome"
		application.process.binary = "chrome"
`

const mixedListing = `Sink Input #3
	Properties:
		application.name = "Music Player"
		media.name = "Playback"
Sink Input #7
	Properties:
		media.name = "WebRTC Voice"
`

const emptyListing = ``

const otherAppsListing = `Sink Input #5
	Properties:
		application.name = "Firefox"
		media.name = "Playback Stream"
`

func TestFindBrowserInput(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    string
	}{
		{"chrome by name", chromeListing, "12"},
		{"webrtc after other app", mixedListing, "7"},
		{"empty output", emptyListing, ""},
		{"unrelated apps", otherAppsListing, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindBrowserInput(tt.listing); got != tt.want {
				t.Errorf("FindBrowserInput = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindBrowserInputMarkerBeforeIndex(t *testing.T) {
	// A marker line with no preceding index must not match.
	listing := "application.name = \"Google Chrome\"\nSink Input #4\n"
	if got := FindBrowserInput(listing); got != "" {
		t.Errorf("FindBrowserInput = %q, want empty", got)
	}
}

func TestMoveBrowserInput(t *testing.T) {
	var moved []string
	calls := 0
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls++
		if name != "pactl" {
			t.Fatalf("unexpected command %q", name)
		}
		if args[0] == "list" {
			if calls < 3 {
				return []byte(emptyListing), nil
			}
			return []byte(chromeListing), nil
		}
		moved = append(moved, args[1]+"->"+args[2])
		return nil, nil
	}

	r := NewRouter("meet_sink", WithRunner(run), WithRetryPolicy(5, time.Millisecond))
	if err := r.MoveBrowserInput(context.Background()); err != nil {
		t.Fatalf("MoveBrowserInput: %v", err)
	}
	if len(moved) != 1 || moved[0] != "12->meet_sink" {
		t.Errorf("moved = %v", moved)
	}
}

func TestMoveBrowserInputExhaustsRetries(t *testing.T) {
	run := func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(emptyListing), nil
	}
	r := NewRouter("meet_sink", WithRunner(run), WithRetryPolicy(3, time.Millisecond))
	if err := r.MoveBrowserInput(context.Background()); err == nil {
		t.Fatal("expected error when no stream appears")
	}
}

func TestMoveBrowserInputListFailure(t *testing.T) {
	run := func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, errors.New("pactl not found")
	}
	r := NewRouter("meet_sink", WithRunner(run))
	if err := r.MoveBrowserInput(context.Background()); err == nil {
		t.Fatal("expected error when pactl fails")
	}
}

func TestMoveBrowserInputContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(emptyListing), nil
	}
	r := NewRouter("meet_sink", WithRunner(run), WithRetryPolicy(5, time.Hour))
	if err := r.MoveBrowserInput(ctx); err == nil {
		t.Fatal("expected error when context is cancelled")
	}
}
