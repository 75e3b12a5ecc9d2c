// Package sink routes the meeting browser's audio into a PulseAudio virtual
// sink and records the sink monitor to a WAV file with ffmpeg.
//
// The virtual sink (module-null-sink) is expected to exist before a job
// starts; container images create it at startup with pactl load-module.
package sink

import "strings"

// browser sink inputs are identified by any of these property lines in the
// pactl listing.
var browserMarkers = []string{
	`application.name = "Google Chrome"`,
	`application.name = "Chromium"`,
	`application.process.binary = "chrome"`,
	`media.name = "WebRTC Voice"`,
}

// FindBrowserInput scans the output of `pactl list sink-inputs` and returns
// the index of the first sink input produced by the meeting browser. Returns
// "" when no browser stream is present yet.
func FindBrowserInput(listing string) string {
	index := ""
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Sink Input #"); ok {
			index = rest
			continue
		}
		for _, marker := range browserMarkers {
			if strings.Contains(line, marker) && index != "" {
				return index
			}
		}
	}
	return ""
}
