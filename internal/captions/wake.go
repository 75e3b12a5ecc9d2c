package captions

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a caption
// window to count as the wake phrase. Live captions routinely mis-hear a word
// of the phrase, so exact substring matching alone misses real invocations.
const defaultFuzzyThreshold = 0.84

// WakeDetector recognizes the configured wake phrase in finalized caption
// text, by case-insensitive substring or by fuzzy similarity over a sliding
// word window. Read-only after construction; safe for concurrent use.
type WakeDetector struct {
	phrase    string
	words     int
	threshold float64
}

// NewWakeDetector builds a detector for phrase. An empty phrase never matches.
func NewWakeDetector(phrase string) *WakeDetector {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	return &WakeDetector{
		phrase:    normalized,
		words:     len(strings.Fields(normalized)),
		threshold: defaultFuzzyThreshold,
	}
}

// Match reports whether text contains the wake phrase.
func (d *WakeDetector) Match(text string) bool {
	if d.phrase == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, d.phrase) {
		return true
	}

	// Slide a window of the phrase's word count across the text and accept
	// any window that is close enough.
	fields := strings.Fields(lower)
	if len(fields) < d.words {
		return matchr.JaroWinkler(strings.Join(fields, " "), d.phrase, false) >= d.threshold
	}
	for i := 0; i+d.words <= len(fields); i++ {
		window := strings.Join(fields[i:i+d.words], " ")
		if matchr.JaroWinkler(window, d.phrase, false) >= d.threshold {
			return true
		}
	}
	return false
}
