package summarize

import "strings"

// SplitText splits text into windows of at most chunkSize characters with
// roughly overlap characters carried between adjacent windows. Split points
// prefer paragraph breaks, then line breaks, then word boundaries, so chunks
// stay readable for the model. A non-positive chunkSize yields the whole text
// as one chunk.
func SplitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 || len(text) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		cut := findSplit(text[start:end])
		if cut <= 0 {
			cut = chunkSize
		}
		chunks = append(chunks, strings.TrimSpace(text[start:start+cut]))

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}

	// Drop empties produced by trimming.
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// findSplit returns the best split position within window, preferring the
// last paragraph break, then the last newline, then the last space.
func findSplit(window string) int {
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i + len(sep)
		}
	}
	return -1
}
