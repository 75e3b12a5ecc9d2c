package llm

import (
	"regexp"
	"strings"
)

var (
	markdownSyntaxRe = regexp.MustCompile("[*_`#>]+")
	bulletPrefixRe   = regexp.MustCompile(`(?m)^[\s•\-]+`)
	lineBreakRe      = regexp.MustCompile(`[\n\t]+`)
	multiSpaceRe     = regexp.MustCompile(`\s{2,}`)
)

// CleanForSpeech strips markdown syntax, bullet markers, and excessive
// whitespace from model output so it can be fed to a TTS engine or shown as a
// single line. The result is a flat, space-separated sentence stream.
func CleanForSpeech(text string) string {
	if text == "" {
		return ""
	}
	text = markdownSyntaxRe.ReplaceAllString(text, "")
	text = bulletPrefixRe.ReplaceAllString(text, "")
	text = lineBreakRe.ReplaceAllString(text, " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
