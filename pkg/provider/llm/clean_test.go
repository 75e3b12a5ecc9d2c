package llm

import "testing"

func TestCleanForSpeech(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "The answer is 42.", "The answer is 42."},
		{"bold and italic", "The **answer** is _42_.", "The answer is 42."},
		{"heading and quote", "# Summary\n> quoted line", "Summary quoted line"},
		{"bullets", "- first point\n- second point", "first point second point"},
		{"code fence", "```go\nfmt.Println(42)\n```", "fmt.Println(42)"},
		{"whitespace collapse", "too   many\n\n\tspaces", "too many spaces"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CleanForSpeech(c.in); got != c.want {
				t.Errorf("CleanForSpeech(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}
