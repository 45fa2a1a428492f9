package sqlcheck

import (
	"regexp"
	"strings"
)

// Stage is a pure text transform. Every stage must be idempotent:
// applying it twice yields the same result as applying it once.
type Stage func(string) string

// Apply runs the stages left to right
func Apply(text string, stages ...Stage) string {
	for _, stage := range stages {
		text = stage(text)
	}
	return text
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

// StripFences removes markdown code-fence markers around the text.
// Model output frequently wraps SQL in ```sql ... ``` despite
// instructions not to.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unpaired fence markers are dropped as well
	return strings.TrimSpace(strings.ReplaceAll(trimmed, "```", ""))
}

// TrimSpace removes leading and trailing whitespace
func TrimSpace(text string) string {
	return strings.TrimSpace(text)
}

var partNumberPattern = regexp.MustCompile(`\b(PART-\d+)\b`)

// MaskPartNumbers replaces part-number identifiers in a question before
// it leaves the process, so internal product identifiers are never sent
// to a completion backend
func MaskPartNumbers(text string) string {
	return partNumberPattern.ReplaceAllString(text, "[MASKED]")
}
