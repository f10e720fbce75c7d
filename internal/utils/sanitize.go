package utils

import (
	"regexp"
	"strings"
)

var (
	// Control characters (except tab, newline and carriage return)
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Zero-width and bidi override characters that hide text from readers
	invisibleCharPattern = regexp.MustCompile("[\u200B-\u200F\u202A-\u202E\u2060-\u2064\uFEFF]")

	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// SanitizationResult contains the sanitized text and whether it changed
type SanitizationResult struct {
	Text     string
	Modified bool
}

// SanitizeUserText cleans post text written by end users before it is shown
// to the duplicate assessor: control and invisible characters are removed,
// line endings are normalized and runs of blank lines are collapsed.
func SanitizeUserText(text string) *SanitizationResult {
	result := &SanitizationResult{Text: text}
	if text == "" {
		return result
	}

	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = controlCharPattern.ReplaceAllString(cleaned, "")
	cleaned = invisibleCharPattern.ReplaceAllString(cleaned, "")
	cleaned = blankLinesPattern.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)

	result.Text = cleaned
	result.Modified = cleaned != text
	return result
}

// ContainsInvisibleContent reports whether text carries characters that
// SanitizeUserText would strip
func ContainsInvisibleContent(text string) bool {
	return controlCharPattern.MatchString(text) || invisibleCharPattern.MatchString(text)
}
