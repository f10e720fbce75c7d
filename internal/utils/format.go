package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FormatDuration formats a duration in a human-readable format
// Examples: "45ms", "1.5s", "2m 30s", "1h 15m"
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes < 60 {
		if seconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	minutes = minutes % 60
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

// FormatNumber formats a count with comma separators, e.g. 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var sb strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// Pluralize returns "1 vote" or "3 votes"
func Pluralize(n int, singular string) string {
	if n == 1 {
		return "1 " + singular
	}
	return FormatNumber(n) + " " + singular + "s"
}

// TruncateRunes cuts text to at most maxRunes runes, appending "..." when
// something was removed. Multi-byte characters are never split.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	i := 0
	for pos := range text {
		if i == maxRunes {
			return text[:pos] + "..."
		}
		i++
	}
	return text
}

// TruncateText flattens text onto one line and truncates it to maxLen runes
// including the trailing "...".
func TruncateText(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return TruncateRunes(text, maxLen-3)
}

// EscapeForLogging truncates text and escapes line breaks so it stays on
// one log line
func EscapeForLogging(text string, maxLen int) string {
	text = TruncateRunes(text, maxLen)
	return strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(text)
}
