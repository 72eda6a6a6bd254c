package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Line limits for non-stream replies.
const (
	DefaultMaxLines = 3
	MaxMaxLines     = 20
)

// WordWrap wraps text at the specified width.
func WordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		currentLineLength := 0
		for j, word := range words {
			n := utf8.RuneCountInString(word)
			if j > 0 {
				if currentLineLength+n+1 > width {
					result.WriteString("\n")
					currentLineLength = 0
				} else {
					result.WriteString(" ")
					currentLineLength++
				}
			}
			result.WriteString(word)
			currentLineLength += n
		}
	}

	return result.String()
}

// ClampMaxLines maps a requested line limit to the allowed range.
// Non-positive values select the default.
func ClampMaxLines(n int) int {
	if n <= 0 {
		return DefaultMaxLines
	}
	if n > MaxMaxLines {
		return MaxMaxLines
	}
	return n
}

// TruncateLines keeps the first maxLines non-empty lines of text.
// Text without non-empty lines is cut by raw lines instead.
func TruncateLines(text string, maxLines int) string {
	maxLines = ClampMaxLines(maxLines)
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var kept []string
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		kept = raw
	}
	if len(kept) > maxLines {
		kept = kept[:maxLines]
	}
	return strings.Join(kept, "\n")
}

var (
	dataPrefix     = regexp.MustCompile(`(?i)^\s*data:\s*`)
	whitespaceRuns = regexp.MustCompile(`\s{2,}`)
)

// MergeStream flattens an event-stream or line-oriented body into one
// paragraph. JSON lines contribute their answer, text, content or delta
// field. Token-per-line bodies are joined without spaces.
func MergeStream(body string) string {
	var parts []string
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if line == "" || strings.TrimSpace(line) == "[DONE]" {
			continue
		}
		if dataPrefix.MatchString(line) {
			line = dataPrefix.ReplaceAllString(line, "")
			if line == "" || strings.TrimSpace(line) == "[DONE]" {
				continue
			}
		}
		parts = append(parts, streamPart(line))
	}
	if len(parts) == 0 {
		return ""
	}

	single := 0
	for _, p := range parts {
		if utf8.RuneCountInString(strings.TrimSpace(p)) <= 1 {
			single++
		}
	}
	sep := " "
	if float64(single)/float64(len(parts)) > 0.6 {
		sep = ""
	}

	merged := strings.Join(parts, sep)
	merged = spaceAfterPunct(merged)
	merged = whitespaceRuns.ReplaceAllString(merged, " ")
	return strings.TrimSpace(merged)
}

func spaceAfterPunct(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		switch r {
		case ',', '.', '!', '?':
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

func streamPart(line string) string {
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return line
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"answer", "text", "content", "delta"} {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
		b, _ := json.Marshal(t)
		return string(b)
	case nil:
		return "null"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// NeedsSpacing reports whether mostly-Hangul text has too few spaces to read
// naturally.
func NeedsSpacing(text string) bool {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	var hangul, spaces int
	for _, r := range text {
		switch {
		case r >= 0xAC00 && r <= 0xD7AF:
			hangul++
		case r == ' ' || r == '\t' || r == '\n':
			spaces++
		}
	}
	return float64(hangul)/float64(total) > 0.2 && float64(spaces)/float64(total) < 0.18
}
