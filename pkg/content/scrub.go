package content

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var blankRun = regexp.MustCompile(`\n{3,}`)

// Scrub strips markup from narration scripts and unescapes stored newlines.
// Block elements and <br> become line breaks. Plain text passes through untouched
// apart from newline unescaping.
func Scrub(s string) string {
	s = UnescapeNewlines(s)
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			out := blankRun.ReplaceAllString(b.String(), "\n\n")
			return strings.TrimSpace(out)
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if tt == html.StartTagToken {
					skip++
				}
			case "br":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "h1", "h2", "h3", "h4", "section":
				b.WriteByte('\n')
			}
		}
	}
}
