package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"docentgo/pkg/model"
)

// Field priority lists. Backends disagree on naming, so each model field is
// read from the first key in its list that holds a non-empty value.
// Dotted keys descend into nested objects.
var (
	themeIDKeys       = []string{"theme_id", "id", "ThemeID", "themeId"}
	themeTitleKeys    = []string{"theme_name", "title", "ThemeName", "themeName"}
	themeDescKeys     = []string{"theme_desc", "description", "ThemeDesc", "themeDesc"}
	themeLongDescKeys = []string{"long_description", "theme_desc", "longDescription", "description"}
	themePromptKeys   = []string{"context_prompt", "contextPrompt"}

	playlistKeys = []string{"sectionVideos", "section_videos", "videos", "videoList"}
	sectionKeys  = []string{"sections", "sliderSections", "slides"}

	itemIDKeys   = []string{"item_id", "id", "itemId", "item_idx"}
	itemNameKeys = []string{"item_name", "name", "title", "itemName"}
	videoKeys    = []string{
		"video", "video_src", "videoUrl", "src", "file",
		"media.video", "media.url",
		"raw.video", "raw.video_src", "raw.media.video", "raw.media_url",
	}
	scriptChildKeys   = []string{"script_child", "scriptChild"}
	scriptGeneralKeys = []string{"script_general", "scriptGeneral"}
	itemDescKeys      = []string{"item_desc", "itemDesc"}

	questionKeys = []string{"question", "question_text", "prompt", "title", "q"}
	optionKeys   = []string{"options", "choices", "answers", "option_list", "items", "answer_list", "option"}
	answerKeys   = []string{"correctAnswer", "answer", "correct", "correct_answer", "key", "solution", "correctOption"}
	letterKeys   = []string{"a", "b", "c", "d", "A", "B", "C", "D"}
)

// NormalizeTheme maps one backend theme record onto model.Theme.
func NormalizeTheme(raw map[string]any) model.Theme {
	return model.Theme{
		ID:              firstString(raw, themeIDKeys...),
		Title:           firstString(raw, themeTitleKeys...),
		Description:     firstString(raw, themeDescKeys...),
		LongDescription: firstString(raw, themeLongDescKeys...),
		ContextPrompt:   firstString(raw, themePromptKeys...),
		Playlist:        extractPlaylist(raw),
		Raw:             raw,
	}
}

// NormalizeItem maps one backend item record onto model.Item.
// idx is the record position, used for synthesized ids and names.
func NormalizeItem(raw map[string]any, idx int) model.Item {
	it := model.Item{
		ID:            firstString(raw, itemIDKeys...),
		Name:          firstString(raw, itemNameKeys...),
		Video:         firstString(raw, videoKeys...),
		ScriptChild:   Scrub(firstString(raw, scriptChildKeys...)),
		ScriptGeneral: Scrub(firstString(raw, scriptGeneralKeys...)),
		Description:   Scrub(firstString(raw, itemDescKeys...)),
		Playlist:      extractPlaylist(raw),
		Raw:           raw,
	}
	if it.ID == "" {
		it.ID = fmt.Sprintf("itm_%d", idx)
	}
	if it.Name == "" {
		it.Name = fmt.Sprintf("코스 %d", idx+1)
	}
	return it
}

// NormalizeQuiz maps one backend quiz record onto model.Quiz.
func NormalizeQuiz(raw map[string]any, idx int) model.Quiz {
	q := model.Quiz{
		Question: firstString(raw, questionKeys...),
		Options:  extractOptions(raw),
	}
	if q.Question == "" {
		q.Question = fmt.Sprintf("문제 %d", idx+1)
	}
	answer, _ := lookup(raw, answerKeys...)
	q.CorrectAnswer = ResolveAnswer(answer, q.Options)
	return q
}

var digits = regexp.MustCompile(`^[0-9]+$`)

// ResolveAnswer turns a stored answer into the literal option text.
//
// An answer equal to one of the options is returned as is. A numeric answer n
// is read as a 0-based index when 0 <= n < len(options); n == len(options) is
// read as a 1-based index to the last option. Anything else is returned verbatim.
func ResolveAnswer(answer any, options []string) string {
	s := strings.TrimSpace(stringify(answer))
	for _, o := range options {
		if o == s {
			return s
		}
	}
	if !digits.MatchString(s) || len(options) == 0 {
		return s
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	switch {
	case n < len(options):
		return options[n]
	case n == len(options):
		return options[n-1]
	}
	return s
}

func extractOptions(raw map[string]any) []string {
	v, ok := lookup(raw, optionKeys...)
	if !ok {
		return guessLetterOptions(raw)
	}

	switch opts := v.(type) {
	case []any:
		return cleanList(opts)
	case []string:
		out := make([]any, len(opts))
		for i, o := range opts {
			out[i] = o
		}
		return cleanList(out)
	case map[string]any:
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]any, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, opts[k])
		}
		return cleanList(vals)
	case string:
		return splitOptions(opts)
	}
	return guessLetterOptions(raw)
}

var optionSep = regexp.MustCompile(`\r?\n|\||,`)

func splitOptions(s string) []string {
	s = UnescapeNewlines(s)
	var out []string
	for _, part := range optionSep.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func guessLetterOptions(raw map[string]any) []string {
	var out []string
	for _, k := range letterKeys {
		if s := stringify(raw[k]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanList(in []any) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if s := strings.TrimSpace(stringify(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractPlaylist collects section videos in order, deduplicated.
func extractPlaylist(raw map[string]any) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	if v, ok := lookup(raw, playlistKeys...); ok {
		if list, ok := v.([]any); ok {
			for _, entry := range list {
				switch e := entry.(type) {
				case string:
					add(strings.TrimSpace(e))
				case map[string]any:
					add(firstString(e, videoKeys...))
				}
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	if v, ok := lookup(raw, sectionKeys...); ok {
		if list, ok := v.([]any); ok {
			for _, entry := range list {
				if m, ok := entry.(map[string]any); ok {
					add(firstString(m, videoKeys...))
				}
			}
		}
	}
	return out
}

// UnescapeNewlines turns literal "\n" sequences stored by some backends into real newlines.
func UnescapeNewlines(s string) string {
	return strings.NewReplacer(`\r\n`, "\n", `\r`, "\n", `\n`, "\n").Replace(s)
}

// firstString returns the first non-empty string value among keys.
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringify(path(raw, k))); s != "" {
			return s
		}
	}
	return ""
}

// lookup returns the first non-nil value among keys.
func lookup(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v := path(raw, k); v != nil {
			return v, true
		}
	}
	return nil, false
}

func path(raw map[string]any, key string) any {
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		return ""
	}
	return fmt.Sprint(v)
}

// asRecords accepts an array of objects, a single object, or null.
func asRecords(v any) []map[string]any {
	switch x := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(x))
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{x}
	}
	return nil
}
