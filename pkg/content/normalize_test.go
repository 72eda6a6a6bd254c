package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveAnswer(t *testing.T) {
	abc := []string{"a", "b", "c"}
	tests := []struct {
		name    string
		answer  any
		options []string
		want    string
	}{
		{"NumericStringZeroBased", "2", abc, "c"},
		{"NumericZero", json.Number("0"), abc, "a"},
		{"IntFromYAML", 1, abc, "b"},
		{"OneBasedLast", "3", abc, "c"},
		{"OutOfRange", "7", abc, "7"},
		{"Literal", "b", abc, "b"},
		{"NumericLiteralWins", "2", []string{"1", "2", "3"}, "2"},
		{"NoOptions", "1", nil, "1"},
		{"Nil", nil, abc, ""},
		{"Trimmed", " c ", abc, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAnswer(tt.answer, tt.options))
		})
	}
}

func TestNormalizeQuiz_Options(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{
			name: "Array",
			raw:  map[string]any{"options": []any{"x", " y ", "", json.Number("3")}},
			want: []string{"x", "y", "3"},
		},
		{
			name: "MapValuesKeySorted",
			raw:  map[string]any{"choices": map[string]any{"2": "second", "1": "first"}},
			want: []string{"first", "second"},
		},
		{
			name: "EscapedNewlineString",
			raw:  map[string]any{"option_list": `one\ntwo|three, four`},
			want: []string{"one", "two", "three", "four"},
		},
		{
			name: "LetterKeys",
			raw:  map[string]any{"a": "alpha", "b": "beta", "D": "delta"},
			want: []string{"alpha", "beta", "delta"},
		},
		{
			name: "None",
			raw:  map[string]any{"question": "q"},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuiz(tt.raw, 0).Options)
		})
	}
}

func TestNormalizeQuiz_Defaults(t *testing.T) {
	q := NormalizeQuiz(map[string]any{
		"question_text": "어느 쪽?",
		"answers":       []any{"왼쪽", "오른쪽"},
		"correct":       json.Number("1"),
	}, 4)
	assert.Equal(t, "어느 쪽?", q.Question)
	assert.Equal(t, "오른쪽", q.CorrectAnswer)

	q = NormalizeQuiz(map[string]any{}, 4)
	assert.Equal(t, "문제 5", q.Question)
}

func TestNormalizeTheme(t *testing.T) {
	th := NormalizeTheme(map[string]any{
		"theme_id":       json.Number("7"),
		"theme_name":     "곤룡포",
		"theme_desc":     "짧은 설명",
		"context_prompt": "전문가",
		"sectionVideos": []any{
			"/v/1.mp4",
			map[string]any{"video_src": "/v/2.mp4"},
			"/v/1.mp4",
		},
	})
	assert.Equal(t, "7", th.ID)
	assert.Equal(t, "곤룡포", th.Title)
	assert.Equal(t, "짧은 설명", th.Description)
	assert.Equal(t, "짧은 설명", th.LongDescription, "long description falls back to theme_desc")
	assert.Equal(t, "전문가", th.ContextPrompt)
	assert.Equal(t, []string{"/v/1.mp4", "/v/2.mp4"}, th.Playlist)
}

func TestNormalizeTheme_SectionPlaylist(t *testing.T) {
	th := NormalizeTheme(map[string]any{
		"id": "x",
		"slides": []any{
			map[string]any{"media": map[string]any{"url": "/s/a.mp4"}},
			map[string]any{"title": "no video"},
			map[string]any{"file": "/s/b.mp4"},
		},
	})
	assert.Equal(t, []string{"/s/a.mp4", "/s/b.mp4"}, th.Playlist)
}

func TestNormalizeItem(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		idx       int
		wantID    string
		wantName  string
		wantVideo string
	}{
		{
			name:      "Canonical",
			raw:       map[string]any{"item_id": "i1", "item_name": "거북선", "video": "/v.mp4"},
			wantID:    "i1",
			wantName:  "거북선",
			wantVideo: "/v.mp4",
		},
		{
			name:      "Synthesized",
			raw:       map[string]any{"video": ""},
			idx:       2,
			wantID:    "itm_2",
			wantName:  "코스 3",
			wantVideo: "",
		},
		{
			name:      "NestedMedia",
			raw:       map[string]any{"id": json.Number("12"), "title": "판옥선", "media": map[string]any{"video": "/m.mp4"}},
			wantID:    "12",
			wantName:  "판옥선",
			wantVideo: "/m.mp4",
		},
		{
			name:      "RawMedia",
			raw:       map[string]any{"itemId": "z", "raw": map[string]any{"media_url": "/r.mp4"}},
			wantID:    "z",
			wantName:  "코스 1",
			wantVideo: "/r.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NormalizeItem(tt.raw, tt.idx)
			assert.Equal(t, tt.wantID, it.ID)
			assert.Equal(t, tt.wantName, it.Name)
			assert.Equal(t, tt.wantVideo, it.Video)
		})
	}
}

func TestNormalizeItem_Scripts(t *testing.T) {
	it := NormalizeItem(map[string]any{
		"scriptChild":    `첫째 줄\n둘째 줄`,
		"script_general": "<p>일반 <b>해설</b></p>",
		"item_desc":      "설명",
	}, 0)
	assert.Equal(t, "첫째 줄\n둘째 줄", it.ScriptChild)
	assert.Equal(t, "일반 해설", it.ScriptGeneral)
	assert.Equal(t, "설명", it.Description)
}
