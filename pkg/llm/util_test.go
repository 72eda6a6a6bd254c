package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"NoWrap", "short text", 20, "short text"},
		{"Wraps", "one two three four", 9, "one two\nthree\nfour"},
		{"KeepsNewlines", "a b\nc d", 10, "a b\nc d"},
		{"Hangul", "가나다 라마바 사아자", 7, "가나다 라마바\n사아자"},
		{"ZeroWidth", "unchanged", 0, "unchanged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordWrap(tt.input, tt.width))
		})
	}
}

func TestTruncateLines(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLines int
		want     string
	}{
		{"DefaultThree", "1\n2\n3\n4\n5", 0, "1\n2\n3"},
		{"SkipsBlank", "1\n\n2\n\n3\n\n4", 3, "1\n2\n3"},
		{"CRLF", "a\r\nb\r\nc", 2, "a\nb"},
		{"Capped", strings.Repeat("x\n", 30), 50, strings.TrimSuffix(strings.Repeat("x\n", 20), "\n")},
		{"Short", "only", 5, "only"},
		{"AllBlank", "\n\n", 3, "\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateLines(tt.text, tt.maxLines))
		})
	}
}

func TestClampMaxLines(t *testing.T) {
	assert.Equal(t, 3, ClampMaxLines(-1))
	assert.Equal(t, 3, ClampMaxLines(0))
	assert.Equal(t, 7, ClampMaxLines(7))
	assert.Equal(t, 20, ClampMaxLines(21))
}

func TestMergeStream(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "SSEAnswerFields",
			body: "data: {\"answer\":\"거북선은\"}\n\ndata: {\"answer\":\"철갑선입니다.\"}\n\ndata: [DONE]\n",
			want: "거북선은 철갑선입니다.",
		},
		{
			name: "FieldPreference",
			body: "{\"text\":\"t\",\"answer\":\"a1\"}\n{\"content\":\"c1\"}\n{\"delta\":\"d1\"}",
			want: "a1 c1 d1",
		},
		{
			name: "TokenPerLine",
			body: "data: 안\ndata: 녕\ndata: 하\ndata: 세\ndata: 요\n",
			want: "안녕하세요",
		},
		{
			name: "PunctuationSpacing",
			body: "data: \"첫째,둘째.셋째!끝\"\n",
			want: "첫째, 둘째. 셋째! 끝",
		},
		{
			name: "PlainText",
			body: "line one\r\nline   two\r\n",
			want: "line one line two",
		},
		{
			name: "UnknownObject",
			body: "{\"score\":1}",
			want: "{\"score\":1}",
		},
		{
			name: "Empty",
			body: "data: [DONE]\n\n",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeStream(tt.body))
		})
	}
}

func TestNeedsSpacing(t *testing.T) {
	assert.True(t, NeedsSpacing("거북선은조선시대의철갑선으로이순신장군이사용했습니다"))
	assert.False(t, NeedsSpacing("거북선은 조선 시대의 철갑선 으로 이순신 장군이 사용 했습니다"))
	assert.False(t, NeedsSpacing("plainenglishwithoutspaces"))
	assert.False(t, NeedsSpacing(""))
}
