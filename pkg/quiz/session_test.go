package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/model"
)

func sampleQuizzes() []model.Quiz {
	return []model.Quiz{
		{Question: "거북선을 만든 사람은?", Options: []string{"이순신", "세종대왕", "장영실"}, CorrectAnswer: "이순신"},
		{Question: "한글을 만든 왕은?", Options: []string{"태조", "세종대왕"}, CorrectAnswer: "세종대왕"},
		{Question: "측우기를 만든 사람은?", Options: []string{"장영실", "정약용"}, CorrectAnswer: "장영실"},
	}
}

func TestNewSession_Empty(t *testing.T) {
	s, err := NewSession(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNoQuizzes)
}

func TestSession_FullRun(t *testing.T) {
	tests := []struct {
		name      string
		answers   []string
		wantScore int
		wantPct   int
	}{
		{"AllCorrect", []string{"이순신", "세종대왕", "장영실"}, 3, 100},
		{"OneCorrect", []string{"장영실", "세종대왕", "정약용"}, 1, 33},
		{"NoneCorrect", []string{"세종대왕", "태조", "정약용"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(sampleQuizzes())
			require.NoError(t, err)

			for i, a := range tt.answers {
				st := s.State()
				assert.Equal(t, PhaseAnswering, st.Phase)
				assert.Equal(t, i, st.Index)

				_, err := s.Answer(a)
				require.NoError(t, err)
				assert.Equal(t, PhaseFeedback, s.State().Phase)
				require.NoError(t, s.Next())
			}

			score, total, ok := s.Result()
			assert.True(t, ok)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, 3, total)

			st := s.State()
			assert.Equal(t, PhaseComplete, st.Phase)
			assert.Nil(t, st.Question)
			assert.Equal(t, tt.wantPct, st.Percent)
		})
	}
}

func TestSession_Guards(t *testing.T) {
	s, err := NewSession(sampleQuizzes()[:1])
	require.NoError(t, err)

	assert.ErrorIs(t, s.Next(), ErrNotAnswered)

	_, err = s.Answer("없는 보기")
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Equal(t, PhaseAnswering, s.State().Phase)

	correct, err := s.Answer("이순신")
	require.NoError(t, err)
	assert.True(t, correct)

	// A second tap during feedback must not change the score.
	_, err = s.Answer("세종대왕")
	assert.ErrorIs(t, err, ErrAnswered)
	st := s.State()
	assert.Equal(t, "이순신", st.Selected)
	assert.True(t, st.Correct)
	assert.Equal(t, 1, st.Score)

	_, _, ok := s.Result()
	assert.False(t, ok)

	require.NoError(t, s.Next())
	assert.ErrorIs(t, s.Next(), ErrComplete)
	_, err = s.Answer("이순신")
	assert.ErrorIs(t, err, ErrComplete)
}

func TestSession_DoesNotAliasInput(t *testing.T) {
	qs := sampleQuizzes()
	s, err := NewSession(qs)
	require.NoError(t, err)
	qs[0] = model.Quiz{Question: "changed"}
	assert.Equal(t, "거북선을 만든 사람은?", s.State().Question.Question)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.score, tt.total), "%d/%d", tt.score, tt.total)
	}
}
