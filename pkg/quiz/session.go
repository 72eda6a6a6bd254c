// Package quiz runs the post-tour mission: one multiple-choice question at a
// time, feedback after every answer, and a final score.
package quiz

import (
	"errors"
	"math"
	"slices"
	"sync"

	"docentgo/pkg/model"
)

// Phase is where the visitor is within the current question.
type Phase string

const (
	PhaseAnswering Phase = "answering"
	PhaseFeedback  Phase = "feedback"
	PhaseComplete  Phase = "complete"
)

// NoQuizzesMessage is shown when a theme has no questions.
const NoQuizzesMessage = "이 테마에 대한 미션이 없습니다."

var (
	ErrNoQuizzes     = errors.New("quiz: theme has no questions")
	ErrAnswered      = errors.New("quiz: question already answered")
	ErrNotAnswered   = errors.New("quiz: question not answered yet")
	ErrComplete      = errors.New("quiz: session complete")
	ErrUnknownOption = errors.New("quiz: option not offered")
)

// State is a read-only view of a session.
type State struct {
	Phase    Phase       `json:"phase"`
	Index    int         `json:"index"`
	Total    int         `json:"total"`
	Score    int         `json:"score"`
	Question *model.Quiz `json:"question,omitempty"`
	Selected string      `json:"selected,omitempty"`
	// Correct is only meaningful in the feedback phase.
	Correct bool `json:"correct"`
	Percent int  `json:"percent"`
}

// Session walks a fixed list of questions. Safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	quizzes  []model.Quiz
	index    int
	score    int
	selected string
	phase    Phase
}

// NewSession starts at the first question. An empty list is an error so the
// caller can show NoQuizzesMessage instead of an empty mission.
func NewSession(quizzes []model.Quiz) (*Session, error) {
	if len(quizzes) == 0 {
		return nil, ErrNoQuizzes
	}
	return &Session{
		quizzes: slices.Clone(quizzes),
		phase:   PhaseAnswering,
	}, nil
}

// Answer records the visitor's pick for the current question. The first
// answer is final; later calls return ErrAnswered until Next.
func (s *Session) Answer(option string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseComplete:
		return false, ErrComplete
	case PhaseFeedback:
		return false, ErrAnswered
	}

	q := s.quizzes[s.index]
	if !slices.Contains(q.Options, option) {
		return false, ErrUnknownOption
	}
	s.selected = option
	s.phase = PhaseFeedback
	correct := option == q.CorrectAnswer
	if correct {
		s.score++
	}
	return correct, nil
}

// Next leaves the feedback phase, either to the following question or to
// completion after the last one.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseComplete:
		return ErrComplete
	case PhaseAnswering:
		return ErrNotAnswered
	}

	s.selected = ""
	if s.index < len(s.quizzes)-1 {
		s.index++
		s.phase = PhaseAnswering
		return nil
	}
	s.phase = PhaseComplete
	return nil
}

// Result returns the final score. ok is false until the session completes.
func (s *Session) Result() (score, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, len(s.quizzes), s.phase == PhaseComplete
}

// State snapshots the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Phase:    s.phase,
		Index:    s.index,
		Total:    len(s.quizzes),
		Score:    s.score,
		Selected: s.selected,
		Percent:  Percentage(s.score, len(s.quizzes)),
	}
	if s.phase != PhaseComplete {
		q := s.quizzes[s.index]
		st.Question = &q
		st.Correct = s.phase == PhaseFeedback && s.selected == q.CorrectAnswer
	}
	return st
}

// Percentage is score/total rounded to the nearest whole percent.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
