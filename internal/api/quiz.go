package api

import (
	"errors"
	"net/http"
	"time"

	"docentgo/pkg/apisession"
	"docentgo/pkg/clock"
	"docentgo/pkg/quiz"
)

// QuizHandler runs the post-tour mission.
type QuizHandler struct {
	content  ContentSource
	sessions *apisession.Store[quiz.Session]
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(src ContentSource, clk clock.Clock, ttl time.Duration) *QuizHandler {
	return &QuizHandler{
		content:  src,
		sessions: apisession.New[quiz.Session](ttl, clk, nil),
	}
}

// CreateQuizRequest is the body of POST /api/quizzes.
type CreateQuizRequest struct {
	ThemeID string `json:"themeId"`
}

// QuizResponse pairs a session id with its state.
type QuizResponse struct {
	ID    string     `json:"id"`
	State quiz.State `json:"state"`
}

// AnswerResponse adds the verdict on the answer just given.
type AnswerResponse struct {
	QuizResponse
	Correct bool `json:"correct"`
}

// HandleCreate handles POST /api/quizzes. A theme without questions answers
// 404 with the visitor message.
func (h *QuizHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateQuizRequest
	if err := decodeJSON(r, &req); err != nil || req.ThemeID == "" {
		writeError(w, http.StatusBadRequest, "themeId is required")
		return
	}
	s, err := quiz.NewSession(h.content.GetQuizzes(r.Context(), req.ThemeID))
	if errors.Is(err, quiz.ErrNoQuizzes) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Message: quiz.NoQuizzesMessage})
		return
	}
	id := h.sessions.Create(s)
	writeJSON(w, http.StatusCreated, QuizResponse{ID: id, State: s.State()})
}

func (h *QuizHandler) lookup(w http.ResponseWriter, r *http.Request) (*quiz.Session, string, bool) {
	id := r.PathValue("id")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown quiz session")
		return nil, id, false
	}
	return s, id, true
}

// HandleGet handles GET /api/quizzes/{id}
func (h *QuizHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, QuizResponse{ID: id, State: s.State()})
}

// AnswerRequest is the body of POST /api/quizzes/{id}/answer.
type AnswerRequest struct {
	Option string `json:"option"`
}

// HandleAnswer handles POST /api/quizzes/{id}/answer
func (h *QuizHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	s, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	correct, err := s.Answer(req.Option)
	if err != nil {
		writeError(w, quizStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{QuizResponse: QuizResponse{ID: id, State: s.State()}, Correct: correct})
}

// HandleNext handles POST /api/quizzes/{id}/next
func (h *QuizHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	s, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Next(); err != nil {
		writeError(w, quizStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QuizResponse{ID: id, State: s.State()})
}

func quizStatus(err error) int {
	if errors.Is(err, quiz.ErrUnknownOption) {
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

// Cleanup evicts idle quiz sessions.
func (h *QuizHandler) Cleanup() int { return h.sessions.Cleanup() }

// Len reports the open quiz sessions.
func (h *QuizHandler) Len() int { return h.sessions.Len() }
