// Package claim handles the prize sign-up at the end of a mission.
package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"docentgo/pkg/clock"
	"docentgo/pkg/model"
	"docentgo/pkg/request"
	"docentgo/pkg/store"
)

// Messages shown to the visitor.
const (
	MsgInvalidEmail = "유효한 이메일 주소를 입력해주세요."
	MsgTermsMissing = "개인정보 수집/이용 동의가 필요합니다. 약관을 확인해주세요."
	MsgFailed       = "신청 중 오류가 발생했습니다. 나중에 다시 시도해주세요."
	MsgAccepted     = "신청이 접수되었습니다. 이메일을 확인해주세요."
)

// LastEmailKey is the state key holding the most recent successful address.
const LastEmailKey = "lastPrizeEmail"

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Form is what the visitor fills in.
type Form struct {
	Email          string `json:"email"`
	TermsAccepted  bool   `json:"termsAccepted"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
}

// ValidationError rejects a form before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("claim: invalid %s: %s", e.Field, e.Message)
}

// SubmissionError means the recipient service refused or could not be
// reached. The form is left untouched and may be submitted again.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("claim: submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Validate checks the email first, then the terms checkbox.
func (f Form) Validate() error {
	if !emailPattern.MatchString(f.Email) {
		return &ValidationError{Field: "email", Message: MsgInvalidEmail}
	}
	if !f.TermsAccepted {
		return &ValidationError{Field: "terms", Message: MsgTermsMissing}
	}
	return nil
}

// Receipt is returned for an accepted claim.
type Receipt struct {
	Message    string           `json:"message"`
	Submission model.Submission `json:"submission"`
}

// Service posts claims to the recipient endpoint and keeps the local log.
type Service struct {
	rc    *request.Client
	url   string
	subs  store.SubmissionStore
	state store.StateStore
	clk   clock.Clock
}

// NewService builds a Service posting to url.
func NewService(rc *request.Client, url string, subs store.SubmissionStore, state store.StateStore, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{rc: rc, url: url, subs: subs, state: state, clk: clk}
}

type recipientPayload struct {
	Email          string `json:"email"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
}

// Submit validates and sends the form. The POST is attempted once; a
// claim is not idempotent on the recipient side.
func (s *Service) Submit(ctx context.Context, f Form) (*Receipt, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(recipientPayload{Email: f.Email, Score: f.Score, TotalQuestions: f.TotalQuestions})
	if err != nil {
		return nil, err
	}
	resp, err := s.rc.Stream(ctx, http.MethodPost, s.url, body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		slog.Warn("Claim rejected", "error", err)
		return nil, &SubmissionError{Message: MsgFailed, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SubmissionError{Message: MsgFailed, Err: err}
	}
	if !json.Valid(raw) {
		raw = []byte("{}")
	}

	sub := model.Submission{
		Timestamp:      s.clk.Now().UTC(),
		Email:          f.Email,
		Score:          f.Score,
		TotalQuestions: f.TotalQuestions,
		Response:       raw,
	}
	// The service accepted the claim; local bookkeeping failures are logged only.
	if err := s.state.SetState(ctx, LastEmailKey, f.Email); err != nil {
		slog.Warn("Failed to remember claim email", "error", err)
	}
	if err := s.subs.AppendSubmission(ctx, &sub); err != nil {
		slog.Warn("Failed to save submission locally", "error", err)
	}
	slog.Info("Claim accepted", "score", f.Score, "total", f.TotalQuestions)
	return &Receipt{Message: MsgAccepted, Submission: sub}, nil
}

// LastEmail returns the address of the latest accepted claim, if any.
func (s *Service) LastEmail(ctx context.Context) string {
	v, _ := s.state.GetState(ctx, LastEmailKey)
	return v
}

// Submissions lists the local log in insertion order.
func (s *Service) Submissions(ctx context.Context) ([]model.Submission, error) {
	subs, err := s.subs.ListSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// VisitorMessage maps an error from Submit to the text shown on screen.
func VisitorMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return MsgFailed
}
