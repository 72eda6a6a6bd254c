package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/chat"
	"docentgo/pkg/clock"
	"docentgo/pkg/config"
	"docentgo/pkg/llm/prompts"
)

type scriptedTransport struct {
	mu       sync.Mutex
	requests []chat.Request
	err      error
	reply    string
}

func (s *scriptedTransport) Complete(_ context.Context, req chat.Request) (*chat.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	body := `data: {"event":"start"}` + "\n\n" +
		`data: {"event":"delta","text":"` + s.reply + `"}` + "\n\n" +
		`data: {"event":"complete","text":"` + s.reply + `"}` + "\n\n"
	return &chat.Response{
		Body:        io.NopCloser(strings.NewReader(body)),
		ContentType: "text/event-stream",
	}, nil
}

func newConversationMux(t *testing.T, tr chat.Transport) (http.Handler, *ConversationHandler) {
	t.Helper()
	pm, err := prompts.NewManager("")
	require.NoError(t, err)
	h := NewConversationHandler(newFakeContent(), pm, tr, nil,
		clock.NewFake(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)),
		ChatSettings{
			Typewriter: chat.DefaultTypewriterConfig(),
			Stream:     true,
			MaxLines:   4,
			TTL:        time.Hour,
		})
	t.Cleanup(h.Close)
	return NewMux(config.ServerConfig{}, Handlers{Conversations: h}, nil), h
}

func TestConversation_AskAndAnswer(t *testing.T) {
	tr := &scriptedTransport{reply: "측우기는 세종 때 만들어졌습니다."}
	mux, h := newConversationMux(t, tr)

	var conv ConversationResponse
	rec := do(t, mux, "POST", "/api/conversations", CreateConversationRequest{ThemeID: "joseon"}, &conv)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, chat.Greeting("조선의 과학"), conv.Messages[0].Text)
	assert.Equal(t, 1, h.Len())

	var after ConversationResponse
	rec = do(t, mux, "POST", "/api/conversations/"+conv.ID+"/messages", SendRequest{Text: "측우기는 언제?"}, &after)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, after.Messages, 3)
	assert.Equal(t, chat.SenderUser, after.Messages[1].Sender)
	assert.Equal(t, "측우기는 세종 때 만들어졌습니다.", after.Messages[2].Text)
	assert.False(t, after.Busy)

	require.Len(t, tr.requests, 1)
	assert.True(t, tr.requests[0].Stream)
	assert.Equal(t, 4, tr.requests[0].MaxLines)
	assert.Contains(t, tr.requests[0].SystemInstruction, "측우기")
}

func TestConversation_Errors(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("upstream down")}
	mux, _ := newConversationMux(t, tr)

	rec := do(t, mux, "POST", "/api/conversations", CreateConversationRequest{ThemeID: "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var conv ConversationResponse
	do(t, mux, "POST", "/api/conversations", CreateConversationRequest{ThemeID: "joseon"}, &conv)
	path := "/api/conversations/" + conv.ID + "/messages"

	rec = do(t, mux, "POST", path, SendRequest{Text: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var failed struct {
		ConversationResponse
		Error string `json:"error"`
	}
	rec = do(t, mux, "POST", path, SendRequest{Text: "안녕"}, &failed)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, failed.Error, "upstream down")
	require.Len(t, failed.Messages, 3)
	assert.Equal(t, chat.Apology, failed.Messages[2].Text)

	rec = do(t, mux, "DELETE", "/api/conversations/"+conv.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, mux, "POST", path, SendRequest{Text: "안녕"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
