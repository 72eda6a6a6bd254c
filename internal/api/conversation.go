package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docentgo/pkg/apisession"
	"docentgo/pkg/chat"
	"docentgo/pkg/clock"
	"docentgo/pkg/model"
	"docentgo/pkg/speech"
)

// InstructionBuilder renders the system instruction for a theme.
type InstructionBuilder interface {
	SystemInstruction(theme model.Theme, items []model.Item) (string, error)
}

// ChatSettings are the shared knobs every conversation is built with.
type ChatSettings struct {
	Typewriter     chat.TypewriterConfig
	Stream         bool
	MaxLines       int
	UseBackendChat bool
	SpeakReplies   bool
	Voice          speech.Params
	Policy         speech.RetryPolicy
	TTL            time.Duration
	ReplyTimeout   time.Duration // 0 waits as long as the visitor stays
}

type conversation struct {
	presenter *chat.Presenter
	owner     speech.Owner
	themeID   string
}

// ConversationHandler runs visitor chats.
type ConversationHandler struct {
	content   ContentSource
	prompts   InstructionBuilder
	transport chat.Transport
	floor     *speech.Floor
	clk       clock.Clock
	settings  ChatSettings
	sessions  *apisession.Store[conversation]
}

// NewConversationHandler creates a new ConversationHandler. floor may be nil
// to keep chats silent.
func NewConversationHandler(src ContentSource, prompts InstructionBuilder, transport chat.Transport, floor *speech.Floor, clk clock.Clock, settings ChatSettings) *ConversationHandler {
	h := &ConversationHandler{
		content:   src,
		prompts:   prompts,
		transport: transport,
		floor:     floor,
		clk:       clk,
		settings:  settings,
	}
	h.sessions = apisession.New(settings.TTL, clk, func(id string, c *conversation) {
		slog.Debug("Closing conversation", "id", id)
		c.presenter.Close()
		if floor != nil {
			floor.Forget(c.owner)
		}
	})
	return h
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	ThemeID string `json:"themeId"`
}

// ConversationResponse is a conversation's id and log.
type ConversationResponse struct {
	ID       string         `json:"id"`
	ThemeID  string         `json:"themeId"`
	Busy     bool           `json:"busy"`
	Messages []chat.Message `json:"messages"`
}

// HandleCreate handles POST /api/conversations
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theme, ok := findTheme(r.Context(), h.content, req.ThemeID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown theme")
		return
	}

	instruction, err := h.prompts.SystemInstruction(theme, h.content.GetItems(r.Context(), theme.ID))
	if err != nil {
		slog.Error("Failed to render system instruction", "theme", theme.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "prompt rendering failed")
		return
	}

	var (
		synth *speech.Synthesizer
		owner speech.Owner
	)
	if h.floor != nil && h.settings.SpeakReplies {
		owner = speech.SessionOwner(speech.OwnerChat, uuid.NewString())
		synth = speech.NewSynthesizer(h.floor, owner, h.clk, h.settings.Policy)
	}
	p := chat.NewPresenter(h.transport, chat.NewTypewriter(h.clk, h.settings.Typewriter), synth, chat.PresenterConfig{
		Title:             theme.Title,
		SystemInstruction: instruction,
		Stream:            h.settings.Stream,
		MaxLines:          h.settings.MaxLines,
		UseBackendChat:    h.settings.UseBackendChat,
		SpeakReplies:      h.settings.SpeakReplies,
		Voice:             h.settings.Voice,
	})

	c := &conversation{presenter: p, owner: owner, themeID: theme.ID}
	id := h.sessions.Create(c)
	slog.Info("Conversation started", "id", id, "theme", theme.ID)
	writeJSON(w, http.StatusCreated, h.view(id, c))
}

func (h *ConversationHandler) view(id string, c *conversation) ConversationResponse {
	return ConversationResponse{
		ID:       id,
		ThemeID:  c.themeID,
		Busy:     c.presenter.Busy(),
		Messages: c.presenter.Conversation().Messages(),
	}
}

func (h *ConversationHandler) lookup(w http.ResponseWriter, r *http.Request) (*conversation, string, bool) {
	id := r.PathValue("id")
	c, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown conversation")
		return nil, id, false
	}
	return c, id, true
}

// HandleGet handles GET /api/conversations/{id}
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(id, c))
}

// HandleDelete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "unknown conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendRequest is the body of POST /api/conversations/{id}/messages.
type SendRequest struct {
	Text string `json:"text"`
}

// HandleSend handles POST /api/conversations/{id}/messages. It returns once
// the reply has arrived; the reveal continues on the websocket.
func (h *ConversationHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req SendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The reply belongs to the conversation, not to this HTTP request.
	ctx := context.WithoutCancel(r.Context())
	if h.settings.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.settings.ReplyTimeout)
		defer cancel()
	}

	err := c.presenter.Send(ctx, req.Text)
	switch {
	case errors.Is(err, chat.ErrEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	case err != nil:
		// The apology is already in the log.
		writeJSON(w, http.StatusBadGateway, struct {
			ConversationResponse
			Error string `json:"error"`
		}{h.view(id, c), err.Error()})
	default:
		writeJSON(w, http.StatusOK, h.view(id, c))
	}
}

// HandleWS handles GET /api/conversations/{id}/ws, pushing the full log after every change.
func (h *ConversationHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	conv := c.presenter.Conversation()
	serveUpdates(w, r, conv.Messages(), conv.Subscribe)
}

// Cleanup evicts idle conversations.
func (h *ConversationHandler) Cleanup() int { return h.sessions.Cleanup() }

// Len reports the open conversations.
func (h *ConversationHandler) Len() int { return h.sessions.Len() }

// Close ends every conversation.
func (h *ConversationHandler) Close() { h.sessions.Close() }
