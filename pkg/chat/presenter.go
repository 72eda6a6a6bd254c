package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"docentgo/pkg/speech"
)

// Apology replaces a reply that could not be obtained.
const Apology = "죄송합니다. 응답 중 오류가 발생했습니다."

// Greeting is the opening message for a theme.
func Greeting(title string) string {
	return fmt.Sprintf("안녕하세요! %s에 대해 무엇이 궁금하신가요? 제가 아는 모든 것을 알려드릴게요!", title)
}

var (
	ErrBusy   = errors.New("chat: a reply is already in progress")
	ErrEmpty  = errors.New("chat: empty message")
	ErrClosed = errors.New("chat: conversation closed")
	errNoText = errors.New("chat: reply was empty")
)

// PresenterConfig holds per-conversation settings.
type PresenterConfig struct {
	Title             string
	SystemInstruction string
	Stream            bool
	MaxLines          int
	UseBackendChat    bool
	SpeakReplies      bool
	Voice             speech.Params
}

// Presenter runs one visitor conversation: it sends questions, shows the
// reply as it arrives, and voices the final text.
type Presenter struct {
	conv      *Conversation
	transport Transport
	tw        *Typewriter
	synth     *speech.Synthesizer
	cfg       PresenterConfig

	mu     sync.Mutex
	busy   bool
	closed bool
	cancel context.CancelFunc
}

// NewPresenter starts a conversation with the greeting for cfg.Title.
// synth may be nil, in which case replies are not voiced.
func NewPresenter(transport Transport, tw *Typewriter, synth *speech.Synthesizer, cfg PresenterConfig) *Presenter {
	p := &Presenter{
		conv:      NewConversation(),
		transport: transport,
		tw:        tw,
		synth:     synth,
		cfg:       cfg,
	}
	p.conv.Append(SenderAI, Greeting(cfg.Title))
	return p
}

// Conversation returns the message log.
func (p *Presenter) Conversation() *Conversation { return p.conv }

// Busy reports whether a reply is in progress.
func (p *Presenter) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Send posts a visitor question and blocks until the reply has been received.
// Failures show a single apology in the conversation and are also returned.
func (p *Presenter) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.busy {
		p.mu.Unlock()
		return ErrBusy
	}
	p.busy = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.busy = false
		p.cancel = nil
		p.mu.Unlock()
	}()

	p.conv.Append(SenderUser, text)

	reply, err := p.fetch(ctx, text)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errNoText
	}
	if err != nil {
		if p.isClosed() {
			return ErrClosed
		}
		slog.Error("Chat reply failed", "error", err)
		// Text already streamed stays; the apology follows it.
		p.conv.Append(SenderAI, Apology)
		return err
	}

	p.speak(reply)
	return nil
}

// Close cancels the request in flight, the reveals, and any speech.
func (p *Presenter) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.tw.Close()
	if p.synth != nil {
		p.synth.Cancel()
	}
}

func (p *Presenter) fetch(ctx context.Context, text string) (string, error) {
	resp, err := p.transport.Complete(ctx, Request{
		Message:           text,
		SystemInstruction: p.cfg.SystemInstruction,
		Stream:            p.cfg.Stream,
		MaxLines:          p.cfg.MaxLines,
		UseBackendChat:    p.cfg.UseBackendChat,
	})
	if err != nil {
		return "", &StreamFatalError{Err: err}
	}
	defer resp.Body.Close()

	if resp.IsEventStream() {
		placeholder := -1
		reply, err := ReadStream(ctx, resp.Body, func(acc string) {
			if placeholder < 0 {
				placeholder = p.conv.Append(SenderAI, acc)
				return
			}
			p.conv.Update(placeholder, acc)
		})
		if err != nil {
			return reply, err
		}
		if strings.TrimSpace(reply) != "" {
			if placeholder < 0 {
				p.conv.Append(SenderAI, reply)
			} else {
				p.conv.Update(placeholder, reply)
			}
		}
		return reply, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &StreamFatalError{Err: fmt.Errorf("read reply: %w", err)}
	}
	reply := ParseFallback(body)
	if reply == "" {
		return "", nil
	}
	if p.tw.Atomic(reply) {
		p.conv.Append(SenderAI, reply)
		return reply, nil
	}
	idx := p.conv.Append(SenderAI, "")
	p.tw.Reveal(idx, reply, func(s string) { p.conv.Update(idx, s) }, nil)
	return reply, nil
}

func (p *Presenter) speak(reply string) {
	if p.synth == nil || !p.cfg.SpeakReplies {
		return
	}
	spoken := speech.Speakable(reply)
	if spoken == "" {
		return
	}
	err := p.synth.Speak(speech.Request{Text: spoken, Params: p.cfg.Voice}, func(ev speech.Event) {
		if ev.Kind == speech.EventError && !speech.IsInterrupted(ev.Err) {
			slog.Warn("Chat reply speech failed", "owner", p.synth.Owner(), "error", ev.Err)
		}
	})
	if err != nil {
		slog.Warn("Chat reply speech failed", "owner", p.synth.Owner(), "error", err)
	}
}

func (p *Presenter) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
