package chat

import (
	"sync"
	"time"
)

// Sender identifies the author of a message.
type Sender string

const (
	SenderAI   Sender = "ai"
	SenderUser Sender = "user"
)

// Message is one entry of a conversation.
type Message struct {
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Conversation is an append-only message log. Indices are stable; only the
// text of an existing entry may change.
type Conversation struct {
	mu        sync.Mutex
	messages  []Message
	listeners map[int]func([]Message)
	nextID    int
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{listeners: make(map[int]func([]Message))}
}

// Append adds a message and returns its index.
func (c *Conversation) Append(sender Sender, text string) int {
	c.mu.Lock()
	c.messages = append(c.messages, Message{Sender: sender, Text: text, At: time.Now()})
	idx := len(c.messages) - 1
	c.mu.Unlock()

	c.notify()
	return idx
}

// Update replaces the text at index. Out-of-range indices are ignored.
func (c *Conversation) Update(index int, text string) bool {
	c.mu.Lock()
	if index < 0 || index >= len(c.messages) || c.messages[index].Text == text {
		c.mu.Unlock()
		return false
	}
	c.messages[index].Text = text
	c.mu.Unlock()

	c.notify()
	return true
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Subscribe registers fn to receive the log after every change.
// The returned func removes the subscription.
func (c *Conversation) Subscribe(fn func([]Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Conversation) notify() {
	c.mu.Lock()
	fns := make([]func([]Message), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if len(fns) == 0 {
		return
	}
	msgs := c.Messages()
	for _, fn := range fns {
		fn(msgs)
	}
}
