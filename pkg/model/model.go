package model

import (
	"encoding/json"
	"time"
)

// Age selects which script variant an item is narrated with.
type Age string

const (
	AgeChild   Age = "child"
	AgeGeneral Age = "general"
)

// ParseAge maps free-form input to a known profile, defaulting to general.
func ParseAge(s string) Age {
	if Age(s) == AgeChild {
		return AgeChild
	}
	return AgeGeneral
}

// Theme is one exhibition topic a visitor can pick.
type Theme struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	LongDescription string   `json:"longDescription"`
	ContextPrompt   string   `json:"contextPrompt"`
	Playlist        []string `json:"playlist,omitempty"` // theme-level section videos, deduplicated

	Raw map[string]any `json:"-"`
}

// Item is one exhibit stop inside a theme.
type Item struct {
	ID            string   `json:"item_id"`
	Name          string   `json:"item_name"`
	Video         string   `json:"video,omitempty"`
	ScriptChild   string   `json:"script_child,omitempty"`
	ScriptGeneral string   `json:"script_general,omitempty"`
	Description   string   `json:"item_desc,omitempty"`
	Playlist      []string `json:"playlist,omitempty"` // section videos attached to the item

	Raw map[string]any `json:"-"`
}

// Quiz is one multiple-choice question. CorrectAnswer is always the literal option text.
type Quiz struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Submission is one entry of the prize-claim log.
type Submission struct {
	ID             int64           `json:"id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Email          string          `json:"email"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// VideoOverride pins a video to an item regardless of what the backend sends.
type VideoOverride struct {
	ItemID    string    `json:"itemId"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updatedAt"`
}
