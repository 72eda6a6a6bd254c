// Package narration drives the docent tour: a sequence of spots narrated one
// after another with progress tracking, pause/resume and auto-advance.
package narration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docentgo/pkg/content"
	"docentgo/pkg/model"
	"docentgo/pkg/store"
)

const noDescription = "(설명 없음)"

// Spot is one narration unit. Spots are immutable once built; playback state
// lives in the controller, keyed by Index.
type Spot struct {
	Index  int    `json:"index"`
	ItemID string `json:"itemId,omitempty"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Video  string `json:"video"`
}

// ItemSource supplies the items of a theme.
type ItemSource interface {
	GetItems(ctx context.Context, themeID string) []model.Item
}

// BuildSpots turns items into spots, choosing scripts by age. Without items the
// theme long description is narrated line by line.
func BuildSpots(theme model.Theme, items []model.Item, age model.Age, videos *VideoResolver, overrides map[string]string) []Spot {
	var spots []Spot
	if len(items) > 0 {
		spots = make([]Spot, 0, len(items))
		for i, it := range items {
			spots = append(spots, Spot{
				Index:  i,
				ItemID: it.ID,
				Title:  it.Name,
				Text:   itemScript(it, age),
			})
		}
	} else {
		n := 0
		for _, line := range strings.Split(content.UnescapeNewlines(theme.LongDescription), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			n++
			spots = append(spots, Spot{
				Index: len(spots),
				Title: fmt.Sprintf("%s %d", theme.Title, n),
				Text:  line,
			})
		}
	}

	if videos != nil {
		playlist := videos.Playlist(theme, items)
		for i := range spots {
			var it *model.Item
			if i < len(items) {
				it = &items[i]
			}
			spots[i].Video = videos.Resolve(theme, it, i, playlist, overrides)
		}
	}
	return spots
}

func itemScript(it model.Item, age model.Age) string {
	chosen := it.ScriptGeneral
	if chosen == "" || (age == model.AgeChild && it.ScriptChild != "") {
		chosen = it.ScriptChild
		if chosen == "" {
			chosen = it.ScriptGeneral
		}
	}
	if chosen == "" {
		chosen = it.Description
	}
	text := strings.TrimSpace(content.UnescapeNewlines(chosen))
	if text == "" {
		return noDescription
	}
	return text
}

// LoadSpots fetches the theme items and the override map and builds the tour.
// Override lookups that fail are logged and ignored.
func LoadSpots(ctx context.Context, src ItemSource, overrides store.OverrideStore, theme model.Theme, age model.Age, videos *VideoResolver) []Spot {
	items := src.GetItems(ctx, theme.ID)

	var pinned map[string]string
	if overrides != nil {
		var err error
		if pinned, err = overrides.ListOverrides(ctx); err != nil {
			slog.Warn("Failed to load video overrides", "theme", theme.ID, "error", err)
		}
	}

	spots := BuildSpots(theme, items, age, videos, pinned)
	slog.Debug("Built narration spots", "theme", theme.ID, "age", age, "items", len(items), "spots", len(spots))
	return spots
}
