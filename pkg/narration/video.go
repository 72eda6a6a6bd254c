package narration

import (
	"docentgo/pkg/config"
	"docentgo/pkg/model"
)

// VideoResolver picks the background video of a spot. Priority: item override,
// item video, theme playlist cycled by index, intro video for the first spot,
// then the theme default.
type VideoResolver struct {
	Intro       string
	Default     string
	ThemeVideos map[string]string
}

// NewVideoResolver builds a resolver from the narration settings.
func NewVideoResolver(cfg config.NarrationConfig) *VideoResolver {
	return &VideoResolver{
		Intro:       cfg.IntroVideo,
		Default:     cfg.DefaultVideo,
		ThemeVideos: cfg.ThemeVideos,
	}
}

// Playlist collects the section videos of a theme and its items, deduplicated
// in first-seen order.
func (r *VideoResolver) Playlist(theme model.Theme, items []model.Item) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(urls []string) {
		for _, u := range urls {
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	add(theme.Playlist)
	for _, it := range items {
		add(it.Playlist)
	}
	return out
}

// Resolve returns the video for spot index. item may be nil for description spots.
func (r *VideoResolver) Resolve(theme model.Theme, item *model.Item, index int, playlist []string, overrides map[string]string) string {
	if item != nil {
		if url := overrides[item.ID]; url != "" {
			return url
		}
		if item.Video != "" {
			return item.Video
		}
	}
	if len(playlist) > 0 {
		return playlist[index%len(playlist)]
	}
	if index == 0 && r.Intro != "" {
		return r.Intro
	}
	return r.ThemeDefault(theme.ID)
}

// ThemeDefault returns the configured video for a theme id.
func (r *VideoResolver) ThemeDefault(themeID string) string {
	if url, ok := r.ThemeVideos[themeID]; ok && url != "" {
		return url
	}
	return r.Default
}
