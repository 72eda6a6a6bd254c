package speech

import "strings"

// DefaultVoicePriority lists preferred voice name fragments, best first.
var DefaultVoicePriority = []string{"Google 한국의", "Yuna", "Narae", "Heami", "Female", "여성"}

// SelectVoice picks a voice for lang. The first priority fragment contained in
// a voice name wins; otherwise the first voice of the language is used.
// It returns nil when no voice speaks lang, meaning the engine default.
func SelectVoice(voices []Voice, lang string, priority []string) *Voice {
	var matching []Voice
	for _, v := range voices {
		if sameLang(v.Lang, lang) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	for _, name := range priority {
		for i := range matching {
			if strings.Contains(matching[i].Name, name) {
				v := matching[i]
				return &v
			}
		}
	}
	v := matching[0]
	return &v
}

func sameLang(a, b string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	}
	return norm(a) == norm(b)
}
