// Package filter rejects transcription output matching known degenerate
// patterns: isolated filler syllables, stuttered word pairs, and long runs
// of one repeated character. It is a handcrafted denylist tuned to observed
// ASR failure modes, not a language model.
package filter

import "strings"

// DefaultFillers are single-syllable interjections that carry no content
// when they appear alone.
var DefaultFillers = []string{"好", "A", "啊", "嗯", "哦", "呃", "欸", "呵"}

// Filter applies the repetitive-content rules to transcribed text.
type Filter struct {
	fillers map[string]struct{}
}

// New creates a filter with the default filler denylist.
func New() *Filter {
	return NewWithFillers(DefaultFillers)
}

// NewWithFillers creates a filter with a custom filler denylist.
func NewWithFillers(fillers []string) *Filter {
	set := make(map[string]struct{}, len(fillers))
	for _, f := range fillers {
		set[f] = struct{}{}
	}
	return &Filter{fillers: set}
}

// Apply returns the text unchanged, or "" when it matches a degenerate
// pattern. Inputs shorter than three runes pass through untouched.
func (f *Filter) Apply(text string) string {
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(trimmed)

	if len(words) == 1 {
		word := words[0]
		if len([]rune(word)) == 1 {
			if _, ok := f.fillers[word]; ok {
				return ""
			}
		}
	}

	if len([]rune(trimmed)) < 3 {
		return text
	}

	if len(words) >= 2 && words[0] == words[1] {
		return ""
	}

	runes := []rune(text)
	if len(runes) > 5 {
		for i := 0; i+3 < len(runes); i++ {
			if runes[i] == runes[i+1] && runes[i] == runes[i+2] && runes[i] == runes[i+3] {
				return ""
			}
		}
	}

	return text
}
