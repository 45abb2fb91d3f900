package backends

import (
	"context"
	"strings"
	"unicode"
)

// Segment is one timed span of transcribed text. Timestamps are optional;
// backends that cannot place a span in time leave both pointers nil and the
// caller substitutes the slice bounds.
type Segment struct {
	Text  string   `json:"text"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// Result is the transcription of one audio file or slice.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Merge appends other onto r: segment lists are concatenated preserving
// order, texts are joined with a single space after trimming each side.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Segments = append(r.Segments, other.Segments...)
	text := strings.TrimSpace(other.Text)
	if text == "" {
		return
	}
	if r.Text == "" {
		r.Text = text
		return
	}
	r.Text += " " + text
}

// Backend is a speech-recognition engine behind a single contract:
// audio file in, text plus timed spans out.
type Backend interface {
	// Name returns the backend name for logging and checkpoint headers.
	Name() string

	// Transcribe converts the audio file at path into text. Blocking; the
	// context is the only cancellation mechanism.
	Transcribe(ctx context.Context, path string) (*Result, error)
}

// IsDegenerate reports whether transcribed text is a known failure
// signature rather than genuine content: empty, two or fewer characters,
// or nothing but one repeated punctuation mark.
func IsDegenerate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	runes := []rune(trimmed)
	if len(runes) <= 2 {
		return true
	}
	first := runes[0]
	if !unicode.IsPunct(first) && !unicode.IsSymbol(first) {
		return false
	}
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}
