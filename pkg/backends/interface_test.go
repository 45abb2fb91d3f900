package backends

import (
	"reflect"
	"testing"
)

func TestResultMerge(t *testing.T) {
	s1 := Segment{Text: "first", Start: floatPtr(0), End: floatPtr(60)}
	s2 := Segment{Text: "second", Start: floatPtr(60), End: floatPtr(120)}

	combined := &Result{}
	combined.Merge(&Result{Text: "A ", Segments: []Segment{s1}})
	combined.Merge(&Result{Text: "B ", Segments: []Segment{s2}})

	if combined.Text != "A B" {
		t.Errorf("Text = %q, want %q", combined.Text, "A B")
	}
	if !reflect.DeepEqual(combined.Segments, []Segment{s1, s2}) {
		t.Errorf("Segments = %v, want [s1 s2] in order", combined.Segments)
	}
}

func TestResultMergeSkipsEmpty(t *testing.T) {
	combined := &Result{Text: "kept"}
	combined.Merge(nil)
	combined.Merge(&Result{Text: "   "})

	if combined.Text != "kept" {
		t.Errorf("Text = %q, want %q", combined.Text, "kept")
	}
}

func floatPtr(v float64) *float64 { return &v }
