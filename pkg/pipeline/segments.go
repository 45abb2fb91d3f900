// Package pipeline drives the segmented transcription run: it plans the
// segment timeline, extracts and transcribes each slice, and feeds retained
// spans into the checkpoint store. Resume state decides where the loop
// starts; everything after that is a straight pass over the plan.
package pipeline

import "math"

// Span is one planned extraction window on the source timeline.
type Span struct {
	Index       int
	StartSec    float64
	DurationSec float64
}

// EndSec returns the exclusive end of the span.
func (s Span) EndSec() float64 {
	return s.StartSec + s.DurationSec
}

// PlanSegments splits [0, totalSec) into consecutive spans of at most
// segmentSec seconds each. The spans cover the timeline exactly with no
// gaps or overlap; only the final span may be shorter.
func PlanSegments(totalSec float64, segmentSec int) []Span {
	if totalSec <= 0 || segmentSec <= 0 {
		return nil
	}

	seg := float64(segmentSec)
	count := int(math.Ceil(totalSec / seg))

	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * seg
		dur := seg
		if start+dur > totalSec {
			dur = totalSec - start
		}
		spans = append(spans, Span{Index: i, StartSec: start, DurationSec: dur})
	}
	return spans
}

// coveredEpsilon absorbs float rounding when matching recorded progress
// against span boundaries.
const coveredEpsilon = 0.01

// StartIndexAfter returns the index of the first span not fully covered by
// progress up to endSec. Progress recorded against a differently sized plan
// maps onto the current one without leaving a gap: a span is skipped only
// when its entire range lies at or before endSec.
func StartIndexAfter(spans []Span, endSec float64) int {
	for i, s := range spans {
		if s.EndSec() > endSec+coveredEpsilon {
			return i
		}
	}
	return len(spans)
}
