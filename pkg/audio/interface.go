package audio

// FileInfo contains measured properties of an audio file. Size and duration
// (rounded to one decimal) form the fingerprint that matches a checkpoint
// file to its source audio.
type FileInfo struct {
	FilePath    string
	SizeMB      float64
	DurationSec float64
	DurationMin float64
	SampleRate  int
	Channels    int
	Codec       string
}

// EstimatedSegments returns the expected segment count for the given
// segment duration. Always at least one.
func (fi *FileInfo) EstimatedSegments(segmentSeconds int) int {
	if segmentSeconds <= 0 {
		return 1
	}
	n := int(fi.DurationSec) / segmentSeconds
	if n < 1 {
		return 1
	}
	return n
}

// VolumeInfo holds the loudness measurements reported by the media tool.
type VolumeInfo struct {
	MeanDB float64
	MaxDB  float64
}

// SilenceSpan is one detected stretch of silence.
type SilenceSpan struct {
	StartSec float64
	EndSec   float64
}

// Processor probes and transforms audio files via the external media tool.
type Processor interface {
	// Probe extracts measured properties from an audio file.
	Probe(path string) (*FileInfo, error)

	// Preprocess converts the source to the canonical format, strips
	// silence, and applies gain and noise filtering. Every enhancement
	// stage degrades gracefully to the previous stage's file.
	Preprocess(path string, maxBoostDB float64) (string, *FileInfo, float64, error)

	// ExtractSegment cuts a bounded slice into outPath in canonical format.
	ExtractSegment(path string, startSec, durationSec float64, outPath string) error

	// CleanupTemp removes the processor's temporary working files.
	CleanupTemp()
}
